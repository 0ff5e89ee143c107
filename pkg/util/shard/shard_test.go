package shard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex_StableAndInRange(t *testing.T) {
	for _, key := range []string{"MSKU1234567", "MSCU7654321", ""} {
		i := Index(key, 16)
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 16)
		assert.Equal(t, i, Index(key, 16))
	}
	assert.Equal(t, 0, Index("anything", 1))
	assert.Equal(t, 0, Index("anything", 0))
}

func TestLocks_SerializeSameKey(t *testing.T) {
	locks := NewLocks(0)
	assert.Same(t, locks.For("MSKU1234567"), locks.For("MSKU1234567"))

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Do("MSKU1234567", func() { counter++ })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestLocks_LockAllOverlappingSets(t *testing.T) {
	locks := NewLocks(8)
	sets := [][]string{
		{"room:a", "room:b", "room:a"},
		{"room:b", "room:c"},
		{"room:c", "room:a"},
	}

	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		keys := sets[i%len(sets)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.LockAll(keys)
			total++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 30, total)

	// 解锁后可以再次加锁
	unlock := locks.LockAll([]string{"room:a"})
	unlock()
}
