package lru

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRU_Basic(t *testing.T) {
	c := New[string, int](Config{MaxSize: 10})
	c.Set("a", 1)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestLRU_MaxSizeEvictsLeastRecent(t *testing.T) {
	var evicted []string
	c := New[string, int](Config{MaxSize: 2}, WithOnEvict(func(k string, _ int) {
		evicted = append(evicted, k)
	}))
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.True(t, ok)
}

func TestLRU_TTL(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := New[string, bool](Config{MaxSize: 10, DefaultTTL: time.Second},
		WithClock[string, bool](func() time.Time { return now }))

	c.Set("missing:MSKU1234567", true)
	c.SetWithTTL("forever", true, 0)

	now = now.Add(time.Second)
	_, ok := c.Get("missing:MSKU1234567")
	assert.False(t, ok)
	_, ok = c.Get("forever")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}
