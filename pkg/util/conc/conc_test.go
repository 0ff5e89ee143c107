package conc

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo(t *testing.T) {
	f := Go(func() (int, error) { return 42, nil })
	v, err := f.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, f.Done())

	boom := errors.New("boom")
	f2 := Go(func() (int, error) { return 0, boom })
	assert.ErrorIs(t, f2.Err(), boom)
}

func TestPool_Submit(t *testing.T) {
	p := NewPool[struct{}](4)
	defer p.Release()

	var n atomic.Int32
	futures := make([]*Future[struct{}], 0, 20)
	for i := 0; i < 20; i++ {
		futures = append(futures, p.Submit(func() (struct{}, error) {
			n.Add(1)
			return struct{}{}, nil
		}))
	}
	require.NoError(t, AwaitAll(futures...))
	assert.EqualValues(t, 20, n.Load())
	assert.Equal(t, 4, p.Cap())
}

func TestPool_NonBlockingOverflow(t *testing.T) {
	p := NewPool[struct{}](1, WithNonBlocking(true))
	defer p.Release()

	release := make(chan struct{})
	first := p.Submit(func() (struct{}, error) {
		<-release
		return struct{}{}, nil
	})

	require.Eventually(t, func() bool { return p.Running() == 1 }, time.Second, 5*time.Millisecond)
	second := p.Submit(func() (struct{}, error) { return struct{}{}, nil })
	assert.Error(t, second.Err())

	close(release)
	assert.NoError(t, first.Err())
}
