package system

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Collect(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.True(t, c.Stats().UpdatedAt.IsZero())

	stats := c.Collect(context.Background())
	assert.Positive(t, stats.Goroutines)
	assert.Positive(t, stats.HeapAlloc)
	assert.Equal(t, stats, c.Stats())
}

func TestCollector_RunStopsOnCancel(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return !c.Stats().UpdatedAt.IsZero() }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}
