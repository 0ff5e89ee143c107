package sliding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWindow(t *testing.T, clock *time.Time) *Window {
	t.Helper()
	w, err := NewWindow(&WindowConfig{WindowSize: 10 * time.Second, BucketCount: 10})
	require.NoError(t, err)
	w.now = func() time.Time { return *clock }
	return w
}

func TestWindow_Stats(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	w := newTestWindow(t, &clock)

	w.Record(10*time.Millisecond, true)
	w.Record(30*time.Millisecond, false)
	clock = clock.Add(time.Second)
	w.Record(20*time.Millisecond, true)

	s := w.Stats()
	assert.Equal(t, int64(3), s.Total)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, 20*time.Millisecond, s.AvgLatency)
	assert.Equal(t, 30*time.Millisecond, s.MaxLatency)
	assert.InDelta(t, 0.3, s.Rate, 1e-9)
}

func TestWindow_Expiry(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	w := newTestWindow(t, &clock)

	w.Record(time.Millisecond, true)
	clock = clock.Add(10 * time.Second)
	assert.Zero(t, w.Stats().Total)

	// 复用同一个桶位时旧数据被清掉
	w.Record(time.Millisecond, true)
	assert.Equal(t, int64(1), w.Stats().Total)
}

func TestNewWindow_Invalid(t *testing.T) {
	_, err := NewWindow(&WindowConfig{WindowSize: 5, BucketCount: 10})
	assert.Error(t, err)
}
