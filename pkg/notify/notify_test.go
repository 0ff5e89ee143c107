package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingNotifier struct{ n int }

func (c *countingNotifier) Send(context.Context, *Alert) error { c.n++; return nil }
func (c *countingNotifier) Name() string                       { return "counting" }

func TestThrottle(t *testing.T) {
	inner := &countingNotifier{}
	th := NewThrottle(inner, time.Minute)
	clock := time.Unix(1700000000, 0)
	th.now = func() time.Time { return clock }

	a := &Alert{Fingerprint: "risk:MSKU1234567:critical"}
	assert.NoError(t, th.Send(context.Background(), a))
	assert.ErrorIs(t, th.Send(context.Background(), a), ErrSuppressed)
	assert.NoError(t, th.Send(context.Background(), &Alert{Fingerprint: "other"}))

	clock = clock.Add(time.Minute)
	assert.NoError(t, th.Send(context.Background(), a))
	assert.Equal(t, 3, inner.n)

	// 无指纹的告警不做抑制
	assert.NoError(t, th.Send(context.Background(), &Alert{}))
	assert.NoError(t, th.Send(context.Background(), &Alert{}))
	assert.Equal(t, 5, inner.n)
	assert.Equal(t, "counting", th.Name())
}
