package sentry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (t *captureTransport) Configure(sentry.ClientOptions) {}
func (t *captureTransport) SendEvent(e *sentry.Event) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}
func (t *captureTransport) Flush(time.Duration) bool { return true }
func (t *captureTransport) Close()                   {}

func TestClient_CapturePanicWithTags(t *testing.T) {
	tr := &captureTransport{}
	c, err := New(&Config{DSN: "https://public@sentry.example.com/1"}, WithTransport(tr))
	require.NoError(t, err)
	require.True(t, c.Enabled())

	c.CapturePanic("lane exploded", map[string]string{"component": "bridge"})
	c.CaptureError(errors.New("broker down"), nil)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.events, 2)
	assert.Equal(t, "bridge", tr.events[0].Tags["component"])
	assert.Equal(t, sentry.LevelFatal, tr.events[0].Level)
	assert.Equal(t, uint64(2), c.Stats().EventsCaptured)
}

func TestClient_DisabledAndClosed(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Close(), ErrClientClosed)

	c.CaptureError(errors.New("ignored"), nil)
	assert.Zero(t, c.Stats().EventsTotal)
}

func TestConfig_Validate(t *testing.T) {
	_, err := New(&Config{SampleRate: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

var _ Reporter = (*Client)(nil)
var _ Reporter = Nop{}
