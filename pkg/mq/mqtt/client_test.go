package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Brokers = nil
	assert.ErrorIs(t, cfg.Validate(), ErrNoBrokers)

	cfg = DefaultConfig()
	cfg.QoS = 3
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidQoS)
}

func TestClient_PublishBeforeConnect(t *testing.T) {
	c, err := New(&Config{ClientID: "test-client"})
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish(context.Background(), "realtime/alerts", []byte(`{}`)), ErrNotConnected)

	// 未连接时订阅只登记，连接后恢复
	require.NoError(t, c.Subscribe("realtime/containers", func(string, []byte) {}))
	assert.Len(t, c.subs, 1)
}

func TestClient_ConnectCancelled(t *testing.T) {
	c, err := New(&Config{
		Brokers:        []string{"tcp://127.0.0.1:1"},
		ConnectTimeout: 200 * time.Millisecond,
		RetryInitial:   50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Connect(ctx), context.DeadlineExceeded)
}

func TestClient_ClosedRejects(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Publish(context.Background(), "t", nil), ErrClientClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
}
