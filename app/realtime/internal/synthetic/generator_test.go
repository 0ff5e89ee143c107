package synthetic

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	channel string
	payload []byte
}

type capture struct {
	mu   sync.Mutex
	msgs []message
}

func (c *capture) Publish(_ context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.msgs = append(c.msgs, message{channel: channel, payload: data})
	c.mu.Unlock()
	return nil
}

func (c *capture) all() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.msgs...)
}

func TestGenerator_PayloadsPassNormalizer(t *testing.T) {
	pub := &capture{}
	g, err := New(&Config{Seed: 7, AlertChance: 1}, pub)
	require.NoError(t, err)

	n, err := normalizer.New(event.NewFactory(nil))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		require.NoError(t, g.PublishContainerUpdate(ctx))
		require.NoError(t, g.PublishMetrics(ctx))
		require.NoError(t, g.PublishAlert(ctx))
	}

	msgs := pub.all()
	require.Len(t, msgs, 60)
	for _, m := range msgs {
		events, err := n.Normalize(m.channel, m.payload)
		require.NoError(t, err, "%s: %s", m.channel, m.payload)
		assert.NotEmpty(t, events)
	}
	assert.Equal(t, normalizer.ChannelContainers, msgs[0].channel)
	assert.Equal(t, normalizer.ChannelMetrics, msgs[1].channel)
	assert.Equal(t, normalizer.ChannelAlerts, msgs[2].channel)
}

func TestGenerator_SeedIsReproducible(t *testing.T) {
	a, b := &capture{}, &capture{}
	ga, err := New(&Config{Seed: 42}, a)
	require.NoError(t, err)
	gb, err := New(&Config{Seed: 42}, b)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, ga.PublishContainerUpdate(context.Background()))
		require.NoError(t, gb.PublishContainerUpdate(context.Background()))
	}
	assert.Equal(t, a.all(), b.all())
}

func TestGenerator_AlertChance(t *testing.T) {
	pub := &capture{}
	g, err := New(&Config{Seed: 1, AlertChance: 1e-9}, pub)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, g.PublishAlert(context.Background()))
	}
	assert.Empty(t, pub.all())
}

func TestGenerator_InvalidSchedule(t *testing.T) {
	_, err := New(&Config{MetricsSchedule: "every now and then"}, &capture{})
	assert.Error(t, err)

	_, err = New(&Config{AlertChance: 2}, &capture{})
	assert.Error(t, err)
}

func TestGenerator_StartStop(t *testing.T) {
	pub := &capture{}
	g, err := New(&Config{Seed: 3, MetricsSchedule: "@every 1s"}, pub)
	require.NoError(t, err)

	require.NoError(t, g.Start())
	require.Eventually(t, func() bool { return len(pub.all()) > 0 }, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, g.Stop())
	assert.Equal(t, normalizer.ChannelMetrics, pub.all()[0].channel)
}
