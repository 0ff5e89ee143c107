package kafka

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Brokers = nil
	assert.ErrorIs(t, cfg.Validate(), ErrNoBrokers)

	cfg = DefaultConfig()
	cfg.Consumer.GroupID = ""
	assert.ErrorIs(t, cfg.Validate(), ErrEmptyGroupID)

	cfg = DefaultConfig()
	cfg.Producer.Compression = "brotli"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestNew_MergesDefaults(t *testing.T) {
	c, err := New(&Config{Brokers: []string{"kafka-1:9092"}})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"kafka-1:9092"}, c.config.Brokers)
	assert.Equal(t, "cargorelay", c.config.Consumer.GroupID)
	assert.Equal(t, int64(-1), c.config.Consumer.StartOffset)
}

func TestClient_SubscribeValidation(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	_, err = c.Subscribe(nil, func(context.Context, *Message) error { return nil })
	assert.ErrorIs(t, err, ErrNoTopics)
	_, err = c.Subscribe([]string{"realtime.containers"}, nil)
	assert.ErrorIs(t, err, ErrNoHandler)

	require.NoError(t, c.Close())
	_, err = c.Producer("t")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_ProducerCached(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	defer c.Close()

	p1, err := c.Producer("realtime.alerts")
	require.NoError(t, err)
	p2, err := c.Producer("realtime.alerts")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, "realtime.alerts", p1.Topic())
}

func TestRecoveryMiddleware(t *testing.T) {
	var recovered any
	h := RecoveryMiddleware(logger.NewNoop(), func(r any) { recovered = r })(
		func(context.Context, *Message) error { panic("boom") },
	)
	err := h(context.Background(), &Message{Topic: "t"})
	assert.ErrorIs(t, err, ErrConsumerPanic)
	assert.Equal(t, "boom", recovered)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, m *Message) error {
				order = append(order, name)
				return next(ctx, m)
			}
		}
	}
	h := chain(func(context.Context, *Message) error { return errors.New("x") }, []Middleware{
		mw("a"), LoggingMiddleware(logger.NewNoop()), mw("b"),
	})
	assert.Error(t, h(context.Background(), &Message{}))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Gzip, parseCompression("gzip"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Compression(0), parseCompression("none"))
}

func TestBuildSASL(t *testing.T) {
	m, err := buildSASL(&SASLConfig{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", m.Name())

	m, err = buildSASL(&SASLConfig{Mechanism: "scram-sha-512", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "SCRAM-SHA-512", m.Name())

	_, err = buildSASL(&SASLConfig{Mechanism: "GSSAPI"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadSecurity(t *testing.T) {
	sec, err := loadSecurity(DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, sec)
	assert.Nil(t, sec.transport())
	assert.Nil(t, sec.dialer().TLS)

	cfg := DefaultConfig()
	cfg.SASL = &SASLConfig{Mechanism: "SCRAM-SHA-256", Username: "hub", Password: "secret"}
	cfg.TLS = &TLSConfig{Enable: true, InsecureSkipVerify: true}
	sec, err = loadSecurity(cfg)
	require.NoError(t, err)
	require.NotNil(t, sec)

	d := sec.dialer()
	require.NotNil(t, d.TLS)
	assert.True(t, d.TLS.InsecureSkipVerify)
	assert.Equal(t, "SCRAM-SHA-256", d.SASLMechanism.Name())

	tr, ok := sec.transport().(*kafka.Transport)
	require.True(t, ok)
	assert.Same(t, d.TLS, tr.TLS)

	cfg.TLS.CAFile = filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(cfg.TLS.CAFile, []byte("not a certificate"), 0o600))
	_, err = loadSecurity(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
