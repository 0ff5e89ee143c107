package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

const dialTimeout = 10 * time.Second

// security 客户端建立后不再变化，Reader 的 Dialer 与 Writer 的 Transport 共用同一份
type security struct {
	tls  *tls.Config
	sasl sasl.Mechanism
}

type mechanismFactory func(user, pass string) (sasl.Mechanism, error)

var mechanisms = map[string]mechanismFactory{
	"PLAIN": func(user, pass string) (sasl.Mechanism, error) {
		return plain.Mechanism{Username: user, Password: pass}, nil
	},
	"SCRAM-SHA-256": func(user, pass string) (sasl.Mechanism, error) {
		return scram.Mechanism(scram.SHA256, user, pass)
	},
	"SCRAM-SHA-512": func(user, pass string) (sasl.Mechanism, error) {
		return scram.Mechanism(scram.SHA512, user, pass)
	},
}

// loadSecurity 读取证书并构造 SASL，两者都未配置时返回 nil
func loadSecurity(cfg *Config) (*security, error) {
	var sec security
	if cfg.TLS != nil && cfg.TLS.Enable {
		tc, err := buildTLS(cfg.TLS)
		if err != nil {
			return nil, err
		}
		sec.tls = tc
	}
	if cfg.SASL != nil && cfg.SASL.Username != "" {
		m, err := buildSASL(cfg.SASL)
		if err != nil {
			return nil, err
		}
		sec.sasl = m
	}
	if sec.tls == nil && sec.sasl == nil {
		return nil, nil
	}
	return &sec, nil
}

// dialer 可在 nil 上调用
func (s *security) dialer() *kafka.Dialer {
	d := &kafka.Dialer{Timeout: dialTimeout, DualStack: true}
	if s != nil {
		d.TLS = s.tls
		d.SASLMechanism = s.sasl
	}
	return d
}

// transport 为 nil 时 Writer 使用 kafka.DefaultTransport
func (s *security) transport() kafka.RoundTripper {
	if s == nil {
		return nil
	}
	return &kafka.Transport{TLS: s.tls, SASL: s.sasl}
}

func buildTLS(cfg *TLSConfig) (*tls.Config, error) {
	tc := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tc.RootCAs = pool
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return tc, nil
	}
	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("kafka: load client certificate: %w", err)
	}
	tc.Certificates = append(tc.Certificates, pair)
	return tc, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kafka: read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidConfig, path)
	}
	return pool, nil
}

// buildSASL 机制名不区分大小写，为空时按 PLAIN 处理
func buildSASL(cfg *SASLConfig) (sasl.Mechanism, error) {
	name := strings.ToUpper(strings.TrimSpace(cfg.Mechanism))
	if name == "" {
		name = "PLAIN"
	}
	factory, ok := mechanisms[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported sasl mechanism %q", ErrInvalidConfig, cfg.Mechanism)
	}
	return factory(cfg.Username, cfg.Password)
}
