package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/crypto"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/notify"
)

const (
	HeaderTimestamp = "X-Cargorelay-Timestamp"
	HeaderSignature = "X-Cargorelay-Signature"
)

// Notifier 将告警以 JSON POST 到配置的地址
type Notifier struct {
	config *Config
	client *http.Client
	signer *crypto.HMACSigner
	logger logger.Logger
	now    func() time.Time
}

// Option 选项
type Option func(*Notifier)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

// New 创建通知器
func New(cfg *Config, opts ...Option) (*Notifier, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := newCfg.Validate(); err != nil {
		return nil, err
	}

	n := &Notifier{
		config: newCfg,
		client: &http.Client{Timeout: newCfg.Timeout},
		logger: logger.NewNoop(),
		now:    time.Now,
	}
	if newCfg.Secret != "" {
		n.signer = crypto.NewHMACSigner([]byte(newCfg.Secret))
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *Notifier) Name() string { return "webhook" }

// Send 发送告警，5xx 与网络错误按配置重试
func (n *Notifier) Send(ctx context.Context, alert *notify.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("webhook: marshal alert: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(n.config.RetryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retry, err := n.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
		n.logger.Warn("webhook delivery failed", "attempt", attempt+1, "fingerprint", alert.Fingerprint, "error", err)
	}
	return fmt.Errorf("%w: %v", notify.ErrSendFailed, lastErr)
}

func (n *Notifier) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}
	if n.signer != nil {
		ts := strconv.FormatInt(n.now().Unix(), 10)
		req.Header.Set(HeaderTimestamp, ts)
		req.Header.Set(HeaderSignature, n.signer.Sign([]byte(ts), []byte("\n"), body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
}
