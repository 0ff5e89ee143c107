package sliding

import (
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/config"
)

// WindowConfig 滑动窗口配置
type WindowConfig struct {
	WindowSize  time.Duration `mapstructure:"window_size" json:"window_size"`
	BucketCount int           `mapstructure:"bucket_count" json:"bucket_count"`
}

// DefaultWindowConfig 默认 60 秒窗口，每秒一个桶
func DefaultWindowConfig() *WindowConfig {
	return &WindowConfig{
		WindowSize:  60 * time.Second,
		BucketCount: 60,
	}
}

type bucket struct {
	epoch      int64 // 桶对应的时间片序号
	count      int64
	failures   int64
	totalTime  time.Duration
	maxLatency time.Duration
}

// Window 滑动窗口统计器
// 桶按时间片懒轮转，不需要后台协程
type Window struct {
	width   time.Duration
	buckets []bucket
	now     func() time.Time

	mu sync.Mutex
}

// NewWindow 创建滑动窗口统计器
func NewWindow(cfg *WindowConfig) (*Window, error) {
	newCfg, err := config.MergeConfig(DefaultWindowConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("sliding: merge config: %w", err)
	}
	if newCfg.BucketCount <= 0 || newCfg.WindowSize < time.Duration(newCfg.BucketCount) {
		return nil, fmt.Errorf("sliding: invalid window %s / %d buckets", newCfg.WindowSize, newCfg.BucketCount)
	}

	return &Window{
		width:   newCfg.WindowSize / time.Duration(newCfg.BucketCount),
		buckets: make([]bucket, newCfg.BucketCount),
		now:     time.Now,
	}, nil
}

func (w *Window) epoch(t time.Time) int64 {
	return t.UnixNano() / int64(w.width)
}

// Record 记录一次处理
func (w *Window) Record(latency time.Duration, success bool) {
	e := w.epoch(w.now())

	w.mu.Lock()
	defer w.mu.Unlock()

	b := &w.buckets[e%int64(len(w.buckets))]
	if b.epoch != e {
		*b = bucket{epoch: e}
	}
	b.count++
	b.totalTime += latency
	if !success {
		b.failures++
	}
	if latency > b.maxLatency {
		b.maxLatency = latency
	}
}

// Stats 统计结果
type Stats struct {
	// 每秒处理数
	Rate       float64       `json:"rate"`
	AvgLatency time.Duration `json:"avgLatency"`
	MaxLatency time.Duration `json:"maxLatency"`
	Total      int64         `json:"total"`
	Failures   int64         `json:"failures"`
}

// Stats 汇总窗口内未过期的桶
func (w *Window) Stats() Stats {
	current := w.epoch(w.now())
	oldest := current - int64(len(w.buckets)) + 1

	w.mu.Lock()
	defer w.mu.Unlock()

	var s Stats
	var total time.Duration
	for _, b := range w.buckets {
		if b.epoch < oldest || b.epoch > current || b.count == 0 {
			continue
		}
		s.Total += b.count
		s.Failures += b.failures
		total += b.totalTime
		if b.maxLatency > s.MaxLatency {
			s.MaxLatency = b.maxLatency
		}
	}

	s.Rate = float64(s.Total) / (w.width * time.Duration(len(w.buckets))).Seconds()
	if s.Total > 0 {
		s.AvgLatency = total / time.Duration(s.Total)
	}
	return s
}
