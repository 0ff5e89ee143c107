package diag

import (
	"context"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/metrics/system"
	"github.com/lk2023060901/cargorelay/pkg/util/conc"
)

// Sampler 后台周期采集进程资源，/health 读取最近一次结果
type Sampler struct {
	collector *system.Collector
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	future *conc.Future[struct{}]
}

// NewSampler interval 不大于 0 时按 5 秒采样
func NewSampler(c *system.Collector, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sampler{collector: c, interval: interval, ctx: ctx, cancel: cancel}
}

func (s *Sampler) Stats() system.Stats {
	return s.collector.Stats()
}

func (s *Sampler) Start() error {
	s.future = conc.Go(func() (struct{}, error) {
		s.collector.Run(s.ctx, s.interval)
		return struct{}{}, nil
	})
	return nil
}

func (s *Sampler) Stop() error {
	s.cancel()
	if s.future != nil {
		_, _ = s.future.Await()
	}
	return nil
}
