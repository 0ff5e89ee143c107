package system

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats 进程与主机资源快照
type Stats struct {
	// 进程 CPU 使用率 (0-100 × 核数)
	CPUPercent float64 `json:"cpu"`
	// 主机 CPU 使用率 (0-100)
	HostCPUPercent float64 `json:"hostCpu"`
	// 进程常驻内存
	MemoryBytes uint64 `json:"memoryBytes"`
	// 进程内存占主机总内存比例 (0-100)
	MemoryPercent float64   `json:"memory"`
	HeapAlloc     uint64    `json:"heapAlloc"`
	Goroutines    int       `json:"goroutines"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Collector 周期采集资源快照，读取方拿到的是最近一次结果
type Collector struct {
	proc *process.Process

	mu    sync.RWMutex
	stats Stats
}

// New 创建采集器
func New() (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Collector{proc: proc}, nil
}

// Run 立即采集一次，然后每 interval 采集一次，阻塞到 ctx 取消
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	c.Collect(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Collect 执行一次采集；单项失败时保留零值
func (c *Collector) Collect(ctx context.Context) Stats {
	var stats Stats

	if v, err := c.proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = v
	}
	if v, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(v) > 0 {
		stats.HostCPUPercent = v[0]
	}
	if info, err := c.proc.MemoryInfoWithContext(ctx); err == nil {
		stats.MemoryBytes = info.RSS
		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm.Total > 0 {
			stats.MemoryPercent = float64(info.RSS) / float64(vm.Total) * 100
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.HeapAlloc = ms.HeapAlloc
	stats.Goroutines = runtime.NumGoroutine()
	stats.UpdatedAt = time.Now()

	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
	return stats
}

// Stats 最近一次采集结果
func (c *Collector) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
