package idgen

import "sync/atomic"

// Generator ID 生成器接口
type Generator interface {
	// NextID 生成下一个唯一 ID，同一生成器内单调递增
	NextID() (uint64, error)
}

// Sequence 进程内自增生成器，测试与单机演示使用
type Sequence struct {
	n atomic.Uint64
}

// NextID 实现 Generator
func (s *Sequence) NextID() (uint64, error) {
	return s.n.Add(1), nil
}
