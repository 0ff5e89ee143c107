package conc

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// Pool 基于 ants 的有界协程池
type Pool[T any] struct {
	inner *ants.Pool
}

// PoolOption 协程池选项
type PoolOption func(*ants.Options)

// WithNonBlocking 池满时 Submit 立即失败而不是等待
func WithNonBlocking(nonBlocking bool) PoolOption {
	return func(o *ants.Options) {
		o.Nonblocking = nonBlocking
	}
}

// WithPreAlloc 预分配 worker 队列
func WithPreAlloc(preAlloc bool) PoolOption {
	return func(o *ants.Options) {
		o.PreAlloc = preAlloc
	}
}

// WithPanicHandler 设置任务 panic 处理函数
func WithPanicHandler(fn func(any)) PoolOption {
	return func(o *ants.Options) {
		o.PanicHandler = fn
	}
}

// NewPool 创建容量为 size 的协程池，size <= 0 时不限容量
func NewPool[T any](size int, opts ...PoolOption) *Pool[T] {
	options := ants.Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if size <= 0 {
		size = -1
	}

	inner, err := ants.NewPool(size, ants.WithOptions(options))
	if err != nil {
		panic(fmt.Sprintf("conc: create pool: %v", err))
	}
	return &Pool[T]{inner: inner}
}

// Submit 提交任务，提交失败时返回的 Future 直接携带错误
func (p *Pool[T]) Submit(fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	err := p.inner.Submit(func() {
		defer close(f.ch)
		f.value, f.err = fn()
	})
	if err != nil {
		f.err = err
		close(f.ch)
	}
	return f
}

// Running 正在运行的 worker 数
func (p *Pool[T]) Running() int {
	return p.inner.Running()
}

// Cap 池容量
func (p *Pool[T]) Cap() int {
	return p.inner.Cap()
}

// Free 空闲容量
func (p *Pool[T]) Free() int {
	return p.inner.Free()
}

// Release 释放协程池
func (p *Pool[T]) Release() {
	p.inner.Release()
}
