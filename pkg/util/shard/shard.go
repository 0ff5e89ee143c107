// Package shard 基于 xxhash 的键分片
package shard

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Index 返回 key 落在 [0, n) 中的分片号，n <= 0 时返回 0
func Index(key string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(n))
}

// Locks 条带锁，同一 key 总是映射到同一把锁
type Locks struct {
	stripes []sync.Mutex
}

// NewLocks 创建 n 个条带
func NewLocks(n int) *Locks {
	if n <= 0 {
		n = 256
	}
	return &Locks{stripes: make([]sync.Mutex, n)}
}

// For 返回 key 对应的锁
func (l *Locks) For(key string) *sync.Mutex {
	return &l.stripes[Index(key, len(l.stripes))]
}

// Do 持有 key 对应的锁执行 fn
func (l *Locks) Do(key string, fn func()) {
	mu := l.For(key)
	mu.Lock()
	defer mu.Unlock()
	fn()
}

// LockAll 按分片号升序锁住 keys 涉及的全部条带，返回解锁函数
// 固定加锁顺序，多个调用方同时锁多个 key 时不会死锁
func (l *Locks) LockAll(keys []string) (unlock func()) {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		i := Index(k, len(l.stripes))
		if !slices.Contains(idx, i) {
			idx = append(idx, i)
		}
	}
	slices.Sort(idx)
	for _, i := range idx {
		l.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			l.stripes[idx[j]].Unlock()
		}
	}
}
