// Package store 进程内集装箱快照，按集装箱串行化更新
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/pkg/cache/lru"
	"github.com/lk2023060901/cargorelay/pkg/config"
	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/lk2023060901/cargorelay/pkg/util/shard"
	"golang.org/x/sync/singleflight"
)

// Store 快照缓存，首次访问时从 Reader 加载，之后以缓存为准
type Store struct {
	config *Config
	reader Reader
	logger logger.Logger

	// 同一集装箱的 Update 串行执行
	locks *shard.Locks

	mu        sync.RWMutex
	snapshots map[string]*container.Snapshot

	loads  singleflight.Group
	misses *lru.LRU[string, struct{}]
}

// Option 选项
type Option func(*Store)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New 创建缓存，reader 为 nil 时使用空的 MemoryReader
func New(cfg *Config, reader Reader, opts ...Option) (*Store, error) {
	newCfg, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("store: merge config: %w", err)
	}
	if err := config.Validate(newCfg); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	if reader == nil {
		reader = NewMemoryReader()
	}

	s := &Store{
		config:    newCfg,
		reader:    reader,
		logger:    logger.NewNoop(),
		locks:     shard.NewLocks(newCfg.Shards),
		snapshots: make(map[string]*container.Snapshot),
		misses: lru.New[string, struct{}](lru.Config{
			MaxSize:    newCfg.MissCacheSize,
			DefaultTTL: newCfg.MissTTL,
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get 返回快照副本，不存在时返回 ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (*container.Snapshot, error) {
	if snap := s.cached(id); snap != nil {
		return snap.Clone(), nil
	}
	snap, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

// Update 持有集装箱锁执行 fn，fn 返回 nil 时保存修改并返回副本
// 缓存与后端都没有的集装箱从只有 ID 的空快照开始
func (s *Store) Update(ctx context.Context, id string, fn func(snap *container.Snapshot) error) (*container.Snapshot, error) {
	mu := s.locks.For(id)
	mu.Lock()
	defer mu.Unlock()

	cur := s.cached(id)
	if cur == nil {
		loaded, err := s.load(ctx, id)
		switch {
		case err == nil:
			cur = loaded
		case errors.Is(err, ErrNotFound):
			cur = &container.Snapshot{ID: id}
		default:
			s.logger.Warn("load container failed, starting from empty snapshot", "container_id", id, "error", err)
			cur = &container.Snapshot{ID: id}
		}
	}

	working := cur.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshots[id] = working
	s.mu.Unlock()
	s.misses.Delete(id)
	return working.Clone(), nil
}

// Len 缓存中的集装箱数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

func (s *Store) cached(id string) *container.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[id]
}

// load 合并并发加载，结果写入缓存；已被 Update 写入的快照优先
func (s *Store) load(ctx context.Context, id string) (*container.Snapshot, error) {
	if _, miss := s.misses.Get(id); miss {
		return nil, ErrNotFound
	}

	v, err, _ := s.loads.Do(id, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, s.config.LoadTimeout)
		defer cancel()

		snap, err := s.reader.Load(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.misses.Set(id, struct{}{})
			}
			return nil, err
		}
		if snap.ID == "" {
			snap.ID = id
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.snapshots[id]; ok {
			return existing, nil
		}
		s.snapshots[id] = snap
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*container.Snapshot), nil
}
