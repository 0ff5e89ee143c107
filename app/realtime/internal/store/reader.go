package store

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/pkg/database/postgres"
	"github.com/lk2023060901/cargorelay/pkg/database/redis"
	"github.com/lk2023060901/cargorelay/pkg/logger"
)

// Reader 外部集装箱存储的只读接口，不存在时返回 ErrNotFound
type Reader interface {
	Load(ctx context.Context, id string) (*container.Snapshot, error)
}

// NewReader 按配置创建读取后端，返回的 close 在服务退出时调用
func NewReader(ctx context.Context, cfg *Config, log logger.Logger) (Reader, func() error, error) {
	nop := func() error { return nil }
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryReader(), nop, nil
	case BackendRedis:
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, errors.Wrap(err, "store: create redis client")
		}
		return NewRedisReader(client, cfg.KeyPrefix), client.Close, nil
	case BackendPostgres:
		client, err := postgres.New(ctx, cfg.Postgres, postgres.WithLogger(log))
		if err != nil {
			return nil, nil, errors.Wrap(err, "store: create postgres client")
		}
		return NewPostgresReader(client, cfg.Table), func() error {
			client.Close()
			return nil
		}, nil
	default:
		return nil, nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
	}
}

// MemoryReader 进程内后端，单实例部署与测试使用
type MemoryReader struct {
	mu    sync.RWMutex
	items map[string]*container.Snapshot
}

func NewMemoryReader(items ...*container.Snapshot) *MemoryReader {
	r := &MemoryReader{items: make(map[string]*container.Snapshot, len(items))}
	for _, s := range items {
		r.Put(s)
	}
	return r
}

// Put 写入或替换
func (r *MemoryReader) Put(s *container.Snapshot) {
	r.mu.Lock()
	r.items[s.ID] = s.Clone()
	r.mu.Unlock()
}

func (r *MemoryReader) Load(_ context.Context, id string) (*container.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}
