package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/pkg/database/redis"
)

// RedisReader 读取 <prefix>:<id> 下的 JSON 快照
type RedisReader struct {
	client *redis.Client
	prefix string
}

func NewRedisReader(client *redis.Client, prefix string) *RedisReader {
	return &RedisReader{client: client, prefix: prefix}
}

func (r *RedisReader) key(id string) string {
	if r.prefix == "" {
		return id
	}
	return r.prefix + ":" + id
}

func (r *RedisReader) Load(ctx context.Context, id string) (*container.Snapshot, error) {
	var s container.Snapshot
	if err := r.client.GetJSON(ctx, r.key(id), &s); err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "store: load %s from redis", id)
	}
	if s.ID == "" {
		s.ID = id
	}
	return &s, nil
}
