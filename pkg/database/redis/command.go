package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Get 获取字符串值（从库读取）
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.reader().Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNil
		}
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, nil
}

// GetBytes 获取原始字节
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	val, err := c.reader().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNil
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, nil
}

// GetJSON 读取 JSON 并解码到 v
func (c *Client) GetJSON(ctx context.Context, key string, v any) error {
	data, err := c.GetBytes(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return nil
}

// Set 写入字符串值（主库）
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if err := c.master.Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// SetJSON 编码为 JSON 后写入
func (c *Client) SetJSON(ctx context.Context, key string, v any, expiration time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, expiration)
}

// Del 删除键
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.master.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: del: %w", err)
	}
	return n, nil
}

// Exists 返回存在的键数量
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.reader().Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: exists: %w", err)
	}
	return n, nil
}
