package postgres

import (
	"context"
	"fmt"
)

func (c *Client) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.QueryTimeout)
	}
	return ctx, func() {}
}

// QueryOne 查询单条记录，无结果时返回 ErrNoRows
func QueryOne[T any](ctx context.Context, c *Client, sql string, args ...any) (*T, error) {
	ctx, cancel := c.withQueryTimeout(ctx)
	defer cancel()

	rows, err := c.reader().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	return scanOne[T](rows)
}

// QueryAll 查询多条记录
func QueryAll[T any](ctx context.Context, c *Client, sql string, args ...any) ([]*T, error) {
	ctx, cancel := c.withQueryTimeout(ctx)
	defer cancel()

	rows, err := c.reader().Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	return scanAll[T](rows)
}

// SelectOne 用 squirrel 语句查询单条记录
func SelectOne[T any](ctx context.Context, c *Client, q Sqlizer) (*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build query: %w", err)
	}
	return QueryOne[T](ctx, c, sql, args...)
}

// Exec 执行写操作（主库），返回影响行数
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, cancel := c.withQueryTimeout(ctx)
	defer cancel()

	tag, err := c.master.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: exec: %w", err)
	}
	return tag.RowsAffected(), nil
}
