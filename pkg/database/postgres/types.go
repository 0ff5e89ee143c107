package postgres

import (
	"time"

	"github.com/Masterminds/squirrel"
)

// PoolStats 连接池统计信息
type PoolStats struct {
	AcquireCount    int64
	AcquireDuration time.Duration
	AcquiredConns   int32
	IdleConns       int32
	MaxConns        int32
	TotalConns      int32
}

// QueryBuilder 使用 $n 占位符的 squirrel 构建器
var QueryBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Sqlizer squirrel 语句
type Sqlizer = squirrel.Sqlizer
