package redis

import "errors"

var (
	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("redis: config is nil")

	// ErrInvalidConfig Standalone/Master-Slave/Cluster 必须且只能配置一种
	ErrInvalidConfig = errors.New("redis: must specify exactly one of standalone, master-slave, or cluster mode")

	// ErrNil 键不存在
	ErrNil = errors.New("redis: nil")

	// ErrInvalidSlaveLoadBalance 无效的从库负载均衡策略
	ErrInvalidSlaveLoadBalance = errors.New("redis: slave load balance must be 'random' or 'round_robin'")

	// ErrSubscriptionClosed 订阅已关闭
	ErrSubscriptionClosed = errors.New("redis: subscription closed")
)
