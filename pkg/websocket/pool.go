package websocket

import (
	"sync"
	"sync/atomic"
)

// ConnectionPool 活跃连接集合，负责总数与单 IP 限制
type ConnectionPool struct {
	config PoolConfig

	connections sync.Map // connID -> *Connection

	ipMu    sync.Mutex
	ipCount map[string]int

	total  atomic.Int64
	active atomic.Int64
	closed atomic.Bool
}

// NewConnectionPool 创建连接池
func NewConnectionPool(cfg PoolConfig) *ConnectionPool {
	return &ConnectionPool{
		config:  cfg,
		ipCount: make(map[string]int),
	}
}

// Reserve 预占一个名额，升级前调用；失败时无需 Release
func (p *ConnectionPool) Reserve(ip string) error {
	if p.closed.Load() {
		return ErrServerClosed
	}

	p.ipMu.Lock()
	defer p.ipMu.Unlock()

	if p.config.MaxConnections > 0 && p.active.Load() >= int64(p.config.MaxConnections) {
		return ErrPoolFull
	}
	if p.config.MaxConnectionsPerIP > 0 && p.ipCount[ip] >= p.config.MaxConnectionsPerIP {
		return ErrMaxConnectionsPerIP
	}
	p.ipCount[ip]++
	p.active.Add(1)
	return nil
}

// Release 归还 Reserve 占用的名额
func (p *ConnectionPool) Release(ip string) {
	p.ipMu.Lock()
	defer p.ipMu.Unlock()

	if n := p.ipCount[ip]; n <= 1 {
		delete(p.ipCount, ip)
	} else {
		p.ipCount[ip] = n - 1
	}
	p.active.Add(-1)
}

// Add 登记已升级的连接
func (p *ConnectionPool) Add(conn *Connection) {
	p.connections.Store(conn.ID(), conn)
	p.total.Add(1)
}

// Remove 移除连接，返回是否存在
func (p *ConnectionPool) Remove(connID string) bool {
	_, ok := p.connections.LoadAndDelete(connID)
	return ok
}

// Range 遍历连接，fn 返回 false 时停止
func (p *ConnectionPool) Range(fn func(conn *Connection) bool) {
	p.connections.Range(func(_, v any) bool {
		return fn(v.(*Connection))
	})
}

// Count 活跃连接数
func (p *ConnectionPool) Count() int {
	return int(p.active.Load())
}

// Stats 统计信息
func (p *ConnectionPool) Stats() Stats {
	p.ipMu.Lock()
	perIP := make(map[string]int, len(p.ipCount))
	for ip, n := range p.ipCount {
		perIP[ip] = n
	}
	p.ipMu.Unlock()

	return Stats{
		TotalConnections:  p.total.Load(),
		ActiveConnections: p.active.Load(),
		ConnectionsPerIP:  perIP,
	}
}

// CloseAll 拒绝新连接并关闭所有现有连接
func (p *ConnectionPool) CloseAll(code int, reason string) {
	p.closed.Store(true)
	p.Range(func(conn *Connection) bool {
		_ = conn.CloseWithCode(code, reason)
		return true
	})
}
