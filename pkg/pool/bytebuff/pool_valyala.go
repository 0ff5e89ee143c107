// Package bytebuff 基于 valyala/bytebufferpool 的编码缓冲池
package bytebuff

import (
	"encoding/json"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Pool 带统计的缓冲池
type Pool struct {
	pool bytebufferpool.Pool

	gets atomic.Uint64
	puts atomic.Uint64
}

// NewPool 创建缓冲池
func NewPool() *Pool {
	return &Pool{}
}

// Get 取出一个已清空的缓冲
func (p *Pool) Get() *bytebufferpool.ByteBuffer {
	p.gets.Add(1)
	return p.pool.Get()
}

// Put 归还缓冲，归还后不得再使用
func (p *Pool) Put(buf *bytebufferpool.ByteBuffer) {
	if buf == nil {
		return
	}
	p.puts.Add(1)
	p.pool.Put(buf)
}

// MarshalJSON 用池中缓冲编码 v，返回独立的字节切片（不含末尾换行）
func (p *Pool) MarshalJSON(v any) ([]byte, error) {
	buf := p.Get()
	defer p.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	b := buf.B
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Stats 返回取出与归还次数
func (p *Pool) Stats() (gets, puts uint64) {
	return p.gets.Load(), p.puts.Load()
}
