package websocket

import (
	"encoding/json"
	"time"
)

// MessageType WebSocket 帧类型
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

// Priority 出站消息优先级
type Priority uint8

const (
	// PriorityNormal 队列满时可被丢弃
	PriorityNormal Priority = iota
	// PriorityCritical 总是先于普通消息发送，且优先保留
	PriorityCritical
)

func (p Priority) String() string {
	if p == PriorityCritical {
		return "critical"
	}
	return "normal"
}

// Message WebSocket 消息
type Message struct {
	Type      MessageType
	Data      []byte
	Priority  Priority
	Timestamp time.Time
}

// NewTextMessage 创建文本消息
func NewTextMessage(data []byte, priority Priority) *Message {
	return &Message{Type: TextMessage, Data: data, Priority: priority, Timestamp: time.Now()}
}

// NewJSONMessage 将 v 编码为 JSON 文本消息
func NewJSONMessage(v any, priority Priority) (*Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NewTextMessage(data, priority), nil
}

// Stats 连接池统计
type Stats struct {
	TotalConnections  int64          `json:"total_connections"`
	ActiveConnections int64          `json:"active_connections"`
	ConnectionsPerIP  map[string]int `json:"connections_per_ip"`
}
