package gateway

import (
	"encoding/json"
	"time"
)

// 客户端消息类型
const (
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgTrack       = "track"
	MsgPresence    = "presence"
	MsgBroadcast   = "broadcast"
	MsgPing        = "ping"
)

// 服务端回复类型
const (
	ReplyConnected    = "connected"
	ReplySubscribed   = "subscribed"
	ReplyUnsubscribed = "unsubscribed"
	ReplyPong         = "pong"
	ReplyError        = "error"
)

// ClientMessage 客户端帧 {"type": ..., "data": {...}}
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type roomsData struct {
	Rooms []string `json:"rooms"`
}

type trackData struct {
	ContainerID     string `json:"containerId"`
	ContainerNumber string `json:"containerNumber"`
}

func (d trackData) id() string {
	if d.ContainerID != "" {
		return d.ContainerID
	}
	return d.ContainerNumber
}

type presenceData struct {
	Status   string `json:"status"`
	Activity string `json:"activity,omitempty"`
}

type broadcastData struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Room    string `json:"room,omitempty"`
}

type connectedData struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	Role       string    `json:"role,omitempty"`
	Rooms      []string  `json:"rooms"`
	ServerTime time.Time `json:"serverTime"`
}

type presencePayload struct {
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	Activity  string    `json:"activity,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
