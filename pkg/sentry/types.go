package sentry

// Reporter 组件上报异常用的最小接口
type Reporter interface {
	CaptureError(err error, tags map[string]string)
	CapturePanic(recovered any, tags map[string]string)
}

// Nop 不上报任何事件
type Nop struct{}

func (Nop) CaptureError(error, map[string]string) {}
func (Nop) CapturePanic(any, map[string]string)   {}

// Stats 统计信息
type Stats struct {
	EventsTotal    uint64 `json:"eventsTotal"`
	EventsCaptured uint64 `json:"eventsCaptured"`
	EventsDropped  uint64 `json:"eventsDropped"`
}
