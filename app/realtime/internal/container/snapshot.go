// Package container 集装箱状态模型
package container

import "time"

// Status 运输状态
type Status string

const (
	StatusDeparted  Status = "departed"
	StatusInTransit Status = "in_transit"
	StatusArriving  Status = "arriving"
	StatusDelivered Status = "delivered"
)

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusDeparted, StatusInTransit, StatusArriving, StatusDelivered:
		return true
	}
	return false
}

// Congestion 港口拥堵程度
type Congestion string

const (
	CongestionLow    Congestion = "low"
	CongestionMedium Congestion = "medium"
	CongestionHigh   Congestion = "high"
)

// DefaultPortEfficiency 未上报港口效率时使用的值
const DefaultPortEfficiency = 0.9

// Route 航线
type Route struct {
	DistanceKm    float64 `json:"distanceKm"`
	DurationHours float64 `json:"durationHours"`
}

// Snapshot 单个集装箱的最新状态，只由入站 container 事件修改
type Snapshot struct {
	ID          string `json:"containerId"`
	Carrier     string `json:"carrier,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	Location    string `json:"location,omitempty"`
	Status      Status `json:"status,omitempty"`

	HoursAtPort            float64    `json:"hoursAtPort"`
	PortCongestion         Congestion `json:"portCongestion,omitempty"`
	DocumentsIncomplete    bool       `json:"documentsIncomplete"`
	WeatherDelay           bool       `json:"weatherDelay"`
	PortEfficiency         *float64   `json:"portEfficiency,omitempty"`
	CustomsProcessingHours float64    `json:"customsProcessingHours"`

	// 冷藏箱传感器
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`

	Route     Route       `json:"route"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Risk      *Assessment `json:"risk,omitempty"`
}

// Efficiency 港口效率，缺省为 DefaultPortEfficiency
func (s *Snapshot) Efficiency() float64 {
	if s.PortEfficiency == nil {
		return DefaultPortEfficiency
	}
	return *s.PortEfficiency
}

// Clone 深拷贝，读方拿到的副本与缓存互不影响
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.PortEfficiency = clonePtr(s.PortEfficiency)
	c.Temperature = clonePtr(s.Temperature)
	c.Humidity = clonePtr(s.Humidity)
	if s.Risk != nil {
		r := *s.Risk
		r.Factors = append([]Factor(nil), s.Risk.Factors...)
		r.Anomalies = append([]Anomaly(nil), s.Risk.Anomalies...)
		c.Risk = &r
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
