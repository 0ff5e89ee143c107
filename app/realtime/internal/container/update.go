package container

import "time"

// Update 一次部分更新，nil 字段表示未上报
type Update struct {
	Carrier     *string `json:"carrier,omitempty"`
	Origin      *string `json:"origin,omitempty"`
	Destination *string `json:"destination,omitempty"`
	Location    *string `json:"location,omitempty"`
	Status      *Status `json:"status,omitempty"`

	HoursAtPort            *float64    `json:"hoursAtPort,omitempty"`
	PortCongestion         *Congestion `json:"portCongestion,omitempty"`
	DocumentsIncomplete    *bool       `json:"documentsIncomplete,omitempty"`
	WeatherDelay           *bool       `json:"weatherDelay,omitempty"`
	PortEfficiency         *float64    `json:"portEfficiency,omitempty"`
	CustomsProcessingHours *float64    `json:"customsProcessingHours,omitempty"`
	Temperature            *float64    `json:"temperature,omitempty"`
	Humidity               *float64    `json:"humidity,omitempty"`
	Route                  *Route      `json:"route,omitempty"`
}

// HasStatusChange 是否包含状态类字段（status / location）
func (u *Update) HasStatusChange() bool {
	return u.Status != nil || u.Location != nil
}

// Apply 把更新合并进快照
func (u *Update) Apply(s *Snapshot, at time.Time) {
	set(&s.Carrier, u.Carrier)
	set(&s.Origin, u.Origin)
	set(&s.Destination, u.Destination)
	set(&s.Location, u.Location)
	set(&s.Status, u.Status)
	set(&s.HoursAtPort, u.HoursAtPort)
	set(&s.PortCongestion, u.PortCongestion)
	set(&s.DocumentsIncomplete, u.DocumentsIncomplete)
	set(&s.WeatherDelay, u.WeatherDelay)
	set(&s.CustomsProcessingHours, u.CustomsProcessingHours)
	set(&s.Route, u.Route)

	if u.PortEfficiency != nil {
		s.PortEfficiency = clonePtr(u.PortEfficiency)
	}
	if u.Temperature != nil {
		s.Temperature = clonePtr(u.Temperature)
	}
	if u.Humidity != nil {
		s.Humidity = clonePtr(u.Humidity)
	}
	s.UpdatedAt = at
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
