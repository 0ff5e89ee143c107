// Package prediction 到港时间预测
package prediction

import (
	"math"
	"strings"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
)

// VesselSpeedKmh 19 节航速
const VesselSpeedKmh = 35.2

// DefaultReliability 未知承运人的准点率
const DefaultReliability = 0.80

var carrierReliability = map[string]float64{
	"maersk":      0.92,
	"msc":         0.88,
	"cma cgm":     0.86,
	"cosco":       0.84,
	"hapag-lloyd": 0.89,
}

// 延误偏移
const (
	congestionMediumDelay = 12 * time.Hour
	congestionHighDelay   = 36 * time.Hour
	weatherDelay          = 24 * time.Hour
	p75Band               = 12 * time.Hour
	p95Band               = 48 * time.Hour
)

// Input 预测输入
type Input struct {
	ContainerID     string
	CurrentLocation string
	Destination     string
	Carrier         string
	Route           container.Route
	PortCongestion  container.Congestion
	WeatherDelay    bool
}

// InputFrom 从快照构造输入
func InputFrom(s *container.Snapshot) Input {
	return Input{
		ContainerID:     s.ID,
		CurrentLocation: s.Location,
		Destination:     s.Destination,
		Carrier:         s.Carrier,
		Route:           s.Route,
		PortCongestion:  s.PortCongestion,
		WeatherDelay:    s.WeatherDelay,
	}
}

// ETA 分位数预测
type ETA struct {
	ContainerID string    `json:"containerNumber"`
	Destination string    `json:"destination,omitempty"`
	P50         time.Time `json:"p50"`
	P75         time.Time `json:"p75"`
	P95         time.Time `json:"p95"`
	Confidence  float64   `json:"confidence"`

	BaseHours       float64 `json:"baseHours"`
	CarrierDelay    float64 `json:"carrierDelayHours"`
	CongestionDelay float64 `json:"congestionDelayHours"`
	WeatherDelay    float64 `json:"weatherDelayHours"`
}

// Reliability 承运人准点率，名称不区分大小写
func Reliability(carrier string) float64 {
	if r, ok := carrierReliability[strings.ToLower(strings.TrimSpace(carrier))]; ok {
		return r
	}
	return DefaultReliability
}

// PredictETA 预测到港时间
func PredictETA(in Input, now time.Time) ETA {
	base := baseHours(in.Route)
	reliability := Reliability(in.Carrier)

	carrierDelay := time.Duration((1 - reliability) * 48 * float64(time.Hour))

	var congestionDelay time.Duration
	switch in.PortCongestion {
	case container.CongestionMedium:
		congestionDelay = congestionMediumDelay
	case container.CongestionHigh:
		congestionDelay = congestionHighDelay
	}

	var weather time.Duration
	if in.WeatherDelay {
		weather = weatherDelay
	}

	p50 := now.Add(time.Duration(base*float64(time.Hour)) + carrierDelay + congestionDelay + weather)
	return ETA{
		ContainerID:     in.ContainerID,
		Destination:     in.Destination,
		P50:             p50,
		P75:             p50.Add(p75Band),
		P95:             p50.Add(p95Band),
		Confidence:      math.Round((0.85+reliability*0.1)*1000) / 1000,
		BaseHours:       base,
		CarrierDelay:    carrierDelay.Hours(),
		CongestionDelay: congestionDelay.Hours(),
		WeatherDelay:    weather.Hours(),
	}
}

func baseHours(r container.Route) float64 {
	switch {
	case r.DurationHours > 0:
		return r.DurationHours
	case r.DistanceKm > 0:
		return r.DistanceKm / VesselSpeedKmh
	default:
		return 0
	}
}
