package prediction

import (
	"testing"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func TestPredictETA_DurationWins(t *testing.T) {
	eta := PredictETA(Input{
		Carrier: "Maersk",
		Route:   container.Route{DistanceKm: 10000, DurationHours: 100},
	}, now)

	assert.Equal(t, 100.0, eta.BaseHours)
	assert.InDelta(t, 3.84, eta.CarrierDelay, 1e-6)
	assert.Equal(t, 12*time.Hour, eta.P75.Sub(eta.P50))
	assert.Equal(t, 48*time.Hour, eta.P95.Sub(eta.P50))
	assert.InDelta(t, 103.84, eta.P50.Sub(now).Hours(), 1e-3)
	assert.Equal(t, 0.942, eta.Confidence)
}

func TestPredictETA_DistanceFallback(t *testing.T) {
	eta := PredictETA(Input{Route: container.Route{DistanceKm: 352}}, now)

	assert.InDelta(t, 10.0, eta.BaseHours, 1e-9)
	assert.InDelta(t, 9.6, eta.CarrierDelay, 1e-6)
	assert.Equal(t, 0.93, eta.Confidence)
}

func TestPredictETA_Offsets(t *testing.T) {
	plain := PredictETA(Input{Carrier: "MSC"}, now)
	delayed := PredictETA(Input{
		Carrier:        "msc",
		PortCongestion: container.CongestionHigh,
		WeatherDelay:   true,
	}, now)

	assert.Equal(t, 60*time.Hour, delayed.P50.Sub(plain.P50))
	assert.Equal(t, 36.0, delayed.CongestionDelay)
	assert.Equal(t, 24.0, delayed.WeatherDelay)

	medium := PredictETA(Input{Carrier: "MSC", PortCongestion: container.CongestionMedium}, now)
	assert.Equal(t, 12*time.Hour, medium.P50.Sub(plain.P50))
}

func TestReliability(t *testing.T) {
	assert.Equal(t, 0.92, Reliability("MAERSK"))
	assert.Equal(t, 0.86, Reliability("CMA CGM"))
	assert.Equal(t, 0.89, Reliability("Hapag-Lloyd"))
	assert.Equal(t, DefaultReliability, Reliability("Evergreen"))
}

func TestInputFrom(t *testing.T) {
	in := InputFrom(&container.Snapshot{
		ID:           "MSCU1234567",
		Location:     "Singapore",
		Destination:  "Rotterdam",
		Carrier:      "MSC",
		WeatherDelay: true,
	})
	assert.Equal(t, "MSCU1234567", in.ContainerID)
	assert.Equal(t, "Singapore", in.CurrentLocation)
	assert.True(t, in.WeatherDelay)
}
