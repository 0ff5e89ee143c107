package risk

import (
	"testing"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestScore_ZeroInput(t *testing.T) {
	score, factors := Score(&container.Snapshot{ID: "MSCU1234567"})

	assert.Equal(t, 0.02, score)
	require.Len(t, factors, 1)
	assert.Equal(t, "port_efficiency", factors[0].Name)
	assert.Equal(t, container.LevelLow, LevelFor(score))
}

func TestScore_AllFactorsClampedToOne(t *testing.T) {
	s := &container.Snapshot{
		HoursAtPort:            500,
		PortCongestion:         container.CongestionHigh,
		DocumentsIncomplete:    true,
		WeatherDelay:           true,
		PortEfficiency:         ptr(0.0),
		CustomsProcessingHours: 100,
	}

	score, factors := Score(s)
	assert.Equal(t, 1.0, score)
	assert.Len(t, factors, 6)
}

func TestScore_MonotoneInHoursAtPort(t *testing.T) {
	at := func(h float64) float64 {
		score, _ := Score(&container.Snapshot{HoursAtPort: h})
		return score
	}

	s72, s120, s168, s200 := at(72), at(120), at(168), at(200)
	assert.Less(t, s72, s120)
	assert.Less(t, s120, s168)
	assert.Less(t, s168, s200)
	assert.Equal(t, 0.22, s120)
	assert.Equal(t, 0.32, s168)
}

func TestScore_EfficiencyOutOfRangeIsClamped(t *testing.T) {
	high, _ := Score(&container.Snapshot{PortEfficiency: ptr(1.7)})
	low, _ := Score(&container.Snapshot{PortEfficiency: ptr(-3.0)})

	assert.Equal(t, 0.0, high)
	assert.Equal(t, 0.2, low)
}

func TestEngine_AssessHighRiskContainer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(WithClock(func() time.Time { return now }))

	a := e.Assess(&container.Snapshot{
		ID:                  "MSKU1234567",
		HoursAtPort:         200,
		PortCongestion:      container.CongestionHigh,
		DocumentsIncomplete: true,
	})

	assert.GreaterOrEqual(t, a.Score, CriticalThreshold)
	assert.Equal(t, 0.92, a.Score)
	assert.Equal(t, container.LevelCritical, a.Level)
	assert.Equal(t, now, a.AssessedAt)
	assert.Equal(t, []string{"time_at_port", "port_congestion", "documentation", "port_efficiency"}, factorNames(a.Factors))
}

func factorNames(fs []Factor) []string {
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Name)
	}
	return names
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Level
	}{
		{0, container.LevelLow},
		{0.1999, container.LevelLow},
		{0.2, container.LevelCaution},
		{0.4, container.LevelWarning},
		{0.6999, container.LevelWarning},
		{0.7, container.LevelCritical},
		{1, container.LevelCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelFor(tc.score), "score %v", tc.score)
	}
}

func TestAlertSeverity(t *testing.T) {
	sev, ok := AlertSeverity(container.LevelWarning, container.LevelCritical)
	assert.True(t, ok)
	assert.Equal(t, container.SeverityCritical, sev)

	sev, ok = AlertSeverity(container.LevelLow, container.LevelWarning)
	assert.True(t, ok)
	assert.Equal(t, container.SeverityWarning, sev)

	sev, ok = AlertSeverity(container.LevelCritical, container.LevelCaution)
	assert.True(t, ok)
	assert.Equal(t, container.SeverityInfo, sev)

	_, ok = AlertSeverity(container.LevelLow, container.LevelCaution)
	assert.False(t, ok)

	_, ok = AlertSeverity(container.LevelWarning, container.LevelWarning)
	assert.False(t, ok)
	assert.False(t, Crossed(container.LevelWarning, container.LevelWarning))
}

func TestDetectAnomalies(t *testing.T) {
	assert.Empty(t, DetectAnomalies(&container.Snapshot{}))
	assert.Empty(t, DetectAnomalies(&container.Snapshot{Temperature: ptr(25.0), Humidity: ptr(90.0)}))

	got := DetectAnomalies(&container.Snapshot{
		Temperature:            ptr(-12.0),
		Humidity:               ptr(95.0),
		CustomsProcessingHours: 100,
	})
	require.Len(t, got, 3)
	assert.Equal(t, AnomalyTemperature, got[0].Kind)
	assert.Equal(t, container.SeverityCritical, got[0].Severity)
	assert.Equal(t, AnomalyHumidity, got[1].Kind)
	assert.Equal(t, AnomalyCustomsHold, got[2].Kind)
}
