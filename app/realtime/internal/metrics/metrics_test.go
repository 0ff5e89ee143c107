package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAndRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(nil, reg)
	require.NoError(t, err)

	m.RecordReceived("containers")
	m.RecordReceived("containers")
	m.RecordMalformed("alerts")
	m.RecordPublished("broadcasts", nil)
	m.RecordPublished("broadcasts", errors.New("broker down"))
	m.RecordRouted("container:update", 3)
	m.RecordDeliveryFailure("queue_full")
	m.RecordDeliveryFailure("closed")
	m.RecordDropped()
	m.RecordAssessment("critical")
	m.RecordAlert("critical")
	m.RecordAnomaly("temperature_anomaly")
	m.RecordRepublishSkipped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BridgeReceived.WithLabelValues("containers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeMalformed.WithLabelValues("alerts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgePublished.WithLabelValues("broadcasts", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RouterDelivered))
	assert.Equal(t, uint64(1), m.Dropped())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RouterFailed.WithLabelValues("queue_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepublishSkipped))

	// 同一 registry 再次创建复用已注册的采集器
	again, err := New(nil, reg)
	require.NoError(t, err)
	again.RecordReceived("containers")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BridgeReceived.WithLabelValues("containers")))
}

func TestMetrics_PipelineWindow(t *testing.T) {
	m, err := New(nil, nil)
	require.NoError(t, err)

	m.RecordPipeline(2*time.Millisecond, nil)
	m.RecordPipeline(4*time.Millisecond, errors.New("store unavailable"))

	stats := m.PipelineStats()
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, 3*time.Millisecond, stats.AvgLatency)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PipelineDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordReceived("containers")
	m.RecordRouted("broadcast", 1)
	m.RecordPipeline(time.Millisecond, nil)
	m.RecordRepublishSkipped()
	assert.Zero(t, m.Dropped())
	assert.Zero(t, m.PipelineStats().Total)
	assert.NotNil(t, m.Config())
}
