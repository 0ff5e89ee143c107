package event

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 7, 1, 8, 30, 0, 0, time.UTC)

func newFactory() *Factory {
	return NewFactory(nil, WithClock(func() time.Time { return fixed }), WithOrigin("node-a"))
}

func TestFactory_NewEncodesClientFrameOnce(t *testing.T) {
	f := newFactory()

	ev, err := f.New(TypeContainerUpdate,
		[]string{"container:MSCU1234567", "", "container:MSCU1234567"},
		map[string]any{"containerNumber": "MSCU1234567"},
		WithSource("containers"),
	)
	require.NoError(t, err)

	assert.Equal(t, "1", ev.ID)
	assert.Equal(t, []string{"container:MSCU1234567"}, ev.Rooms)
	assert.Equal(t, fixed, ev.Timestamp)
	assert.Equal(t, "node-a", ev.Origin)
	assert.Equal(t, "containers", ev.SourceID)
	assert.Equal(t, PriorityNormal, ev.Priority)

	var frame struct {
		Type      string         `json:"type"`
		Data      map[string]any `json:"data"`
		ID        string         `json:"id"`
		Timestamp time.Time      `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(ev.Frame(), &frame))
	assert.Equal(t, "container:update", frame.Type)
	assert.Equal(t, "MSCU1234567", frame.Data["containerNumber"])
	assert.Equal(t, "1", frame.ID)
	assert.True(t, fixed.Equal(frame.Timestamp))

	// 同一份字节
	assert.Same(t, &ev.Frame()[0], &ev.Frame()[0])
}

func TestFactory_IDsAreUnique(t *testing.T) {
	f := newFactory()
	a, err := f.New(TypeBroadcast, []string{RoomGlobal}, nil)
	require.NoError(t, err)
	b, err := f.New(TypeBroadcast, []string{RoomGlobal}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

type failingIDs struct{}

func (failingIDs) NextID() (uint64, error) { return 0, errors.New("clock moved backwards") }

func TestFactory_IDErrorPropagates(t *testing.T) {
	f := NewFactory(failingIDs{})
	_, err := f.New(TypeBroadcast, nil, nil)
	assert.Error(t, err)
}

func TestFactory_NewAlertRouting(t *testing.T) {
	f := newFactory()

	ev, err := f.NewAlert(Alert{
		Severity:  container.SeverityCritical,
		Message:   "risk level critical",
		SubjectID: "MSKU1234567",
	}, []string{ContainerRoom("MSKU1234567")})
	require.NoError(t, err)

	assert.Equal(t, TypeAlertCritical, ev.Type)
	assert.Equal(t, PriorityCritical, ev.Priority)
	assert.Equal(t, websocket.PriorityCritical, ev.Priority.Queue())
	assert.Equal(t, []string{
		RoomAlertsAll, RoomAlertsCritical, RoomRoleAdmin, RoomRoleExecutive, "container:MSKU1234567",
	}, ev.Rooms)
	assert.Equal(t, fixed, ev.Payload.(Alert).Timestamp)
}

func TestAlertRooms(t *testing.T) {
	assert.Equal(t, []string{RoomAlertsAll, RoomAlertsWarning, RoomRoleOperations}, AlertRooms(container.SeverityWarning))
	assert.Equal(t, []string{RoomAlertsAll}, AlertRooms(container.SeverityInfo))

	assert.Equal(t, TypeAlertWarning, AlertType(container.SeverityWarning))
	assert.Equal(t, TypeNotificationInfo, AlertType(container.SeverityInfo))
	assert.Equal(t, container.SeverityInfo, ParseSeverity("bogus"))
	assert.Equal(t, container.SeverityCritical, ParseSeverity("critical"))
}

func TestSplitRoom(t *testing.T) {
	ns, name := SplitRoom("dashboard:executive")
	assert.Equal(t, NamespaceDashboard, ns)
	assert.Equal(t, "executive", name)

	ns, name = SplitRoom("global")
	assert.Equal(t, NamespaceGlobal, ns)
	assert.Empty(t, name)

	assert.Equal(t, "user:u-1", UserRoom("u-1"))
	assert.Equal(t, "role:admin", RoleRoom("admin"))
}
