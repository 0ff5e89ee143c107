package router

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/event"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/normalizer"
	"github.com/lk2023060901/cargorelay/app/realtime/internal/registry"
	"github.com/lk2023060901/cargorelay/pkg/security"
	"github.com/lk2023060901/cargorelay/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []*websocket.Message
	err  error
	// 第一次发送时回调
	onSend func()
}

func (r *recorder) Send(msg *websocket.Message) error {
	r.mu.Lock()
	hook := r.onSend
	r.onSend = nil
	err := r.err
	if err == nil {
		r.msgs = append(r.msgs, msg)
	}
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type directory struct {
	mu      sync.Mutex
	senders map[string]Sender
}

func newDirectory() *directory {
	return &directory{senders: make(map[string]Sender)}
}

func (d *directory) add(id string, s Sender) {
	d.mu.Lock()
	d.senders[id] = s
	d.mu.Unlock()
}

func (d *directory) remove(id string) {
	d.mu.Lock()
	delete(d.senders, id)
	d.mu.Unlock()
}

func (d *directory) Lookup(id string) (Sender, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.senders[id]
	return s, ok
}

func viewer(id string) *security.Principal {
	return &security.Principal{
		UserID:      id,
		Role:        "operations",
		Permissions: []string{registry.PermViewContainers, registry.PermViewDashboard, registry.PermViewAlerts},
	}
}

func setup(t *testing.T, n int, rooms ...string) (*registry.Registry, *directory, map[string]*recorder) {
	t.Helper()
	reg := registry.New()
	dir := newDirectory()
	recs := make(map[string]*recorder, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%02d", i)
		require.NoError(t, reg.Register(id, viewer(fmt.Sprintf("u%02d", i))))
		for _, room := range rooms {
			require.NoError(t, reg.Join(id, room))
		}
		recs[id] = &recorder{}
		dir.add(id, recs[id])
	}
	return reg, dir, recs
}

func TestRoute_ContainerUpdateReachesOnlySubscribers(t *testing.T) {
	reg, dir, recs := setup(t, 3, "container:MSCU1234567")
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("other%d", i)
		require.NoError(t, reg.Register(id, viewer(id)))
		require.NoError(t, reg.Join(id, "container:TGHU0000001"))
		recs[id] = &recorder{}
		dir.add(id, recs[id])
	}

	n, err := normalizer.New(event.NewFactory(nil))
	require.NoError(t, err)
	events, err := n.Normalize(normalizer.ChannelContainers, []byte(`{"containerNumber":"MSCU1234567","update":{"hoursAtPort":30}}`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	r := New(reg, dir)
	assert.Equal(t, 3, r.Route(events[0]))

	for id, rec := range recs {
		want := 0
		if id[0] == 's' {
			want = 1
		}
		assert.Equal(t, want, rec.count(), id)
	}
}

func TestRoute_MemberOfSeveralRoomsReceivesOnce(t *testing.T) {
	reg, dir, recs := setup(t, 2, "alerts:all", "role:operations")
	r := New(reg, dir)

	ev, err := event.NewFactory(nil).NewAlert(event.Alert{
		Severity: container.SeverityWarning,
		Message:  "dwell time rising",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Route(ev))
	for _, rec := range recs {
		require.Equal(t, 1, rec.count())
		assert.Equal(t, ev.Frame(), rec.msgs[0].Data)
		assert.Equal(t, websocket.PriorityNormal, rec.msgs[0].Priority)
	}
}

func TestRoute_DisconnectMidFanOutDoesNotStopOthers(t *testing.T) {
	const room = "container:MSKU1234567"
	reg, dir, recs := setup(t, 50, room)

	// s10 在收到事件时断开：后续发送失败，且从注册表与目录中移除
	leaving := recs["s10"]
	leaving.onSend = func() {
		leaving.mu.Lock()
		leaving.err = websocket.ErrConnectionClosed
		leaving.mu.Unlock()
		reg.Unregister("s10")
		dir.remove("s10")
	}
	leaving.err = websocket.ErrConnectionClosed

	ev, err := event.NewFactory(nil).New(event.TypeContainerUpdate, []string{room}, map[string]any{"containerNumber": "MSKU1234567"})
	require.NoError(t, err)

	r := New(reg, dir)
	delivered := r.Route(ev)

	assert.Equal(t, 49, delivered)
	for id, rec := range recs {
		if id == "s10" {
			assert.Zero(t, rec.count())
			continue
		}
		assert.Equal(t, 1, rec.count(), id)
	}
}

func TestRouteExcept_SkipsSender(t *testing.T) {
	reg, dir, recs := setup(t, 3, "dashboard:operations")
	r := New(reg, dir)

	ev, err := event.NewFactory(nil).New(event.TypePresenceUpdate, []string{"dashboard:operations"}, map[string]any{"status": "online"})
	require.NoError(t, err)

	assert.Equal(t, 2, r.RouteExcept(ev, "s01"))
	assert.Zero(t, recs["s01"].count())
	assert.Equal(t, 1, recs["s00"].count())
	assert.Equal(t, 1, recs["s02"].count())
}

func TestRoute_NoRoomsOrNoMembers(t *testing.T) {
	reg, dir, _ := setup(t, 1, "global")
	r := New(reg, dir)

	f := event.NewFactory(nil)
	ev, err := f.New(event.TypeBroadcast, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, r.Route(ev))
	assert.Zero(t, r.Route(nil))

	ev, err = f.New(event.TypeBroadcast, []string{"container:nobody"}, nil)
	require.NoError(t, err)
	assert.Zero(t, r.Route(ev))
}

// queueSender 使用真实的出站队列
type queueSender struct {
	q *websocket.OutboundQueue
}

func (s queueSender) Send(msg *websocket.Message) error {
	_, err := s.q.Push(msg)
	return err
}

func TestRoute_CriticalAlertSurvivesFullQueue(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register("s1", &security.Principal{UserID: "u1", Role: "admin", Permissions: []string{"*"}}))
	require.NoError(t, reg.Join("s1", "role:admin"))

	q := websocket.NewOutboundQueue(100)
	for i := 0; i < 100; i++ {
		_, err := q.Push(websocket.NewTextMessage([]byte(fmt.Sprintf(`{"n":%d}`, i)), websocket.PriorityNormal))
		require.NoError(t, err)
	}
	dir := newDirectory()
	dir.add("s1", queueSender{q: q})

	alert, err := event.NewFactory(nil, event.WithClock(time.Now)).NewAlert(event.Alert{
		Severity:  container.SeverityCritical,
		Message:   "risk level critical",
		SubjectID: "MSKU1234567",
	}, nil)
	require.NoError(t, err)

	r := New(reg, dir)
	assert.Equal(t, 1, r.Route(alert))

	assert.Equal(t, 100, q.Len())
	assert.GreaterOrEqual(t, q.Dropped(), uint64(1))

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, alert.Frame(), first.Data)
	assert.Equal(t, websocket.PriorityCritical, first.Priority)
}

func TestRoute_UntargetedNotificationReachesEveryone(t *testing.T) {
	reg := registry.New()
	dir := newDirectory()
	recs := make(map[string]*recorder)
	for i, role := range []string{"operations", "executive", "customer"} {
		id := fmt.Sprintf("s%d", i)
		user := fmt.Sprintf("u%d", i)
		require.NoError(t, reg.Register(id, &security.Principal{UserID: user, Role: role}))
		require.NoError(t, reg.Join(id, "user:"+user))
		require.NoError(t, reg.Join(id, "role:"+role))
		recs[id] = &recorder{}
		dir.add(id, recs[id])
	}

	n, err := normalizer.New(event.NewFactory(nil))
	require.NoError(t, err)
	events, err := n.Normalize(normalizer.ChannelNotifications, []byte(`{"type":"maintenance","message":"terminal systems offline at 02:00 UTC"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)

	r := New(reg, dir)
	assert.Equal(t, 3, r.Route(events[0]))
	for id, rec := range recs {
		assert.Equal(t, 1, rec.count(), id)
	}

	// 指定用户的通知仍只发给本人
	events, err = n.Normalize(normalizer.ChannelNotifications, []byte(`{"userId":"u1","message":"bill of lading ready"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Route(events[0]))
	assert.Equal(t, 2, recs["s1"].count())
}
