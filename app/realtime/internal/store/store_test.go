package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/cargorelay/app/realtime/internal/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReader struct {
	inner   Reader
	calls   atomic.Int32
	release chan struct{}
}

func (r *countingReader) Load(ctx context.Context, id string) (*container.Snapshot, error) {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	return r.inner.Load(ctx, id)
}

func newStore(t *testing.T, reader Reader) *Store {
	t.Helper()
	s, err := New(nil, reader)
	require.NoError(t, err)
	return s
}

func TestStore_GetLoadsOnceAndCachesMisses(t *testing.T) {
	reader := &countingReader{inner: NewMemoryReader(&container.Snapshot{
		ID:          "MSCU1234567",
		Carrier:     "MSC",
		HoursAtPort: 40,
	})}
	s := newStore(t, reader)
	ctx := context.Background()

	snap, err := s.Get(ctx, "MSCU1234567")
	require.NoError(t, err)
	assert.Equal(t, "MSC", snap.Carrier)

	// 返回的是副本
	snap.Carrier = "changed"
	again, err := s.Get(ctx, "MSCU1234567")
	require.NoError(t, err)
	assert.Equal(t, "MSC", again.Carrier)
	assert.Equal(t, int32(1), reader.calls.Load())

	_, err = s.Get(ctx, "NOPE0000000")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "NOPE0000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(2), reader.calls.Load())
}

func TestStore_ConcurrentGetsShareOneLoad(t *testing.T) {
	reader := &countingReader{
		inner:   NewMemoryReader(&container.Snapshot{ID: "C1"}),
		release: make(chan struct{}),
	}
	s := newStore(t, reader)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Get(context.Background(), "C1")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return reader.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(reader.release)
	wg.Wait()
	assert.Equal(t, int32(1), reader.calls.Load())
}

func TestStore_UpdateStartsFromBackendOrEmpty(t *testing.T) {
	s := newStore(t, NewMemoryReader(&container.Snapshot{ID: "C1", Carrier: "Maersk"}))
	ctx := context.Background()

	snap, err := s.Update(ctx, "C1", func(cur *container.Snapshot) error {
		cur.HoursAtPort = 80
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Maersk", snap.Carrier)
	assert.Equal(t, 80.0, snap.HoursAtPort)

	// 不存在的集装箱从空快照开始，之后不再视为缺失
	_, err = s.Get(ctx, "C2")
	require.ErrorIs(t, err, ErrNotFound)
	snap, err = s.Update(ctx, "C2", func(cur *container.Snapshot) error {
		assert.Equal(t, "C2", cur.ID)
		cur.Location = "Hamburg"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", snap.Location)

	got, err := s.Get(ctx, "C2")
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", got.Location)
	assert.Equal(t, 2, s.Len())
}

func TestStore_UpdateErrorDiscardsChanges(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	_, err := s.Update(ctx, "C1", func(cur *container.Snapshot) error {
		cur.HoursAtPort = 10
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("rejected")
	_, err = s.Update(ctx, "C1", func(cur *container.Snapshot) error {
		cur.HoursAtPort = 999
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.HoursAtPort)
}

func TestStore_UpdatesSerializedPerContainer(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "C1", func(cur *container.Snapshot) error {
				cur.HoursAtPort++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.HoursAtPort)
}

type failingReader struct{}

func (failingReader) Load(context.Context, string) (*container.Snapshot, error) {
	return nil, errors.New("connection refused")
}

func TestStore_BackendErrors(t *testing.T) {
	s := newStore(t, failingReader{})
	ctx := context.Background()

	_, err := s.Get(ctx, "C1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	snap, err := s.Update(ctx, "C1", func(cur *container.Snapshot) error {
		cur.Status = container.StatusArriving
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, container.StatusArriving, snap.Status)
}

func TestPostgres_SelectQuery(t *testing.T) {
	sql, args, err := selectQuery("containers", "MSKU1234567").ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM containers WHERE container_id = $1 LIMIT 1")
	assert.Contains(t, sql, "COALESCE(port_congestion, '') AS port_congestion")
	assert.Equal(t, []any{"MSKU1234567"}, args)
}

func TestPostgres_RowToSnapshot(t *testing.T) {
	eff := 0.75
	at := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	row := containerRow{
		ContainerID:        "MSKU1234567",
		Status:             "in_transit",
		PortCongestion:     "high",
		PortEfficiency:     &eff,
		RouteDistanceKm:    704,
		RouteDurationHours: 20,
		UpdatedAt:          at,
	}
	snap := row.snapshot()
	assert.Equal(t, container.StatusInTransit, snap.Status)
	assert.Equal(t, container.CongestionHigh, snap.PortCongestion)
	assert.Equal(t, 0.75, snap.Efficiency())
	assert.Equal(t, container.Route{DistanceKm: 704, DurationHours: 20}, snap.Route)
	assert.Equal(t, at, snap.UpdatedAt)
}

func TestRedisReader_Key(t *testing.T) {
	assert.Equal(t, "container:C1", NewRedisReader(nil, "container").key("C1"))
	assert.Equal(t, "C1", NewRedisReader(nil, "").key("C1"))
}

func TestNewReader(t *testing.T) {
	r, closeFn, err := NewReader(context.Background(), &Config{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryReader{}, r)
	assert.NoError(t, closeFn())

	_, _, err = NewReader(context.Background(), &Config{Backend: "mongo"}, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
