package app

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/cargorelay/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	started atomic.Bool
	stopped atomic.Bool
	startErr error
	block    time.Duration
}

func (s *fakeServer) Start() error {
	s.started.Store(true)
	return s.startErr
}

func (s *fakeServer) Stop() error {
	time.Sleep(s.block)
	s.stopped.Store(true)
	return nil
}

func TestBaseApp_RunAndShutdown(t *testing.T) {
	a := NewBaseApp(WithName("test"), WithLogger(logger.NewNoop()))
	srv := &fakeServer{}
	var order []string
	a.AppendServer(srv)
	a.AppendCloser(
		CloserFunc(func() error { order = append(order, "first"); return nil }),
		CloserFunc(func() error { order = append(order, "second"); return nil }),
	)

	done := make(chan error, 1)
	go func() { done <- a.Run() }()

	require.Eventually(t, srv.started.Load, time.Second, 5*time.Millisecond)
	require.NoError(t, a.Shutdown())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	assert.True(t, srv.stopped.Load())
	assert.Equal(t, []string{"second", "first"}, order)
	assert.ErrorIs(t, a.Run(), ErrAppAlreadyRunning)
}

func TestBaseApp_StartFailure(t *testing.T) {
	a := NewBaseApp(WithLogger(logger.NewNoop()))
	boom := errors.New("listen failed")
	a.AppendServer(&fakeServer{startErr: boom})

	assert.ErrorIs(t, a.Run(), boom)
	assert.Error(t, a.Context().Err())
}

func TestBaseApp_StopTimeout(t *testing.T) {
	a := NewBaseApp(WithLogger(logger.NewNoop()), WithStopTimeout(20*time.Millisecond))
	a.AppendServer(&fakeServer{block: 500 * time.Millisecond})

	start := time.Now()
	require.NoError(t, a.Shutdown())
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}
