package influxdb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.URL = ""
	assert.ErrorIs(t, cfg.Validate(), ErrEmptyURL)
}

func TestClient_WritePoints(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/write") {
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(b))
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := New(&Config{URL: srv.URL, Token: "t"})
	require.NoError(t, err)
	defer c.Close()

	err = c.WritePoints(context.Background(), Point{
		Measurement: "container_risk",
		Tags:        map[string]string{"container_id": "MSCU1234567"},
		Fields:      map[string]any{"score": 0.42},
		Time:        time.Unix(1700000000, 0),
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "container_risk,container_id=MSCU1234567 score=0.42")
}

func TestClient_RejectsEmptyFields(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	defer c.Close()

	err = c.WritePoints(context.Background(), Point{Measurement: "m"})
	assert.ErrorIs(t, err, ErrEmptyFields)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.WritePoints(context.Background(), Point{Measurement: "m", Fields: map[string]any{"v": 1}}), ErrClientClosed)
}
