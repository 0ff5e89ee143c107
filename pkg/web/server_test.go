package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(&Config{Mode: gin.TestMode}, opts...)
	require.NoError(t, err)
	return s
}

func TestServer_JSONAndError(t *testing.T) {
	s := newTestServer(t)
	s.Router().GET("/ok", func(c *gin.Context) { JSON(c, gin.H{"status": "ok"}) })
	s.Router().GET("/missing", func(c *gin.Context) {
		Error(c, http.StatusNotFound, CodeNotFound, "not found")
	})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":40004,"message":"not found"}`, w.Body.String())
}

func TestServer_RecoveryCallsHook(t *testing.T) {
	var recovered any
	s := newTestServer(t, WithPanicHook(func(v any) { recovered = v }))
	s.Router().GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "boom", recovered)
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t)
	s.Router().GET("/health", func(c *gin.Context) { JSON(c, gin.H{}) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestServer(t, WithMetricsRegisterer(reg))
	s.Router().GET("/stats", func(c *gin.Context) { JSON(c, gin.H{}) })

	for i := 0; i < 3; i++ {
		s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))
	}
	n, err := testutil.GatherAndCount(reg, "http_server_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConfig_Validate(t *testing.T) {
	_, err := NewServer(&Config{Mode: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestServer_StartWithoutAddr(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
}
