package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct {
	BaseHandler
	connected chan *Connection
}

func (h *echoHandler) OnConnect(conn *Connection) error {
	if h.connected != nil {
		h.connected <- conn
	}
	return conn.Send(NewTextMessage([]byte("hello"), PriorityNormal))
}

func (h *echoHandler) OnMessage(conn *Connection, msg *Message) error {
	return conn.Send(NewTextMessage(msg.Data, PriorityNormal))
}

func newTestServer(t *testing.T, cfg *ServerConfig, opts ...ServerOption) (*Server, string) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	cfg.Addr = ""
	s, err := NewServer(cfg, opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Close()
		ts.Close()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readText(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestServer_EchoRoundTrip(t *testing.T) {
	s, url := newTestServer(t, nil, WithHandler(&echoHandler{}))
	c := dial(t, url)

	assert.Equal(t, "hello", readText(t, c))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("ping")))
	assert.Equal(t, "ping", readText(t, c))
	assert.Equal(t, 1, s.ConnectionCount())
}

func TestServer_AuthFailureClosesWith4401(t *testing.T) {
	_, url := newTestServer(t, nil,
		WithHandler(&echoHandler{}),
		WithAuthenticator(func(*http.Request) (any, error) {
			return nil, errors.New("bad token")
		}),
		WithAuthErrorEncoder(func(err error) []byte {
			return []byte(`{"type":"error","data":{"code":"authentication_failed"}}`)
		}),
	)
	c := dial(t, url)

	assert.Contains(t, readText(t, c), "authentication_failed")

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CloseAuthFailed, ce.Code)
}

func TestServer_AuthIdentityAttached(t *testing.T) {
	connected := make(chan *Connection, 1)
	_, url := newTestServer(t, nil,
		WithHandler(&echoHandler{connected: connected}),
		WithAuthenticator(func(*http.Request) (any, error) { return "user-1", nil }),
	)
	dial(t, url)

	select {
	case conn := <-connected:
		assert.Equal(t, "user-1", conn.Auth())
	case <-time.After(2 * time.Second):
		t.Fatal("OnConnect not called")
	}
}

func TestServer_PerIPLimit(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Pool.MaxConnectionsPerIP = 1
	_, url := newTestServer(t, cfg, WithHandler(&echoHandler{}))

	c := dial(t, url)
	assert.Equal(t, "hello", readText(t, c))

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServer_SubprotocolEchoed(t *testing.T) {
	_, url := newTestServer(t, nil, WithHandler(&echoHandler{}))
	d := websocket.Dialer{Subprotocols: []string{"token-abc"}}
	c, _, err := d.Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "token-abc", c.Subprotocol())
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(conn *Connection, msg *Message) error {
				order = append(order, name)
				return next(conn, msg)
			}
		}
	}
	h := Chain(func(*Connection, *Message) error {
		order = append(order, "handler")
		return nil
	}, mw("a"), mw("b"))

	require.NoError(t, h(nil, &Message{}))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestMaxMessageSize(t *testing.T) {
	h := MaxMessageSize(4)(func(*Connection, *Message) error { return nil })
	assert.ErrorIs(t, h(nil, &Message{Data: []byte("12345")}), ErrMessageTooLarge)
	assert.NoError(t, h(nil, &Message{Data: []byte("1234")}))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://ops.example.com/"})
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://ops.example.com")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))

	assert.True(t, originChecker([]string{"*"})(r))
}
