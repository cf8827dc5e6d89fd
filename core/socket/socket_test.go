package socket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/echobridge/core/authgate"
	"github.com/dmitrymomot/echobridge/core/channel"
	"github.com/dmitrymomot/echobridge/core/dispatch"
	"github.com/dmitrymomot/echobridge/core/kvstore"
	"github.com/dmitrymomot/echobridge/core/presence"
	"github.com/dmitrymomot/echobridge/core/rooms"
	"github.com/dmitrymomot/echobridge/core/socket"
)

type bridge struct {
	conns      *rooms.Registry
	dispatcher *dispatch.Dispatcher
	srv        *httptest.Server
}

func newBridge(t *testing.T, authHandler http.HandlerFunc) *bridge {
	t.Helper()

	auth := httptest.NewServer(authHandler)
	t.Cleanup(auth.Close)

	conns := rooms.NewRegistry()
	members := presence.NewRegistry(kvstore.NewMemoryStore(), conns)
	dispatcher := dispatch.New(conns)
	gate := authgate.New(authgate.Config{AuthHosts: []string{auth.URL}})
	manager := channel.New(conns, members, gate, dispatcher)

	handler := socket.NewHandler(manager, conns, socket.Config{
		ReadLimit:    65536,
		SendBuffer:   16,
		WriteTimeout: time.Second,
		PongTimeout:  time.Minute,
		PingInterval: 50 * time.Second,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &bridge{conns: conns, dispatcher: dispatcher, srv: srv}
}

func (b *bridge) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(b.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) rooms.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env rooms.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func socketID(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	env := readFrame(t, conn)
	require.Equal(t, socket.EventConnectionEstablished, env.Event)
	var data struct {
		SocketID string `json:"socket_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.SocketID)
	return data.SocketID
}

func denyAll(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusForbidden)
}

func allowAll(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"auth":"sig"}`))
}

func TestHandler_ConnectionEstablished(t *testing.T) {
	t.Parallel()

	b := newBridge(t, http.HandlerFunc(denyAll))
	conn := b.dial(t)

	id := socketID(t, conn)
	require.Eventually(t, func() bool { return b.conns.IsLive(id) },
		time.Second, 10*time.Millisecond)
}

func TestHandler_SubscribeAndBroadcast(t *testing.T) {
	t.Parallel()

	b := newBridge(t, http.HandlerFunc(denyAll))
	conn := b.dial(t)
	id := socketID(t, conn)

	send(t, conn, map[string]any{"event": "subscribe", "channel": "news"})
	require.Eventually(t, func() bool { return b.conns.InRoom(id, "news") },
		time.Second, 10*time.Millisecond)

	b.dispatcher.Broadcast(context.Background(), "news", dispatch.Message{
		Event: "headline",
		Data:  json.RawMessage(`{"title":"hello"}`),
	})

	env := readFrame(t, conn)
	assert.Equal(t, "headline", env.Event)
	assert.Equal(t, "news", env.Channel)
	assert.JSONEq(t, `{"title":"hello"}`, string(env.Data))
}

func TestHandler_PrivateDeniedKeepsConnection(t *testing.T) {
	t.Parallel()

	b := newBridge(t, http.HandlerFunc(denyAll))
	conn := b.dial(t)
	id := socketID(t, conn)

	send(t, conn, map[string]any{"event": "subscribe", "channel": "private-vault"})

	env := readFrame(t, conn)
	assert.Equal(t, "subscription_error", env.Event)
	assert.Equal(t, "private-vault", env.Channel)

	// The same connection can still join public channels.
	send(t, conn, map[string]any{"event": "subscribe", "channel": "news"})
	require.Eventually(t, func() bool { return b.conns.InRoom(id, "news") },
		time.Second, 10*time.Millisecond)
}

func TestHandler_ClientEventRelay(t *testing.T) {
	t.Parallel()

	b := newBridge(t, http.HandlerFunc(allowAll))
	sender := b.dial(t)
	receiver := b.dial(t)
	senderID := socketID(t, sender)
	receiverID := socketID(t, receiver)

	send(t, sender, map[string]any{"event": "subscribe", "channel": "private-chat"})
	send(t, receiver, map[string]any{"event": "subscribe", "channel": "private-chat"})
	require.Eventually(t, func() bool {
		return b.conns.InRoom(senderID, "private-chat") && b.conns.InRoom(receiverID, "private-chat")
	}, time.Second, 10*time.Millisecond)

	send(t, sender, map[string]any{
		"event":   "client-typing",
		"channel": "private-chat",
		"data":    map[string]bool{"on": true},
	})

	env := readFrame(t, receiver)
	assert.Equal(t, "client-typing", env.Event)
	assert.JSONEq(t, `{"on":true}`, string(env.Data))
}

func TestHandler_ClientEventEnvelope(t *testing.T) {
	t.Parallel()

	b := newBridge(t, http.HandlerFunc(allowAll))
	sender := b.dial(t)
	receiver := b.dial(t)
	senderID := socketID(t, sender)
	receiverID := socketID(t, receiver)

	send(t, sender, map[string]any{"event": "subscribe", "channel": "private-chat"})
	send(t, receiver, map[string]any{"event": "subscribe", "channel": "private-chat"})
	require.Eventually(t, func() bool {
		return b.conns.InRoom(senderID, "private-chat") && b.conns.InRoom(receiverID, "private-chat")
	}, time.Second, 10*time.Millisecond)

	// The relayed event name and payload ride nested under the frame's data.
	send(t, sender, map[string]any{
		"event":   "client event",
		"channel": "private-chat",
		"data": map[string]any{
			"event": "client-typing",
			"data":  map[string]bool{"on": true},
		},
	})

	env := readFrame(t, receiver)
	assert.Equal(t, "client-typing", env.Event)
	assert.Equal(t, "private-chat", env.Channel)
	assert.JSONEq(t, `{"on":true}`, string(env.Data))
}

func TestHandler_SlowConnectHookDoesNotBlockFrames(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/hook", func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)
	t.Cleanup(func() { close(release) })

	conns := rooms.NewRegistry()
	members := presence.NewRegistry(kvstore.NewMemoryStore(), conns)
	dispatcher := dispatch.New(conns)
	gate := authgate.New(authgate.Config{
		AuthHosts:       []string{backend.URL},
		ConnectEndpoint: backend.URL + "/hook",
	})
	manager := channel.New(conns, members, gate, dispatcher)

	handler := socket.NewHandler(manager, conns, socket.Config{
		ReadLimit:    65536,
		SendBuffer:   16,
		WriteTimeout: time.Second,
		PongTimeout:  time.Minute,
		PingInterval: 50 * time.Second,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	id := socketID(t, conn)

	// The connect hook is still pending; subscribes must go through anyway.
	send(t, conn, map[string]any{"event": "subscribe", "channel": "news"})
	require.Eventually(t, func() bool { return conns.InRoom(id, "news") },
		time.Second, 10*time.Millisecond)
}

func TestHandler_UnsubscribeAndDisconnect(t *testing.T) {
	t.Parallel()

	b := newBridge(t, http.HandlerFunc(denyAll))
	conn := b.dial(t)
	id := socketID(t, conn)

	send(t, conn, map[string]any{"event": "subscribe", "channel": "news"})
	require.Eventually(t, func() bool { return b.conns.InRoom(id, "news") },
		time.Second, 10*time.Millisecond)

	send(t, conn, map[string]any{"event": "unsubscribe", "channel": "news"})
	require.Eventually(t, func() bool { return !b.conns.InRoom(id, "news") },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !b.conns.IsLive(id) },
		time.Second, 10*time.Millisecond)
}

func TestHandler_OriginRejected(t *testing.T) {
	t.Parallel()

	conns := rooms.NewRegistry()
	members := presence.NewRegistry(kvstore.NewMemoryStore(), conns)
	dispatcher := dispatch.New(conns)
	gate := authgate.New(authgate.Config{AuthHosts: []string{"http://localhost"}})
	manager := channel.New(conns, members, gate, dispatcher)

	handler := socket.NewHandler(manager, conns, socket.Config{
		ReadLimit:      65536,
		SendBuffer:     16,
		WriteTimeout:   time.Second,
		PongTimeout:    time.Minute,
		PingInterval:   50 * time.Second,
		AllowedOrigins: []string{"app.example.com"},
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example.net"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
