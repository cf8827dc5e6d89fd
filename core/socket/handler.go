package socket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/echobridge/core/channel"
	"github.com/dmitrymomot/echobridge/core/rooms"
)

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger, which is otherwise discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler upgrades HTTP requests to WebSocket sessions and runs their
// read/write pumps. Mount it on the router at the bridge's socket path.
type Handler struct {
	manager  *channel.Manager
	conns    *rooms.Registry
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler wires the transport to the channel manager and the connection
// registry. Origin checks follow cfg.AllowedOrigins.
func NewHandler(manager *channel.Manager, conns *rooms.Registry, cfg Config, opts ...Option) *Handler {
	h := &Handler{
		manager: manager,
		conns:   conns,
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if strings.EqualFold(u.Host, allowed) || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.InfoContext(r.Context(), "websocket upgrade refused", slog.Any("error", err))
		return
	}

	sess := newSession(conn, r, h.cfg, h.logger)
	h.conns.Register(sess)
	h.logger.InfoContext(r.Context(), "socket connected", slog.String("socket_id", sess.ID()))

	go sess.writePump()
	sess.Send(rooms.Envelope{
		Event: EventConnectionEstablished,
		Data:  json.RawMessage(`{"socket_id":"` + sess.ID() + `"}`),
	})
	// Fired off the frame-processing path: a slow connect endpoint must not
	// delay the first subscribe.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.manager.Connected(ctx, sess)
	}()

	h.readPump(sess)
}

// readPump consumes frames until the peer goes away, then tears the
// session down and releases all of its channel state.
func (h *Handler) readPump(sess *Session) {
	defer func() {
		// Detached from the request context: the request is already gone
		// by the time the teardown runs.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.manager.Disconnect(ctx, sess)
		sess.close()
		_ = sess.conn.Close()
		h.logger.Info("socket disconnected", slog.String("socket_id", sess.ID()))
	}()

	sess.conn.SetReadLimit(h.cfg.ReadLimit)
	_ = sess.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Info("socket read failed", slog.String("socket_id", sess.ID()), slog.Any("error", err))
			}
			return
		}
		h.handleFrame(sess, raw)
	}
}

func (h *Handler) handleFrame(sess *Session, raw []byte) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.logger.Debug("malformed frame dropped",
			slog.String("socket_id", sess.ID()), slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch f.Event {
	case eventSubscribe:
		h.manager.Subscribe(ctx, sess, f.Channel, f.Auth)
	case eventUnsubscribe:
		h.manager.Unsubscribe(ctx, sess, f.Channel, "unsubscribed")
	case eventClientEvent:
		var env clientEnvelope
		if err := json.Unmarshal(f.Data, &env); err != nil {
			h.logger.Debug("malformed client event envelope dropped",
				slog.String("socket_id", sess.ID()), slog.Any("error", err))
			return
		}
		h.manager.ClientEvent(ctx, sess, f.Channel, env.Event, env.Data)
	default:
		// Flattened shape: the frame's own event name is the relayed event.
		h.manager.ClientEvent(ctx, sess, f.Channel, f.Event, f.Data)
	}
}
