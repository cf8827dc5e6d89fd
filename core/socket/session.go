package socket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/echobridge/core/rooms"
)

// Session is one live WebSocket connection. It implements both the connection
// registry's Conn and the channel manager's Session, so the same value flows
// through registration, authorization and fan-out.
type Session struct {
	id      string
	referer string
	cookie  string

	conn   *websocket.Conn
	send   chan rooms.Envelope
	logger *slog.Logger
	cfg    Config

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(conn *websocket.Conn, r *http.Request, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		id:      uuid.NewString(),
		referer: r.Header.Get("Referer"),
		cookie:  r.Header.Get("Cookie"),
		conn:    conn,
		send:    make(chan rooms.Envelope, cfg.SendBuffer),
		logger:  logger,
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

// ID returns the socket id assigned at upgrade time.
func (s *Session) ID() string { return s.id }

// Referer returns the Referer header captured from the upgrade request.
func (s *Session) Referer() string { return s.referer }

// Cookie returns the Cookie header captured from the upgrade request.
func (s *Session) Cookie() string { return s.cookie }

// Send queues a frame for delivery. It never blocks: a full queue or a
// closed session reports false and the frame is dropped.
func (s *Session) Send(env rooms.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

// close marks the session dead; safe to call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. It owns all writes to the underlying connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.close()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case env := <-s.send:
			if !s.writeFrame(env) {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeFrame(env rooms.Envelope) bool {
	payload, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("marshal outbound frame",
			slog.String("socket_id", s.id), slog.Any("error", err))
		return true
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return false
	}
	return true
}
