package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/dmitrymomot/echobridge/core/authgate"
	"github.com/dmitrymomot/echobridge/core/dispatch"
	"github.com/dmitrymomot/echobridge/core/presence"
	"github.com/dmitrymomot/echobridge/core/rooms"
)

// Session is the view of a client connection the manager needs: its identity,
// the upgrade-request headers used for the auth handshake, and a direct send
// path for frames addressed to this connection only.
type Session interface {
	ID() string
	Referer() string
	Cookie() string
	Send(env rooms.Envelope) bool
}

// AuthPayload carries the caller-supplied credentials of a subscribe frame.
type AuthPayload struct {
	Headers map[string]string `json:"headers,omitempty"`
}

// Manager classifies channels and drives the join/leave protocol, delegating
// authorization to the auth gateway and membership to the presence registry.
type Manager struct {
	conns      *rooms.Registry
	members    *presence.Registry
	gate       *authgate.Gateway
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger configures structured logging for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a channel manager.
func New(conns *rooms.Registry, members *presence.Registry, gate *authgate.Gateway, dispatcher *dispatch.Dispatcher, opts ...Option) *Manager {
	m := &Manager{
		conns:      conns,
		members:    members,
		gate:       gate,
		dispatcher: dispatcher,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe joins the session to a channel. Public channels join directly;
// private and presence channels authenticate against the backend first. Any
// failure is reported to this session only as a subscription_error; other
// channels and other connections are unaffected.
func (m *Manager) Subscribe(ctx context.Context, sess Session, channelName string, auth AuthPayload) {
	if channelName == "" {
		m.logger.DebugContext(ctx, "subscribe without channel name ignored",
			slog.String("socket_id", sess.ID()))
		return
	}

	if m.dispatcher.IsReserved(channelName) {
		m.subscriptionError(sess, channelName, "Invalid channel name")
		return
	}

	kind := KindOf(channelName)
	if !kind.RequiresAuth() {
		m.conns.Join(sess.ID(), channelName)
		return
	}

	result, err := m.gate.Authenticate(ctx, authgate.Request{
		SocketID: sess.ID(),
		Channel:  channelName,
		Referer:  sess.Referer(),
		Cookie:   sess.Cookie(),
		Headers:  auth.Headers,
	})
	if err != nil {
		m.logger.InfoContext(ctx, "channel authorization refused",
			slog.String("socket_id", sess.ID()),
			slog.String("channel", channelName),
			slog.Any("error", err))
		m.subscriptionError(sess, channelName, authFailureMessage(err))
		return
	}

	var identity authgate.Identity
	if kind == Presence {
		identity, err = result.Identity()
		if err != nil {
			m.logger.InfoContext(ctx, "presence member data missing from auth result",
				slog.String("socket_id", sess.ID()),
				slog.String("channel", channelName))
			m.subscriptionError(sess, channelName, "Unable to join channel. Member data for presence channel missing")
			return
		}
	}

	// The auth call suspended; the connection may be gone by now. A dead
	// connection must not commit membership-visible effects.
	if !m.conns.IsLive(sess.ID()) {
		return
	}

	m.conns.Join(sess.ID(), channelName)

	if kind == Presence {
		m.joinPresence(ctx, sess, channelName, identity)
	}
}

// joinPresence runs the presence join protocol after the room registration.
// Store failures degrade to the plain room subscription.
func (m *Manager) joinPresence(ctx context.Context, sess Session, channelName string, identity authgate.Identity) {
	res, err := m.members.Join(ctx, channelName, presence.Member{
		SocketID: sess.ID(),
		UserID:   identity.UserID,
		UserInfo: identity.UserInfo,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to record presence membership",
			slog.String("socket_id", sess.ID()),
			slog.String("channel", channelName),
			slog.Any("error", err))
		return
	}

	if data, err := json.Marshal(res.Members); err == nil {
		sess.Send(rooms.Envelope{
			Event:   EventPresenceSubscribed,
			Channel: channelName,
			Data:    data,
		})
	}

	if res.FirstJoin {
		member := presence.Member{SocketID: sess.ID(), UserID: identity.UserID, UserInfo: identity.UserInfo}
		if data, err := json.Marshal(member); err == nil {
			m.dispatcher.Broadcast(ctx, channelName, dispatch.Message{
				Event:  EventPresenceJoining,
				Data:   data,
				Socket: sess.ID(),
			})
		}
	}
}

// Unsubscribe removes the session from a channel. Idempotent: leaving a
// channel the connection never joined is a no-op.
func (m *Manager) Unsubscribe(ctx context.Context, sess Session, channelName, reason string) {
	if channelName == "" {
		return
	}

	var left presence.LeaveResult
	if KindOf(channelName) == Presence {
		var err error
		left, err = m.members.Leave(ctx, channelName, sess.ID())
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to remove presence membership",
				slog.String("socket_id", sess.ID()),
				slog.String("channel", channelName),
				slog.Any("error", err))
		}
	}

	m.conns.Leave(sess.ID(), channelName)

	m.logger.DebugContext(ctx, "left channel",
		slog.String("socket_id", sess.ID()),
		slog.String("channel", channelName),
		slog.String("reason", reason))

	if left.Found && !left.StillPresent {
		if data, err := json.Marshal(left.Member.WithoutSocket()); err == nil {
			m.dispatcher.Broadcast(ctx, channelName, dispatch.Message{
				Event: EventPresenceLeaving,
				Data:  data,
			})
		}
	}
}

// Connected reports a fresh connection to the application backend, when a
// connect endpoint is configured.
func (m *Manager) Connected(ctx context.Context, sess Session) {
	m.gate.NotifyConnect(ctx, sess.ID(), nil)
}

// Disconnect treats a closed connection as an implicit leave of every room
// it belonged to, each room handled independently, then unregisters it.
func (m *Manager) Disconnect(ctx context.Context, sess Session) {
	for _, room := range m.conns.Rooms(sess.ID()) {
		m.Unsubscribe(ctx, sess, room, "disconnected")
	}
	m.conns.Unregister(sess.ID())
	m.gate.NotifyDisconnect(ctx, sess.ID(), nil)
}

// ClientEvent relays a client-originated event to the other subscribers of
// the channel. Only client-namespaced events on private or presence channels
// the sender actually joined are relayed; violations are logged and ignored.
func (m *Manager) ClientEvent(ctx context.Context, sess Session, channelName, event string, data json.RawMessage) {
	switch {
	case channelName == "" || event == "":
		m.logger.DebugContext(ctx, "malformed client event ignored",
			slog.String("socket_id", sess.ID()))
		return
	case !IsClientEvent(event):
		m.logger.DebugContext(ctx, "client event outside client- namespace ignored",
			slog.String("socket_id", sess.ID()),
			slog.String("event", event))
		return
	case !KindOf(channelName).RequiresAuth():
		m.logger.DebugContext(ctx, "client event on public channel ignored",
			slog.String("socket_id", sess.ID()),
			slog.String("channel", channelName))
		return
	case !m.conns.InRoom(sess.ID(), channelName):
		m.logger.DebugContext(ctx, "client event from non-member ignored",
			slog.String("socket_id", sess.ID()),
			slog.String("channel", channelName))
		return
	}

	m.dispatcher.Broadcast(ctx, channelName, dispatch.Message{
		Event:  event,
		Data:   data,
		Socket: sess.ID(),
	})
}

// subscriptionError reports a channel-scoped failure to the requesting
// connection only.
func (m *Manager) subscriptionError(sess Session, channelName, message string) {
	data, _ := json.Marshal(map[string]string{"message": message})
	sess.Send(rooms.Envelope{
		Event:   EventSubscriptionError,
		Channel: channelName,
		Data:    data,
	})
}

func authFailureMessage(err error) string {
	var authErr *authgate.AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return "Client can not be authenticated"
}
