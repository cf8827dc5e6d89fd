package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/dmitrymomot/echobridge/core/rooms"
)

// Message is one inbound broadcast delivered by an ingestor or relayed from
// a client event. Socket, when set, is the origin connection id to exclude
// from delivery.
type Message struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	Socket string          `json:"socket,omitempty"`
}

// Sink receives messages addressed to the reserved out-of-band channel
// instead of the room multicast.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// Dispatcher routes one (channel, message) pair to the correct connection
// set: the whole room, the room minus the origin connection, or the
// configured push sink for the reserved channel name.
type Dispatcher struct {
	conns    *rooms.Registry
	logger   *slog.Logger
	reserved string
	sink     Sink
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger configures structured logging for the dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPushSink reserves a channel name for out-of-band delivery to the given
// sink. Messages addressed to it bypass the room multicast, and clients are
// refused direct subscription to it.
func WithPushSink(channel string, sink Sink) Option {
	return func(d *Dispatcher) {
		if channel != "" && sink != nil {
			d.reserved = channel
			d.sink = sink
		}
	}
}

// New creates a Dispatcher on top of the connection registry.
func New(conns *rooms.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		conns:  conns,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsReserved reports whether the channel name is reserved for the push sink
// and therefore closed to direct client subscription.
func (d *Dispatcher) IsReserved(channel string) bool {
	return d.sink != nil && channel == d.reserved
}

// Broadcast delivers the message. A live origin connection is excluded from
// delivery ("to others"); an absent or already-disconnected origin means the
// whole room receives it. Delivery is fire-and-forget.
func (d *Dispatcher) Broadcast(ctx context.Context, channel string, msg Message) {
	if d.IsReserved(channel) {
		if err := d.sink.Deliver(ctx, msg); err != nil {
			d.logger.ErrorContext(ctx, "push sink delivery failed",
				slog.String("channel", channel),
				slog.String("event", msg.Event),
				slog.Any("error", err))
		}
		return
	}

	exclude := ""
	if msg.Socket != "" && d.conns.IsLive(msg.Socket) {
		exclude = msg.Socket
	}

	d.logger.DebugContext(ctx, "broadcasting",
		slog.String("channel", channel),
		slog.String("event", msg.Event),
		slog.String("exclude", exclude))

	d.conns.Multicast(channel, rooms.Envelope{
		Event:   msg.Event,
		Channel: channel,
		Data:    msg.Data,
	}, exclude)
}
