package rooms

import (
	"io"
	"log/slog"
	"sync"
)

// Conn is a live client connection handle. Send must not block: transports
// queue the frame and report false when the queue is full or the connection
// is gone.
type Conn interface {
	ID() string
	Send(env Envelope) bool
}

// Registry tracks live connections and their room membership, and multicasts
// frames to rooms. It is the single owner of "which connections are
// physically alive"; presence reconciliation cross-checks against it.
type Registry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	conns  map[string]Conn
	rooms  map[string]map[string]struct{}
	byConn map[string]map[string]struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger configures structured logging for the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty connection registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		conns:  make(map[string]Conn),
		rooms:  make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a live connection. It replaces any previous registration
// under the same id.
func (r *Registry) Register(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Unregister removes a connection and clears its room membership. The
// returned list holds the rooms the connection belonged to, so the caller
// can run leave processing per room after the connection is already gone.
func (r *Registry) Unregister(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, id)

	joined := r.byConn[id]
	delete(r.byConn, id)

	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
		r.removeFromRoom(id, room)
	}
	return out
}

// Join adds the connection to a room. Joining an unknown connection is a
// no-op.
func (r *Registry) Join(id, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, live := r.conns[id]; !live {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]struct{})
	}
	r.rooms[room][id] = struct{}{}
	if r.byConn[id] == nil {
		r.byConn[id] = make(map[string]struct{})
	}
	r.byConn[id][room] = struct{}{}
}

// Leave removes the connection from a room. Idempotent.
func (r *Registry) Leave(id, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeFromRoom(id, room)
	if joined := r.byConn[id]; joined != nil {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byConn, id)
		}
	}
}

// removeFromRoom must be called with the write lock held.
func (r *Registry) removeFromRoom(id, room string) {
	members := r.rooms[room]
	if members == nil {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// Members returns the ids of connections currently in the room.
func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// InRoom reports whether the connection currently belongs to the room.
func (r *Registry) InRoom(id, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[room][id]
	return ok
}

// Rooms returns the rooms the connection currently belongs to.
func (r *Registry) Rooms(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.byConn[id]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	return out
}

// IsLive reports whether the connection is still registered.
func (r *Registry) IsLive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.conns[id]
	return ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RoomSizes returns the current member count per occupied room.
func (r *Registry) RoomSizes() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.rooms))
	for room, members := range r.rooms {
		out[room] = len(members)
	}
	return out
}

// Multicast delivers the frame to every connection in the room except
// excludeID. Pass an empty excludeID to reach the whole room. Delivery is
// fire-and-forget; frames to slow consumers are dropped and logged.
func (r *Registry) Multicast(room string, env Envelope, excludeID string) {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		if id == excludeID {
			continue
		}
		if c, ok := r.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if !c.Send(env) {
			r.logger.Debug("dropped frame for slow consumer",
				slog.String("socket_id", c.ID()),
				slog.String("room", room),
				slog.String("event", env.Event))
		}
	}
}
