package presence

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/dmitrymomot/echobridge/core/kvstore"
)

const membersKeySuffix = ":members"

// LiveSet reports which connections are currently alive in a room. The
// connection registry satisfies it; reconciliation cross-checks persisted
// membership against it.
type LiveSet interface {
	Members(room string) []string
}

// JoinResult is returned by Join for the presence protocol events.
type JoinResult struct {
	// Members is the deduplicated, newest-first list for presence:subscribed.
	Members []Member
	// FirstJoin is true when this was the identity's first live connection,
	// i.e. presence:joining should fire.
	FirstJoin bool
}

// LeaveResult is returned by Leave for the presence protocol events.
type LeaveResult struct {
	// Member is the removed entry, or the zero value when Found is false.
	Member Member
	// Found is false when no entry belonged to the leaving connection.
	Found bool
	// StillPresent is true when another connection of the same identity
	// remains, i.e. presence:leaving must be suppressed.
	StillPresent bool
}

// Registry owns presence membership lists. All mutation goes through its
// reconcile-then-write methods, serialized per channel name.
type Registry struct {
	store  kvstore.Store
	conns  LiveSet
	locks  *channelLocks
	logger *slog.Logger
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

// NewRegistry creates a presence registry on top of the given store and live
// connection set.
func NewRegistry(store kvstore.Store, conns LiveSet, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		conns:  conns,
		locks:  newChannelLocks(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile drops persisted entries whose connection is no longer live in
// the channel's room, persists the filtered set, and returns it. It never
// adds entries. Connections can vanish without a leave event, so this runs
// before every membership decision.
func (r *Registry) Reconcile(ctx context.Context, channel string) ([]Member, error) {
	release := r.locks.acquire(channel)
	defer release()

	return r.reconcileLocked(ctx, channel)
}

// reconcileLocked must be called with the channel lock held.
func (r *Registry) reconcileLocked(ctx context.Context, channel string) ([]Member, error) {
	stored, err := r.loadMembers(ctx, channel)
	if err != nil {
		return nil, err
	}

	live := make(map[string]struct{})
	for _, id := range r.conns.Members(channel) {
		live[id] = struct{}{}
	}

	kept := make([]Member, 0, len(stored))
	for _, m := range stored {
		if _, ok := live[m.SocketID]; ok {
			kept = append(kept, m)
		}
	}

	if len(kept) != len(stored) {
		if err := r.store.Set(ctx, channel+membersKeySuffix, kept); err != nil {
			return kept, err
		}
	}
	return kept, nil
}

// IsMember reports whether any live entry on the channel belongs to the
// given identity.
func (r *Registry) IsMember(ctx context.Context, channel, userID string) (bool, error) {
	release := r.locks.acquire(channel)
	defer release()

	members, err := r.reconcileLocked(ctx, channel)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// Join reconciles, appends the member (append, not replace: each device gets
// its own entry), and persists. The member's SocketID must be set by the
// caller.
func (r *Registry) Join(ctx context.Context, channel string, member Member) (JoinResult, error) {
	release := r.locks.acquire(channel)
	defer release()

	members, err := r.reconcileLocked(ctx, channel)
	if err != nil {
		// Degrade to an empty set: the join is still recorded so the member's
		// own entry survives a store hiccup.
		r.logger.ErrorContext(ctx, "presence reconcile failed, assuming empty membership",
			slog.String("channel", channel), slog.Any("error", err))
		members = nil
	}

	first := true
	for _, m := range members {
		if m.UserID == member.UserID {
			first = false
			break
		}
	}

	members = append(members, member)
	if err := r.store.Set(ctx, channel+membersKeySuffix, members); err != nil {
		return JoinResult{}, err
	}

	return JoinResult{
		Members:   Dedupe(newestFirst(members)),
		FirstJoin: first,
	}, nil
}

// Leave reconciles, removes exactly the entry recorded by the given
// connection, and persists. Leaving a channel the connection never joined is
// a no-op.
func (r *Registry) Leave(ctx context.Context, channel, socketID string) (LeaveResult, error) {
	release := r.locks.acquire(channel)
	defer release()

	members, err := r.reconcileLocked(ctx, channel)
	if err != nil {
		return LeaveResult{}, err
	}

	idx := -1
	for i, m := range members {
		if m.SocketID == socketID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return LeaveResult{}, nil
	}

	removed := members[idx]
	members = append(members[:idx], members[idx+1:]...)

	if err := r.store.Set(ctx, channel+membersKeySuffix, members); err != nil {
		return LeaveResult{}, err
	}

	still := false
	for _, m := range members {
		if m.UserID == removed.UserID {
			still = true
			break
		}
	}

	return LeaveResult{Member: removed, Found: true, StillPresent: still}, nil
}

// Users returns the deduplicated, newest-first member list for consumers
// outside the join/leave protocol (the introspection API).
func (r *Registry) Users(ctx context.Context, channel string) ([]Member, error) {
	members, err := r.Reconcile(ctx, channel)
	if err != nil {
		return nil, err
	}
	return Dedupe(newestFirst(members)), nil
}

// loadMembers reads and decodes the persisted set. An absent key is an empty
// set.
func (r *Registry) loadMembers(ctx context.Context, channel string) ([]Member, error) {
	raw, err := r.store.Get(ctx, channel+membersKeySuffix)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var members []Member
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, errors.Join(ErrCorruptMembership, err)
	}
	return members, nil
}
