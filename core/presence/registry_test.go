package presence_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/echobridge/core/kvstore"
	"github.com/dmitrymomot/echobridge/core/presence"
)

// fakeLive is a LiveSet with a settable per-room connection list.
type fakeLive struct {
	mu    sync.Mutex
	rooms map[string][]string
}

func newFakeLive() *fakeLive {
	return &fakeLive{rooms: make(map[string][]string)}
}

func (f *fakeLive) add(room string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room] = append(f.rooms[room], ids...)
}

func (f *fakeLive) drop(room, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rooms[room][:0]
	for _, v := range f.rooms[room] {
		if v != id {
			kept = append(kept, v)
		}
	}
	f.rooms[room] = kept
}

func (f *fakeLive) Members(room string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rooms[room]...)
}

func member(socketID, userID string) presence.Member {
	return presence.Member{
		SocketID: socketID,
		UserID:   userID,
		UserInfo: json.RawMessage(`{"name":"` + userID + `"}`),
	}
}

func TestDedupe_MostRecentWins(t *testing.T) {
	t.Parallel()

	// Newest-first input: the first occurrence per user id wins.
	in := []presence.Member{
		{SocketID: "c2", UserID: "alice"},
		{SocketID: "c9", UserID: "bob"},
		{SocketID: "c1", UserID: "alice"},
	}
	out := presence.Dedupe(in)
	require.Len(t, out, 2)
	assert.Equal(t, "c2", out[0].SocketID)
	assert.Equal(t, "bob", out[1].UserID)
}

func TestDedupe_Idempotent(t *testing.T) {
	t.Parallel()

	in := []presence.Member{
		{SocketID: "c2", UserID: "alice"},
		{SocketID: "c1", UserID: "alice"},
		{SocketID: "c3", UserID: "bob"},
	}
	once := presence.Dedupe(in)
	twice := presence.Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestRegistry_JoinThenReconcile(t *testing.T) {
	t.Parallel()

	live := newFakeLive()
	r := presence.NewRegistry(kvstore.NewMemoryStore(), live)
	ctx := context.Background()

	live.add("presence-room", "c1")
	res, err := r.Join(ctx, "presence-room", member("c1", "alice"))
	require.NoError(t, err)
	assert.True(t, res.FirstJoin)
	require.Len(t, res.Members, 1)
	assert.Equal(t, "alice", res.Members[0].UserID)

	members, err := r.Reconcile(ctx, "presence-room")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "c1", members[0].SocketID)
}

func TestRegistry_MultiDevice(t *testing.T) {
	t.Parallel()

	live := newFakeLive()
	r := presence.NewRegistry(kvstore.NewMemoryStore(), live)
	ctx := context.Background()
	const ch = "presence-room"

	// First device.
	live.add(ch, "c1")
	res1, err := r.Join(ctx, ch, member("c1", "alice"))
	require.NoError(t, err)
	assert.True(t, res1.FirstJoin)
	assert.Len(t, res1.Members, 1)

	// Second device of the same user: deduped list, joining suppressed.
	live.add(ch, "c2")
	res2, err := r.Join(ctx, ch, member("c2", "alice"))
	require.NoError(t, err)
	assert.False(t, res2.FirstJoin)
	require.Len(t, res2.Members, 1)
	assert.Equal(t, "c2", res2.Members[0].SocketID, "most recent join wins")

	// First device leaves while its connection is still in the room, the
	// order an explicit unsubscribe runs in: user still present via c2.
	left1, err := r.Leave(ctx, ch, "c1")
	require.NoError(t, err)
	live.drop(ch, "c1")
	assert.True(t, left1.Found)
	assert.True(t, left1.StillPresent)

	// Last device leaves: leaving fires with the member's data.
	left2, err := r.Leave(ctx, ch, "c2")
	require.NoError(t, err)
	live.drop(ch, "c2")
	assert.True(t, left2.Found)
	assert.False(t, left2.StillPresent)
	assert.Equal(t, "alice", left2.Member.UserID)
}

func TestRegistry_LeaveWithoutJoinIsNoop(t *testing.T) {
	t.Parallel()

	r := presence.NewRegistry(kvstore.NewMemoryStore(), newFakeLive())
	res, err := r.Leave(context.Background(), "presence-room", "unknown")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.False(t, res.StillPresent)
}

func TestRegistry_LeaveAlreadyReconciledAway(t *testing.T) {
	t.Parallel()

	live := newFakeLive()
	store := kvstore.NewMemoryStore()
	r := presence.NewRegistry(store, live)
	ctx := context.Background()
	const ch = "presence-room"

	live.add(ch, "c1")
	_, err := r.Join(ctx, ch, member("c1", "alice"))
	require.NoError(t, err)

	// The connection vanished before leave processing ran.
	live.drop(ch, "c1")
	res, err := r.Leave(ctx, ch, "c1")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestRegistry_ReconcileDropsStaleEntries(t *testing.T) {
	t.Parallel()

	live := newFakeLive()
	store := kvstore.NewMemoryStore()
	r := presence.NewRegistry(store, live)
	ctx := context.Background()
	const ch = "presence-room"

	live.add(ch, "c1", "c2")
	_, err := r.Join(ctx, ch, member("c1", "alice"))
	require.NoError(t, err)
	_, err = r.Join(ctx, ch, member("c2", "bob"))
	require.NoError(t, err)

	// c1 crashed without a leave event.
	live.drop(ch, "c1")

	members, err := r.Reconcile(ctx, ch)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "bob", members[0].UserID)

	// The filtered result was persisted.
	raw, err := store.Get(ctx, ch+":members")
	require.NoError(t, err)
	var stored []presence.Member
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Len(t, stored, 1)
}

func TestRegistry_ReconcileNeverGrows(t *testing.T) {
	t.Parallel()

	live := newFakeLive()
	store := kvstore.NewMemoryStore()
	r := presence.NewRegistry(store, live)
	ctx := context.Background()
	const ch = "presence-room"

	live.add(ch, "c1", "c2", "c3")
	for i, u := range []string{"alice", "bob", "carol"} {
		_, err := r.Join(ctx, ch, member(fmt.Sprintf("c%d", i+1), u))
		require.NoError(t, err)
	}

	before, err := r.Reconcile(ctx, ch)
	require.NoError(t, err)
	after, err := r.Reconcile(ctx, ch)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(after), len(before))
}

func TestRegistry_IsMember(t *testing.T) {
	t.Parallel()

	live := newFakeLive()
	r := presence.NewRegistry(kvstore.NewMemoryStore(), live)
	ctx := context.Background()
	const ch = "presence-room"

	live.add(ch, "c1")
	_, err := r.Join(ctx, ch, member("c1", "alice"))
	require.NoError(t, err)

	ok, err := r.IsMember(ctx, ch, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsMember(ctx, ch, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	// Stale entries do not count as members.
	live.drop(ch, "c1")
	ok, err = r.IsMember(ctx, ch, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_ConcurrentJoinsSameChannel(t *testing.T) {
	t.Parallel()

	live := newFakeLive()
	store := kvstore.NewMemoryStore()
	r := presence.NewRegistry(store, live)
	ctx := context.Background()
	const ch = "presence-busy"
	const n = 50

	for i := range n {
		live.add(ch, fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Join(ctx, ch, member(fmt.Sprintf("c%d", i), fmt.Sprintf("u%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// No join lost to an interleaved reconcile-then-write.
	members, err := r.Reconcile(ctx, ch)
	require.NoError(t, err)
	assert.Len(t, members, n)
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (json.RawMessage, error) {
	return nil, errors.New("store down")
}

func (failingStore) Set(context.Context, string, any) error {
	return errors.New("store down")
}

func TestRegistry_StoreFailureSurfacesError(t *testing.T) {
	t.Parallel()

	live := newFakeLive()
	r := presence.NewRegistry(failingStore{}, live)
	ctx := context.Background()

	_, err := r.Join(ctx, "presence-room", member("c1", "alice"))
	assert.Error(t, err, "join cannot be recorded when the store is down")

	_, err = r.Reconcile(ctx, "presence-room")
	assert.Error(t, err)
}
