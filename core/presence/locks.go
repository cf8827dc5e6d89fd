package presence

import "sync"

// channelLocks hands out one mutex per channel name so reconcile-then-write
// sequences on the same channel never interleave, while operations on
// different channels run concurrently. Entries are reference-counted and
// removed once the last holder unlocks.
type channelLocks struct {
	mu    sync.Mutex
	locks map[string]*channelLock
}

type channelLock struct {
	mu   sync.Mutex
	refs int
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: make(map[string]*channelLock)}
}

// acquire blocks until the channel's lock is held and returns the release
// function.
func (l *channelLocks) acquire(channel string) func() {
	l.mu.Lock()
	cl, ok := l.locks[channel]
	if !ok {
		cl = &channelLock{}
		l.locks[channel] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()

	return func() {
		cl.mu.Unlock()

		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, channel)
		}
		l.mu.Unlock()
	}
}
