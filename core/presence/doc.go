// Package presence tracks presence-channel membership under concurrent
// join/leave/disconnect traffic.
//
// Membership is persisted in the key-value store at "<channel>:members" as
// an append-ordered list, one entry per live connection, so a user connected
// from several devices holds several entries. Every externally visible list
// is deduplicated by user id, most recent entry winning.
//
// The store is the only durable record and connections can vanish without a
// leave event, so every operation starts by reconciling the persisted list
// against the connection registry's live room membership. The reconcile-
// then-write sequence is a multi-step critical section; a per-channel lock
// serializes it so concurrent joins on the same channel cannot drop each
// other's writes.
package presence
