// Package dispatch routes inbound broadcast events to connected clients with
// correct self-exclusion semantics, and diverts the reserved push channel to
// an external sink.
package dispatch
