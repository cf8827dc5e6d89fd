package presence

import "errors"

// ErrCorruptMembership is returned when a persisted member list cannot be
// decoded. Callers treat it like a store failure and degrade.
var ErrCorruptMembership = errors.New("corrupt presence membership data")
