package kvstore

import (
	"context"
	"encoding/json"
)

// Store is the key-value contract used to persist presence membership.
// Values are opaque JSON documents. Get returns nil without an error when the
// key is absent. Implementations do not need transactions; callers serialize
// get-then-set sequences per key themselves.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value any) error
}
