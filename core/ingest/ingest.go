package ingest

import (
	"context"

	"github.com/dmitrymomot/echobridge/core/dispatch"
)

// Handler consumes one ingested event addressed to a channel.
type Handler func(channel string, msg dispatch.Message)

// Subscriber is an event source. Subscribe registers the handler and starts
// delivery; it returns once the source is actually listening. Unsubscribe
// stops delivery and returns only after the last callback has completed.
type Subscriber interface {
	Subscribe(ctx context.Context, fn Handler) error
	Unsubscribe() error
}
