package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/echobridge/core/dispatch"
)

// RedisSubscriber listens on every pub/sub channel under the configured key
// prefix. The redis channel name minus the prefix is the broadcast channel;
// the payload is the message JSON.
type RedisSubscriber struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// RedisOption configures a RedisSubscriber.
type RedisOption func(*RedisSubscriber)

// WithRedisLogger sets the logger, which is otherwise discarded.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(s *RedisSubscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRedisSubscriber wraps an established redis client. keyPrefix matches
// the prefix the application servers publish under; empty subscribes to
// every channel.
func NewRedisSubscriber(client redis.UniversalClient, keyPrefix string, opts ...RedisOption) *RedisSubscriber {
	s := &RedisSubscriber{
		client: client,
		prefix: keyPrefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts the pattern subscription and returns once redis has
// confirmed it.
func (s *RedisSubscriber) Subscribe(ctx context.Context, fn Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub != nil {
		return ErrAlreadySubscribed
	}

	pubsub := s.client.PSubscribe(ctx, s.prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return errors.Join(ErrSubscribeFailed, err)
	}

	s.pubsub = pubsub
	s.done = make(chan struct{})

	go s.run(pubsub, fn, s.done)
	return nil
}

func (s *RedisSubscriber) run(pubsub *redis.PubSub, fn Handler, done chan struct{}) {
	defer close(done)
	for msg := range pubsub.Channel() {
		channel := strings.TrimPrefix(msg.Channel, s.prefix)

		var payload dispatch.Message
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			s.logger.Warn("malformed ingest payload skipped",
				slog.String("channel", channel), slog.Any("error", err))
			continue
		}

		fn(channel, payload)
	}
}

// Unsubscribe closes the subscription and waits for in-flight callbacks.
func (s *RedisSubscriber) Unsubscribe() error {
	s.mu.Lock()
	pubsub, done := s.pubsub, s.done
	s.pubsub, s.done = nil, nil
	s.mu.Unlock()

	if pubsub == nil {
		return ErrNotSubscribed
	}
	err := pubsub.Close()
	<-done
	return err
}
