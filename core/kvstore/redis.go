package kvstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists values as JSON strings in Redis. This is the default
// driver; membership keys live alongside the pub/sub traffic on the same
// server.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return b, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errors.Join(ErrEncodeValue, err)
	}
	if err := s.client.Set(ctx, key, b, 0).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
