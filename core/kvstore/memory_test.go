package kvstore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/echobridge/core/kvstore"
)

func TestMemoryStore_MissingKey(t *testing.T) {
	t.Parallel()

	s := kvstore.NewMemoryStore()
	v, err := s.Get(context.Background(), "presence-room:members")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()

	s := kvstore.NewMemoryStore()
	ctx := context.Background()

	in := []map[string]any{{"user_id": "1", "user_info": map[string]any{"name": "a"}}}
	require.NoError(t, s.Set(ctx, "k", in))

	raw, err := s.Get(ctx, "k")
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0]["user_id"])
}

func TestMemoryStore_Overwrite(t *testing.T) {
	t.Parallel()

	s := kvstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "first"))
	require.NoError(t, s.Set(ctx, "k", "second"))

	raw, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `"second"`, string(raw))
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := kvstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "value"))

	raw, err := s.Get(ctx, "k")
	require.NoError(t, err)
	for i := range raw {
		raw[i] = 'x'
	}

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `"value"`, string(again))
}

func TestMemoryStore_EncodeError(t *testing.T) {
	t.Parallel()

	s := kvstore.NewMemoryStore()
	err := s.Set(context.Background(), "k", make(chan int))
	assert.ErrorIs(t, err, kvstore.ErrEncodeValue)
}
