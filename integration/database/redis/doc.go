// Package redis provides Redis client initialization and health checking for
// the presence key-value store and the pub/sub event subscription.
//
// Connect validates the connection URL, retries transient failures with a
// configurable interval, and verifies connectivity with a ping before
// returning the client:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//	client, err := redis.Connect(ctx, cfg)
//
// The returned *redis.Client is shared by the kvstore driver and the ingest
// subscriber; both accept redis.UniversalClient so a cluster client can be
// substituted without changes.
package redis
