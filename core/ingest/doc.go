// Package ingest receives broadcast events from application servers and
// hands them to the dispatcher. Two sources are supported: a redis pub/sub
// subscriber listening on every channel under the configured key prefix,
// and an HTTP endpoint for servers that cannot reach redis.
package ingest
