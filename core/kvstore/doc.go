// Package kvstore defines the key-value contract behind presence membership
// persistence and ships four interchangeable drivers: Redis (default),
// PostgreSQL, MongoDB, and an in-memory store for tests and single-node
// development.
//
// Values are opaque JSON. A missing key reads as (nil, nil); the presence
// registry treats that as an empty membership set. Drivers never retry;
// resilience lives in the caller, which degrades to best-effort membership
// when the store is down.
package kvstore
