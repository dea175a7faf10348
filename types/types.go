// Package types defines common types and interfaces used throughout the rate limiter.
package types

import (
	"context"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-redis/redis/v8"

	"learn.wordgate/core"
)

// Limiter is the keyed admission contract: one logical limiter per identifier.
// Every backend (in-memory registry, Redis, Memcache) implements it.
type Limiter interface {
	// Allow records a request attempt for identifier and returns the decision.
	// A rejection is a Decision with Allowed=false, not an error; errors mean
	// the decision could not be made (cancelled context, backend failure).
	Allow(ctx context.Context, identifier string) (core.Decision, error)
}

// BackendClients holds initialized backend client instances.
type BackendClients struct {
	// RedisClient is the Redis client instance.
	RedisClient *redis.Client
	// MemcacheClient is the Memcache client instance.
	MemcacheClient *memcache.Client
}
