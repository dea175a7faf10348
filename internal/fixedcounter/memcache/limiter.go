// Package fcmemcache provides a Memcache implementation of the Fixed Window Counter rate limiting algorithm.
package fcmemcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/memcacheiface"
	"learn.wordgate/types"
)

type Limiter struct {
	client    memcacheiface.Client
	keyPrefix string
	cfg       core.Config
	clock     clock.Clock
}

// NewLimiterOption is a function type for setting options on a Limiter.
type NewLimiterOption func(*Limiter)

// WithClock sets a custom clock for the Limiter. The clock picks the window key.
func WithClock(c clock.Clock) NewLimiterOption {
	return func(l *Limiter) {
		l.clock = c
	}
}

func NewLimiter(client memcacheiface.Client, keyPrefix string, cfg core.Config, opts ...NewLimiterOption) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		client:    client,
		keyPrefix: keyPrefix,
		cfg:       cfg,
		clock:     clock.Real{},
	}
	for _, opt := range opts {
		opt(l)
	}
	log.Info().Str("limiter_type", "FixedWindowCounter").Str("backend", "Memcache").Str("limiter_key_prefix", keyPrefix).Dur("window", cfg.Window).Int64("limit", cfg.MaxRequests).Msg("Limiter: Initialized")
	return l, nil
}

// Allow counts the request against the identifier's counter for the current
// epoch-aligned window. The counter may run past the limit; only the
// decision is capped.
func (l *Limiter) Allow(ctx context.Context, identifier string) (core.Decision, error) {
	if err := ctx.Err(); err != nil {
		return core.Decision{}, err
	}

	now := l.clock.Now()
	windowStart := clock.WindowStart(now, l.cfg.Window)
	windowEnd := windowStart.Add(l.cfg.Window)
	memcacheKey := fmt.Sprintf("%s:%s:%d", l.keyPrefix, identifier, windowStart.UnixMilli())

	// Memcache expirations are whole seconds.
	expirySeconds := int32((l.cfg.Window + time.Second - 1) / time.Second)
	if expirySeconds < 1 {
		expirySeconds = 1
	}

	count, err := l.incr(memcacheKey, expirySeconds)
	if err != nil {
		log.Error().Err(err).Str("limiter", l.keyPrefix).Str("id", identifier).Msg("Failed to add/increment counter")
		return core.Decision{}, err
	}

	d := core.Decision{
		Allowed:   count <= l.cfg.MaxRequests,
		Limit:     l.cfg.MaxRequests,
		Remaining: l.cfg.MaxRequests - count,
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		d.RetryAfter = windowEnd.Sub(now)
	}
	if !d.Allowed {
		log.Debug().Str("limiter", l.keyPrefix).Str("id", identifier).Int64("count", count).Msg("Denied")
	}
	return d, nil
}

// incr creates the window counter at 1 or increments an existing one.
func (l *Limiter) incr(key string, expirySeconds int32) (int64, error) {
	err := l.client.Add(&memcache.Item{
		Key:        key,
		Value:      []byte("1"),
		Expiration: expirySeconds,
	})
	if err == nil {
		return 1, nil
	}
	if !errors.Is(err, memcache.ErrNotStored) {
		return 0, fmt.Errorf("memcache Add operation failed: %w", err)
	}

	// Key already exists. Increment keeps the TTL set by Add.
	newValue, err := l.client.Increment(key, 1)
	if err != nil {
		return 0, fmt.Errorf("memcache increment failed: %w", err)
	}
	return int64(newValue), nil
}

var _ types.Limiter = (*Limiter)(nil)
