// Package fcredis provides a Redis implementation of the Fixed Window Counter rate limiting algorithm.
//
// Each identifier gets one counter key per epoch-aligned window, so every process
// sharing the Redis instance agrees on window boundaries as long as their clocks do.
package fcredis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/types"
)

// Limiter implements the Fixed Window Counter algorithm using Redis.
type Limiter struct {
	client *redis.Client
	key    string
	cfg    core.Config
	clock  clock.Clock
	script *redis.Script
}

// NewLimiterOption is a function type for setting options on a Limiter.
type NewLimiterOption func(*Limiter)

// WithClock sets a custom clock for the Limiter.
func WithClock(c clock.Clock) NewLimiterOption {
	return func(l *Limiter) {
		l.clock = c
	}
}

// NewLimiter creates a new Redis-backed Fixed Window Counter limiter.
func NewLimiter(client *redis.Client, key string, cfg core.Config, opts ...NewLimiterOption) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		client: client,
		key:    key,
		cfg:    cfg,
		clock:  clock.Real{},
		script: redisAllowScript,
	}
	for _, opt := range opts {
		opt(l)
	}
	log.Info().Str("limiter_type", "FixedWindowCounter").Str("backend", "Redis").Str("limiter_key", key).Dur("window", cfg.Window).Int64("limit", cfg.MaxRequests).Msg("Limiter: Initialized")
	return l, nil
}

// Allow checks if a request for the given identifier is allowed using a Redis Lua script.
func (l *Limiter) Allow(ctx context.Context, identifier string) (core.Decision, error) {
	now := l.clock.Now()
	windowStart := clock.WindowStart(now, l.cfg.Window)
	windowEnd := windowStart.Add(l.cfg.Window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.key, identifier, windowStart.UnixMilli())

	expiryMillis := l.cfg.Window.Milliseconds()
	if expiryMillis < 1 {
		expiryMillis = 1
	}

	result, err := l.script.Run(ctx, l.client, []string{redisKey}, l.cfg.MaxRequests, expiryMillis).Result()
	if err != nil {
		log.Error().Err(err).Str("limiter_type", "FixedWindowCounter").Str("backend", "Redis").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Script execution failed")
		return core.Decision{}, fmt.Errorf("redis script execution failed: %w", err)
	}

	allowed, count, err := parseResult(result)
	if err != nil {
		return core.Decision{}, err
	}

	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: l.cfg.MaxRequests - count,
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		d.RetryAfter = windowEnd.Sub(now)
	}
	return d, nil
}

func parseResult(result interface{}) (bool, int64, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected script result type: %T", result)
	}
	allowed, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected script result type: allowed is %T", values[0])
	}
	count, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected script result type: count is %T", values[1])
	}
	return allowed == 1, count, nil
}

var _ types.Limiter = (*Limiter)(nil)
