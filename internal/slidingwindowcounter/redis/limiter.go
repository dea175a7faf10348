// Package swredis provides a Redis implementation of the Sliding Window Counter rate limiting algorithm.
package swredis

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/types"
)

type Limiter struct {
	key    string // Limiter key from config
	client *redis.Client
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

func NewLimiter(key string, cfg core.Config, client *redis.Client, opts ...NewLimiterOption) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		key:    key,
		client: client,
		cfg:    cfg,
		clock:  clock.Real{},
		script: redisAllowScript,
	}
	for _, opt := range opts {
		opt(l)
	}
	log.Info().Str("limiter_type", "SlidingWindowCounter").Str("backend", "Redis").Str("limiter_key", key).Dur("window", cfg.Window).Int64("limit", cfg.MaxRequests).Msg("Limiter: Initialized")
	return l, nil
}

func (l *Limiter) Allow(ctx context.Context, identifier string) (core.Decision, error) {
	// Construct the specific key for this identifier
	redisKey := l.key + ":" + identifier

	now := l.clock.Now()
	windowSizeMillis := l.cfg.Window.Milliseconds()
	if windowSizeMillis < 1 {
		windowSizeMillis = 1
	}

	result, err := l.script.Run(ctx, l.client, []string{redisKey}, now.UnixMilli(), windowSizeMillis, l.cfg.MaxRequests).Result()
	if err != nil {
		log.Error().Err(err).Str("limiter_type", "SlidingWindowCounter").Str("backend", "Redis").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Script execution failed")
		return core.Decision{}, fmt.Errorf("redis script error for limiter '%s', identifier '%s': %w", l.key, identifier, err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return core.Decision{}, fmt.Errorf("unexpected result type from Redis script for key '%s': %T", redisKey, result)
	}
	allowed, ok := values[0].(int64)
	if !ok {
		return core.Decision{}, fmt.Errorf("unexpected allowed type from Redis script for key '%s': %T", redisKey, values[0])
	}
	estimateStr, ok := values[1].(string)
	if !ok {
		return core.Decision{}, fmt.Errorf("unexpected estimate type from Redis script for key '%s': %T", redisKey, values[1])
	}
	estimate, err := strconv.ParseFloat(estimateStr, 64)
	if err != nil {
		return core.Decision{}, fmt.Errorf("parse estimate for key '%s': %w", redisKey, err)
	}

	d := core.Decision{
		Allowed:   allowed == 1,
		Limit:     l.cfg.MaxRequests,
		Remaining: int64(math.Floor(float64(l.cfg.MaxRequests) - estimate)),
	}
	if d.Remaining <= 0 {
		// Upper bound: at the next boundary the current count becomes the weighted one.
		d.Remaining = 0
		d.RetryAfter = clock.WindowStart(now, l.cfg.Window).Add(l.cfg.Window).Sub(now)
	}
	return d, nil
}

var _ types.Limiter = (*Limiter)(nil)
