package tbredis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/types"
)

type Limiter struct {
	key    string
	cfg    core.Config
	client *redis.Client
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

// NewLimiter creates a Redis Token Bucket limiter with capacity cfg.MaxRequests,
// refilled at cfg.MaxRequests per cfg.Window.
func NewLimiter(key string, cfg core.Config, client *redis.Client, opts ...NewLimiterOption) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		key:    key,
		cfg:    cfg,
		client: client,
		clock:  clock.Real{},
		script: redisAllowScript,
	}
	for _, opt := range opts {
		opt(l)
	}
	log.Info().Str("limiter_type", "TokenBucket").Str("backend", "Redis").Str("limiter_key", key).Dur("window", cfg.Window).Int64("capacity", cfg.MaxRequests).Msg("Limiter: Initialized")
	return l, nil
}

func (l *Limiter) Allow(ctx context.Context, identifier string) (core.Decision, error) {
	// The actual key in Redis will be a combination of the limiter key and the identifier
	redisKey := fmt.Sprintf("token_bucket:%s:%s", l.key, identifier)
	windowMillis := l.cfg.Window.Milliseconds()
	if windowMillis < 1 {
		windowMillis = 1
	}

	result, err := l.script.Run(ctx, l.client, []string{redisKey}, l.cfg.MaxRequests, windowMillis, l.clock.Now().UnixMilli()).Result()
	if err != nil {
		log.Error().Err(err).Str("limiter_type", "TokenBucket").Str("backend", "Redis").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Script execution failed")
		return core.Decision{}, fmt.Errorf("redis script error for limiter '%s', identifier '%s': %w", l.key, identifier, err)
	}

	// The script returns a two-element array: [allowed, tokens]
	results, ok := result.([]interface{})
	if !ok || len(results) != 2 {
		return core.Decision{}, fmt.Errorf("unexpected result from redis script for limiter '%s', identifier '%s'", l.key, identifier)
	}
	allowed, ok := results[0].(int64)
	if !ok {
		return core.Decision{}, fmt.Errorf("unexpected allowed value type from redis script for limiter '%s': %T", l.key, results[0])
	}
	tokensStr, ok := results[1].(string)
	if !ok {
		return core.Decision{}, fmt.Errorf("unexpected tokens value type from redis script for limiter '%s': %T", l.key, results[1])
	}
	tokens, err := strconv.ParseFloat(tokensStr, 64)
	if err != nil {
		return core.Decision{}, fmt.Errorf("parse tokens from redis script for limiter '%s': %w", l.key, err)
	}

	d := core.Decision{
		Allowed:   allowed == 1,
		Limit:     l.cfg.MaxRequests,
		Remaining: int64(math.Floor(tokens)),
	}
	if d.Remaining == 0 {
		missing := 1 - tokens
		d.RetryAfter = time.Duration(math.Ceil(missing * float64(l.cfg.Window) / float64(l.cfg.MaxRequests)))
	}
	return d, nil
}

var _ types.Limiter = (*Limiter)(nil)
