package lbredis

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

// Limiter is the Redis implementation of the Leaky Bucket.
type Limiter struct {
	key    string
	cfg    core.Config
	client *redis.Client
	clock  clock.Clock
	script *redis.Script
}

type NewLimiterOption func(*Limiter)

// WithClock sets the time source sent to the script. Defaults to the wall clock.
func WithClock(c clock.Clock) NewLimiterOption {
	return func(l *Limiter) {
		l.clock = c
	}
}

// NewLimiter creates a Redis Leaky Bucket limiter holding up to cfg.MaxRequests units,
// drained at cfg.MaxRequests per cfg.Window.
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
	log.Info().Str("limiter_type", "LeakyBucket").Str("backend", "Redis").Str("limiter_key", key).Dur("window", cfg.Window).Int64("capacity", cfg.MaxRequests).Msg("Limiter: Initialized")
	return l, nil
}

// Allow checks if a request for the given identifier fits in its bucket.
func (l *Limiter) Allow(ctx context.Context, identifier string) (core.Decision, error) {
	itemKey := fmt.Sprintf("leaky_bucket:%s:%s", l.key, identifier)
	windowMillis := l.cfg.Window.Milliseconds()
	if windowMillis < 1 {
		windowMillis = 1
	}

	result, err := l.script.Run(ctx, l.client, []string{itemKey}, l.cfg.MaxRequests, windowMillis, l.clock.Now().UnixMilli()).Result()
	if err != nil {
		log.Error().Err(err).Str("limiter_type", "LeakyBucket").Str("backend", "Redis").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Failed to run Lua script")
		return core.Decision{}, fmt.Errorf("run leaky bucket lua script: %w", err)
	}

	level, allowed, err := parseResult(result)
	if err != nil {
		log.Error().Err(err).Str("limiter_type", "LeakyBucket").Str("backend", "Redis").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Unexpected script result")
		return core.Decision{}, err
	}

	capacity := float64(l.cfg.MaxRequests)
	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: int64(math.Floor(capacity - level)),
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		overflow := level + 1 - capacity
		d.RetryAfter = time.Duration(math.Ceil(overflow * float64(l.cfg.Window) / capacity))
	}
	return d, nil
}

func parseResult(result interface{}) (level float64, allowed bool, err error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, false, fmt.Errorf("unexpected result type from redis script: %T", result)
	}
	flag, ok := values[0].(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected allowed value type from redis script: %T", values[0])
	}
	levelStr, ok := values[1].(string)
	if !ok {
		return 0, false, fmt.Errorf("unexpected level value type from redis script: %T", values[1])
	}
	level, err = strconv.ParseFloat(levelStr, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse level from redis script: %w", err)
	}
	return level, flag == 1, nil
}

var _ types.Limiter = (*Limiter)(nil)
