// Package swcmemcache provides a Memcache implementation of the Sliding Window Counter rate limiting algorithm.
package swcmemcache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/memcacheiface"
	"learn.wordgate/types"
)

// Limiter keeps one counter per epoch-aligned window. The estimate weights the
// previous window's count by how much of it still overlaps the sliding window.
type Limiter struct {
	client    memcacheiface.WindowClient
	keyPrefix string
	cfg       core.Config
	clock     clock.Clock
}

type NewLimiterOption func(*Limiter)

// WithClock sets a custom clock for the Limiter.
func WithClock(c clock.Clock) NewLimiterOption {
	return func(l *Limiter) {
		l.clock = c
	}
}

func NewLimiter(client memcacheiface.WindowClient, keyPrefix string, cfg core.Config, opts ...NewLimiterOption) (*Limiter, error) {
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
	log.Info().Str("limiter_type", "SlidingWindowCounter").Str("backend", "Memcache").Str("limiter_key_prefix", keyPrefix).Dur("window", cfg.Window).Int64("limit", cfg.MaxRequests).Msg("Limiter: Initialized")
	return l, nil
}

// Allow increments the current window first and takes the increment back when
// the request is rejected, so concurrent callers can only be over-counted, never
// over-admitted.
func (l *Limiter) Allow(ctx context.Context, identifier string) (core.Decision, error) {
	if err := ctx.Err(); err != nil {
		return core.Decision{}, err
	}

	now := l.clock.Now()
	windowStart := clock.WindowStart(now, l.cfg.Window)
	currentKey := l.windowKey(identifier, windowStart)
	previousKey := l.windowKey(identifier, windowStart.Add(-l.cfg.Window))

	current, err := l.incr(currentKey)
	if err != nil {
		log.Error().Err(err).Str("limiter", l.keyPrefix).Str("id", identifier).Msg("Failed to add/increment counter")
		return core.Decision{}, err
	}
	previous, err := l.count(previousKey)
	if err != nil {
		log.Error().Err(err).Str("limiter", l.keyPrefix).Str("id", identifier).Msg("Failed to read previous window")
		return core.Decision{}, err
	}

	elapsed := now.Sub(windowStart)
	weight := 1 - float64(elapsed)/float64(l.cfg.Window)
	allowed := float64(previous)*weight+float64(current) <= float64(l.cfg.MaxRequests)
	if !allowed {
		if _, err := l.client.Decrement(currentKey, 1); err != nil {
			log.Warn().Err(err).Str("limiter", l.keyPrefix).Str("id", identifier).Msg("Failed to roll back rejected increment")
		} else {
			current--
		}
		log.Debug().Str("limiter", l.keyPrefix).Str("id", identifier).Int64("previous", previous).Int64("current", current).Msg("Denied")
	}

	estimate := float64(previous)*weight + float64(current)
	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: int64(math.Floor(float64(l.cfg.MaxRequests) - estimate)),
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		d.RetryAfter = l.retryAfter(previous, current, elapsed)
	}
	return d, nil
}

func (l *Limiter) windowKey(identifier string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", l.keyPrefix, identifier, windowStart.UnixMilli())
}

// retryAfter is the wait until one more request fits, assuming no other traffic.
func (l *Limiter) retryAfter(previous, current int64, elapsed time.Duration) time.Duration {
	untilNextWindow := l.cfg.Window - elapsed
	room := float64(l.cfg.MaxRequests - current - 1)
	if room < 0 || previous == 0 {
		return untilNextWindow
	}
	need := time.Duration(math.Ceil((1 - room/float64(previous)) * float64(l.cfg.Window)))
	if need <= elapsed {
		return 0
	}
	return need - elapsed
}

// incr creates the window counter at 1 or increments an existing one.
// Counters live for two windows so the next window can still weight this one.
func (l *Limiter) incr(key string) (int64, error) {
	expirySeconds := int32((2*l.cfg.Window + time.Second - 1) / time.Second)
	if expirySeconds < 1 {
		expirySeconds = 1
	}
	err := l.client.Add(&memcache.Item{Key: key, Value: []byte("1"), Expiration: expirySeconds})
	if err == nil {
		return 1, nil
	}
	if !errors.Is(err, memcache.ErrNotStored) {
		return 0, fmt.Errorf("memcache Add operation failed: %w", err)
	}
	n, err := l.client.Increment(key, 1)
	if err != nil {
		return 0, fmt.Errorf("memcache increment failed: %w", err)
	}
	return int64(n), nil
}

// count reads a window counter; a missing counter is zero.
func (l *Limiter) count(key string) (int64, error) {
	item, err := l.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("memcache get failed: %w", err)
	}
	// memcached pads decremented values with trailing spaces.
	n, err := strconv.ParseInt(strings.TrimSpace(string(item.Value)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", key, err)
	}
	return n, nil
}

var _ types.Limiter = (*Limiter)(nil)
