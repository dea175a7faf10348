// Package tbmemcache provides a Memcache implementation of the Token Bucket rate limiting algorithm.
package tbmemcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/memcacheiface"
	"learn.wordgate/types"
)

// maxCASAttempts bounds the read-modify-write loop under contention.
const maxCASAttempts = 8

// ErrContention is returned when the bucket kept changing between read and write.
var ErrContention = errors.New("token bucket state changed concurrently, giving up")

var errRetry = errors.New("retry")

// Limiter is the Memcache implementation of the Token Bucket.
// State updates use gets/cas, so concurrent callers never double-spend a token.
type Limiter struct {
	key    string
	cfg    core.Config
	client memcacheiface.CASClient
	clock  clock.Clock
}

// tokenBucketState represents the state of a token bucket stored in Memcache.
type tokenBucketState struct {
	Tokens     float64 `json:"tokens"`
	LastRefill int64   `json:"last_refill"`
}

// NewLimiterOption is a function type for setting options on a Limiter.
type NewLimiterOption func(*Limiter)

// WithClock sets a custom clock for the Limiter.
func WithClock(c clock.Clock) NewLimiterOption {
	return func(l *Limiter) {
		l.clock = c
	}
}

// NewLimiter creates a Memcache Token Bucket limiter with capacity cfg.MaxRequests,
// refilled at cfg.MaxRequests per cfg.Window.
func NewLimiter(key string, cfg core.Config, client memcacheiface.CASClient, opts ...NewLimiterOption) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		key:    key,
		cfg:    cfg,
		client: client,
		clock:  clock.Real{},
	}
	for _, opt := range opts {
		opt(l)
	}
	log.Info().Str("limiter_type", "TokenBucket").Str("backend", "Memcache").Str("limiter_key", key).Dur("window", cfg.Window).Int64("capacity", cfg.MaxRequests).Msg("Limiter: Initialized")
	return l, nil
}

// Allow checks if a request for the given identifier is allowed based on the Token Bucket algorithm.
func (l *Limiter) Allow(ctx context.Context, identifier string) (core.Decision, error) {
	itemKey := fmt.Sprintf("token_bucket:%s:%s", l.key, identifier)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return core.Decision{}, err
		}
		state, allowed, err := l.try(itemKey, l.clock.Now())
		if errors.Is(err, errRetry) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("limiter_type", "TokenBucket").Str("backend", "Memcache").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: Failed to update state in Memcache")
			return core.Decision{}, err
		}
		log.Debug().Str("limiter_type", "TokenBucket").Str("backend", "Memcache").Str("limiter_key", l.key).Str("identifier", identifier).Bool("allowed", allowed).Float64("tokens", state.Tokens).Msg("Limiter: Request checked")
		return l.decision(state, allowed), nil
	}
	log.Warn().Str("limiter_type", "TokenBucket").Str("backend", "Memcache").Str("limiter_key", l.key).Str("identifier", identifier).Msg("Limiter: CAS attempts exhausted")
	return core.Decision{}, ErrContention
}

// try performs one read-modify-write round. errRetry means another writer won the race.
func (l *Limiter) try(itemKey string, now time.Time) (tokenBucketState, bool, error) {
	item, err := l.client.Get(itemKey)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return tokenBucketState{}, false, fmt.Errorf("get state from memcache: %w", err)
	}

	state := tokenBucketState{Tokens: float64(l.cfg.MaxRequests), LastRefill: now.UnixNano()}
	if item != nil {
		if err := json.Unmarshal(item.Value, &state); err != nil {
			return tokenBucketState{}, false, fmt.Errorf("unmarshal state: %w", err)
		}
		l.refill(&state, now)
	}

	allowed := state.Tokens >= 1
	if allowed {
		state.Tokens--
	}
	value, err := json.Marshal(state)
	if err != nil {
		return tokenBucketState{}, false, fmt.Errorf("marshal state: %w", err)
	}

	if item == nil {
		err = l.client.Add(&memcache.Item{Key: itemKey, Value: value, Expiration: l.expirySeconds()})
	} else {
		item.Value = value
		item.Expiration = l.expirySeconds()
		err = l.client.CompareAndSwap(item)
	}
	switch {
	case err == nil:
		return state, allowed, nil
	case errors.Is(err, memcache.ErrNotStored), errors.Is(err, memcache.ErrCASConflict):
		return tokenBucketState{}, false, errRetry
	default:
		return tokenBucketState{}, false, fmt.Errorf("store state in memcache: %w", err)
	}
}

// refill adds tokens for the time since the last refill. A clock that moved
// backwards adds nothing and leaves LastRefill where it was.
func (l *Limiter) refill(state *tokenBucketState, now time.Time) {
	elapsed := now.UnixNano() - state.LastRefill
	if elapsed <= 0 {
		return
	}
	capacity := float64(l.cfg.MaxRequests)
	state.Tokens = math.Min(capacity, state.Tokens+float64(elapsed)*capacity/float64(l.cfg.Window))
	state.LastRefill = now.UnixNano()
}

func (l *Limiter) decision(state tokenBucketState, allowed bool) core.Decision {
	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: int64(math.Floor(state.Tokens)),
	}
	if d.Remaining == 0 {
		missing := 1 - state.Tokens
		d.RetryAfter = time.Duration(math.Ceil(missing * float64(l.cfg.Window) / float64(l.cfg.MaxRequests)))
	}
	return d
}

// expirySeconds keeps idle buckets around for two windows; by then they would be full anyway.
func (l *Limiter) expirySeconds() int32 {
	secs := int32((2*l.cfg.Window + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

var _ types.Limiter = (*Limiter)(nil)
