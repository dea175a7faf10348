// Package registry provides the in-memory keyed backend: one single-entity
// limiter per identifier, created on first use.
package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/types"
)

// Constructor builds the limiter for a newly seen identifier.
type Constructor func(identifier string) (core.RateLimiter, error)

type entry struct {
	limiter core.RateLimiter
	// lastSeen is the UnixNano of the most recent lookup.
	lastSeen atomic.Int64
}

// Registry maps identifiers to their own limiter. Limiters for different
// identifiers share no state; the registry lock only guards the map.
type Registry struct {
	key         string
	limiterType string
	newLimiter  Constructor

	clock       clock.Clock
	idleTimeout time.Duration

	mu        sync.RWMutex
	limiters  map[string]*entry
	lastSweep time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdleTimeout drops identifiers not seen for d. The sweep runs while a new
// identifier is inserted, at most once per d. d must be long enough that an
// evicted limiter would have returned to its initial state anyway.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// WithClock sets the time source used for idle tracking.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// New creates a registry. key and limiterType are only used in log fields.
func New(key, limiterType string, newLimiter Constructor, opts ...Option) *Registry {
	r := &Registry{
		key:         key,
		limiterType: limiterType,
		newLimiter:  newLimiter,
		clock:       clock.Real{},
		limiters:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastSweep = r.clock.Now()
	log.Info().Str("limiter_type", limiterType).Str("backend", "InMemory").Str("limiter_key", key).Dur("idle_timeout", r.idleTimeout).Msg("Limiter: Initialized")
	return r
}

// Allow implements types.Limiter.
func (r *Registry) Allow(ctx context.Context, identifier string) (core.Decision, error) {
	// Check if context is cancelled before touching any state
	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Str("limiter_type", r.limiterType).Str("backend", "InMemory").Str("limiter_key", r.key).Str("identifier", identifier).Msg("Limiter: Context cancelled during check")
		return core.Decision{}, err
	}

	l, err := r.Get(identifier)
	if err != nil {
		return core.Decision{}, err
	}
	return l.Decide(), nil
}

// Get returns the limiter for identifier, creating it if needed.
func (r *Registry) Get(identifier string) (core.RateLimiter, error) {
	now := r.clock.Now()

	r.mu.RLock()
	e, ok := r.limiters[identifier]
	r.mu.RUnlock()
	if ok {
		e.lastSeen.Store(now.UnixNano())
		return e.limiter, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.limiters[identifier]; ok {
		e.lastSeen.Store(now.UnixNano())
		return e.limiter, nil
	}
	if r.idleTimeout > 0 && now.Sub(r.lastSweep) >= r.idleTimeout {
		r.sweepLocked(now)
	}
	l, err := r.newLimiter(identifier)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("limiter_type", r.limiterType).Str("backend", "InMemory").Str("limiter_key", r.key).Str("identifier", identifier).Msg("Limiter: Created limiter for identifier")
	e = &entry{limiter: l}
	e.lastSeen.Store(now.UnixNano())
	r.limiters[identifier] = e
	return l, nil
}

// Sweep drops every identifier idle for at least the idle timeout and
// returns how many were dropped. It does nothing without WithIdleTimeout.
func (r *Registry) Sweep() int {
	if r.idleTimeout <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.clock.Now())
}

func (r *Registry) sweepLocked(now time.Time) int {
	r.lastSweep = now
	cutoff := now.Add(-r.idleTimeout).UnixNano()
	evicted := 0
	for id, e := range r.limiters {
		if e.lastSeen.Load() <= cutoff {
			delete(r.limiters, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Debug().Str("limiter_type", r.limiterType).Str("backend", "InMemory").Str("limiter_key", r.key).Int("evicted", evicted).Int("remaining", len(r.limiters)).Msg("Limiter: Evicted idle identifiers")
	}
	return evicted
}

// Forget drops the limiter for identifier; its next request starts fresh.
func (r *Registry) Forget(identifier string) {
	r.mu.Lock()
	delete(r.limiters, identifier)
	r.mu.Unlock()
}

// Len returns the number of tracked identifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

var _ types.Limiter = (*Registry)(nil)
