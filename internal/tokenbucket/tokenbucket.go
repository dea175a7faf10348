// Package tokenbucket implements the Token Bucket algorithm for a single tracked entity.
//
// The bucket holds up to MaxRequests tokens and refills continuously at
// MaxRequests per Window. It starts full.
package tokenbucket

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
)

type Limiter struct {
	cfg   core.Config
	name  string
	clock clock.Clock

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewLimiterOption configures a Limiter.
type NewLimiterOption func(*Limiter)

// WithClock sets the time source. Defaults to the wall clock.
func WithClock(c clock.Clock) NewLimiterOption {
	return func(l *Limiter) {
		l.clock = c
	}
}

// WithName sets the name used in log fields.
func WithName(name string) NewLimiterOption {
	return func(l *Limiter) {
		l.name = name
	}
}

// New returns a full token bucket.
func New(cfg core.Config, opts ...NewLimiterOption) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		cfg:    cfg,
		clock:  clock.Real{},
		tokens: float64(cfg.MaxRequests),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastRefill = l.clock.Now()
	return l, nil
}

func (l *Limiter) AllowRequest() bool {
	return l.Decide().Allowed
}

func (l *Limiter) Decide() core.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.refill(now)

	allowed := l.tokens >= 1
	if allowed {
		l.tokens--
	} else {
		log.Debug().Str("limiter_type", "TokenBucket").Str("limiter_key", l.name).
			Float64("tokens", l.tokens).Msg("Limiter: Request denied")
	}

	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: int64(math.Floor(l.tokens)),
	}
	if d.Remaining == 0 {
		d.RetryAfter = l.timeUntil(1)
	}
	return d
}

// refill adds the tokens accrued since the last refill. A clock reading earlier
// than lastRefill adds nothing and leaves lastRefill in place.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	// Multiply before dividing so whole-token refills stay exact.
	added := float64(elapsed) * float64(l.cfg.MaxRequests) / float64(l.cfg.Window)
	l.tokens = math.Min(float64(l.cfg.MaxRequests), l.tokens+added)
	l.lastRefill = now
}

func (l *Limiter) timeUntil(tokens float64) time.Duration {
	missing := tokens - l.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(missing * float64(l.cfg.Window) / float64(l.cfg.MaxRequests)))
}

func (l *Limiter) Config() core.Config {
	return l.cfg
}

// Tokens returns the token count as of the last decision.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}

var _ core.RateLimiter = (*Limiter)(nil)
