// Package leakybucket implements the Leaky Bucket (as a meter) algorithm for a single tracked entity.
// Each admitted request adds one unit; the level drains at MaxRequests per Window.
package leakybucket

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

	mu sync.Mutex
	// level is the current number of units in the bucket.
	level float64
	// lastLeak is the last time units were drained from the bucket.
	lastLeak time.Time
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

// New returns an empty bucket.
func New(cfg core.Config, opts ...NewLimiterOption) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		cfg:   cfg,
		clock: clock.Real{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastLeak = l.clock.Now()
	return l, nil
}

func (l *Limiter) AllowRequest() bool {
	return l.Decide().Allowed
}

func (l *Limiter) Decide() core.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if elapsed := now.Sub(l.lastLeak); elapsed > 0 {
		leaked := float64(elapsed) * float64(l.cfg.MaxRequests) / float64(l.cfg.Window)
		l.level = math.Max(0, l.level-leaked)
		l.lastLeak = now
	}

	capacity := float64(l.cfg.MaxRequests)
	allowed := l.level+1 <= capacity
	if allowed {
		l.level++
	} else {
		log.Debug().Str("limiter_type", "LeakyBucket").Str("limiter_key", l.name).
			Float64("current_level", l.level).Msg("Limiter: Request denied")
	}

	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: int64(math.Floor(capacity - l.level)),
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		overflow := l.level + 1 - capacity
		d.RetryAfter = time.Duration(math.Ceil(overflow * float64(l.cfg.Window) / capacity))
	}
	return d
}

func (l *Limiter) Config() core.Config {
	return l.cfg
}

var _ core.RateLimiter = (*Limiter)(nil)
