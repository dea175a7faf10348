// Package fixedcounter implements the Fixed Window Counter algorithm for a single tracked entity.
//
// Windows are aligned to multiples of the window length measured from the Unix epoch,
// so a 10s window always covers [20s, 30s), [30s, 40s), ... regardless of when the
// limiter was created. Up to twice the budget can be admitted across a window boundary
// (the tail of one window plus the head of the next); this is inherent to the algorithm.
//
// State is memory-only and is lost on restart.
package fixedcounter

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
)

// WindowState is a point-in-time copy of a limiter's accounting.
type WindowState struct {
	WindowStart  time.Time
	WindowEnd    time.Time
	RequestCount int64
}

// Limiter is a fixed window limiter governing one entity.
type Limiter struct {
	cfg   core.Config
	name  string
	clock clock.Clock

	mu          sync.Mutex
	windowStart time.Time
	windowEnd   time.Time
	count       int64
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

// New returns a fixed window limiter whose first window is the one containing the current time.
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
	l.windowStart = clock.WindowStart(l.clock.Now(), cfg.Window)
	l.windowEnd = l.windowStart.Add(cfg.Window)
	return l, nil
}

// AllowRequest implements core.RateLimiter.
func (l *Limiter) AllowRequest() bool {
	return l.Decide().Allowed
}

// Decide implements core.RateLimiter.
func (l *Limiter) Decide() core.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	// A request exactly at windowEnd already belongs to the next window.
	if !now.Before(l.windowEnd) {
		l.windowStart = clock.WindowStart(now, l.cfg.Window)
		l.windowEnd = l.windowStart.Add(l.cfg.Window)
		l.count = 1
		log.Debug().Str("limiter_type", "FixedWindowCounter").Str("limiter_key", l.name).
			Time("window_start", l.windowStart).Time("window_end", l.windowEnd).
			Msg("Limiter: New window")
		return l.decision(true, now)
	}

	// now may be before windowStart if the clock stepped back; it still counts
	// against the current window.
	if l.count >= l.cfg.MaxRequests {
		log.Debug().Str("limiter_type", "FixedWindowCounter").Str("limiter_key", l.name).
			Int64("count", l.count).Int64("limit", l.cfg.MaxRequests).
			Msg("Limiter: Rate limit exceeded")
		return l.decision(false, now)
	}
	l.count++
	return l.decision(true, now)
}

func (l *Limiter) decision(allowed bool, now time.Time) core.Decision {
	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: l.cfg.MaxRequests - l.count,
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		d.RetryAfter = l.windowEnd.Sub(now)
	}
	return d
}

// Config implements core.RateLimiter.
func (l *Limiter) Config() core.Config {
	return l.cfg
}

// Snapshot returns the current window and count without recording a request.
func (l *Limiter) Snapshot() WindowState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return WindowState{
		WindowStart:  l.windowStart,
		WindowEnd:    l.windowEnd,
		RequestCount: l.count,
	}
}

var _ core.RateLimiter = (*Limiter)(nil)
