// Package slidingwindowcounter implements the Sliding Window Counter algorithm for a single tracked entity.
//
// It keeps two epoch-aligned fixed windows and estimates the count over the last
// Window by weighting the previous window by the share of it still inside the
// sliding range. Unlike a plain fixed window it does not admit a double burst
// across a boundary.
package slidingwindowcounter

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

	mu                  sync.Mutex
	currentWindowStart  time.Time
	currentWindowCount  int64
	previousWindowCount int64
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
	l.currentWindowStart = clock.WindowStart(l.clock.Now(), cfg.Window)
	return l, nil
}

func (l *Limiter) AllowRequest() bool {
	return l.Decide().Allowed
}

func (l *Limiter) Decide() core.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.slide(now)

	elapsed := now.Sub(l.currentWindowStart)
	if elapsed < 0 {
		elapsed = 0
	}
	previousWeight := 1 - float64(elapsed)/float64(l.cfg.Window)
	estimate := float64(l.previousWindowCount)*previousWeight + float64(l.currentWindowCount)

	allowed := estimate+1 <= float64(l.cfg.MaxRequests)
	if allowed {
		l.currentWindowCount++
		estimate++
	} else {
		log.Debug().Str("limiter_type", "SlidingWindowCounter").Str("limiter_key", l.name).
			Float64("estimate", estimate).Int64("limit", l.cfg.MaxRequests).Msg("Limiter: Request denied")
	}

	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: int64(math.Floor(float64(l.cfg.MaxRequests) - estimate)),
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		d.RetryAfter = l.retryAfter(now, elapsed)
	}
	return d
}

// slide moves the window pair forward to the window containing now. Earlier
// clock readings leave the pair where it is.
func (l *Limiter) slide(now time.Time) {
	start := clock.WindowStart(now, l.cfg.Window)
	if !start.After(l.currentWindowStart) {
		return
	}
	if start.Sub(l.currentWindowStart) == l.cfg.Window {
		l.previousWindowCount = l.currentWindowCount
	} else {
		l.previousWindowCount = 0
	}
	l.currentWindowCount = 0
	l.currentWindowStart = start
}

// retryAfter estimates when the weighted count will have room for one more request.
func (l *Limiter) retryAfter(now time.Time, elapsed time.Duration) time.Duration {
	untilNextWindow := l.currentWindowStart.Add(l.cfg.Window).Sub(now)
	room := float64(l.cfg.MaxRequests - l.currentWindowCount - 1)
	if room < 0 || l.previousWindowCount == 0 {
		return untilNextWindow
	}
	// Solve previous*(1 - e/window) <= room for e.
	need := time.Duration(math.Ceil((1 - room/float64(l.previousWindowCount)) * float64(l.cfg.Window)))
	if need <= elapsed {
		return 0
	}
	return need - elapsed
}

func (l *Limiter) Config() core.Config {
	return l.cfg
}

var _ core.RateLimiter = (*Limiter)(nil)
