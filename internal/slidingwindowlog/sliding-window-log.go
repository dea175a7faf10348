// Package slidingwindowlog implements the Sliding Window Log algorithm for a single tracked entity.
// It keeps the timestamp of every admitted request still inside the window, so memory grows
// with MaxRequests.
package slidingwindowlog

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/rs/zerolog/log"

	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
)

type Limiter struct {
	cfg   core.Config
	name  string
	clock clock.Clock

	mu       sync.Mutex
	admitted deque.Deque[time.Time]
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
	return l, nil
}

func (l *Limiter) AllowRequest() bool {
	return l.Decide().Allowed
}

func (l *Limiter) Decide() core.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	// A clock that moved backward is held at the newest entry so the log stays ordered.
	if l.admitted.Len() > 0 && now.Before(l.admitted.Back()) {
		now = l.admitted.Back()
	}

	// remove logs which are beyond current window
	cutoff := now.Add(-l.cfg.Window)
	for l.admitted.Len() > 0 && !l.admitted.Front().After(cutoff) {
		l.admitted.PopFront()
	}

	allowed := int64(l.admitted.Len()) < l.cfg.MaxRequests
	if allowed {
		l.admitted.PushBack(now)
	} else {
		log.Debug().Str("limiter_type", "SlidingWindowLog").Str("limiter_key", l.name).
			Int("logged", l.admitted.Len()).Msg("Limiter: Request denied")
	}

	d := core.Decision{
		Allowed:   allowed,
		Limit:     l.cfg.MaxRequests,
		Remaining: l.cfg.MaxRequests - int64(l.admitted.Len()),
	}
	if d.Remaining <= 0 {
		d.Remaining = 0
		d.RetryAfter = l.admitted.Front().Add(l.cfg.Window).Sub(now)
	}
	return d
}

func (l *Limiter) Config() core.Config {
	return l.cfg
}

var _ core.RateLimiter = (*Limiter)(nil)
