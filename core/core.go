// Package core defines the admission contract shared by every rate limiting algorithm.
//
// A RateLimiter governs exactly one tracked entity. Keyed lookup (one limiter per
// client, route, ...) lives in the registry and backend packages, not here.
package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfiguration is returned when a limiter is constructed with a
// non-positive request budget or window.
var ErrInvalidConfiguration = errors.New("invalid rate limiter configuration")

// Config holds the construction parameters of a limiter. It is never mutated after construction.
type Config struct {
	MaxRequests int64
	Window      time.Duration
}

// Validate reports ErrInvalidConfiguration (wrapped) if either parameter is not positive.
func (c Config) Validate() error {
	if c.MaxRequests <= 0 {
		return fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidConfiguration, c.MaxRequests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfiguration, c.Window)
	}
	return nil
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed bool
	// Limit is the configured budget.
	Limit int64
	// Remaining is the budget left after this decision.
	Remaining int64
	// RetryAfter is how long the caller should wait before the next request can be admitted.
	// Zero when Remaining > 0.
	RetryAfter time.Duration
}

// RateLimiter is the interface that all rate limiting algorithms must implement.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	// AllowRequest records a request attempt and reports whether it is admitted.
	// It is not idempotent: a true result consumes budget.
	AllowRequest() bool
	// Decide is AllowRequest with the remaining budget attached.
	Decide() Decision
	// Config returns the parameters the limiter was built with.
	Config() Config
}
