package api

import (
	"learn.wordgate/internal/factory"
	"learn.wordgate/types"
)

// Limiter is the keyed admission contract returned by this package.
type Limiter = types.Limiter

// Option configures how limiters are built.
type Option = factory.Option

// WithClock makes every limiter read time from c. Tests use it with a manual clock.
var WithClock = factory.WithClock
