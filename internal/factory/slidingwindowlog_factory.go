package factory

import (
	"learn.wordgate/config"
	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/slidingwindowlog"
	"learn.wordgate/types"
)

const slidingWindowLogType = "SlidingWindowLog"

// SlidingWindowLogFactory creates Sliding Window Log limiters. The log keeps one
// timestamp per admitted request, so it is only offered in memory.
type SlidingWindowLogFactory struct {
	opts options
}

func NewSlidingWindowLogFactory(opts ...Option) *SlidingWindowLogFactory {
	return &SlidingWindowLogFactory{opts: buildOptions(opts)}
}

func (f *SlidingWindowLogFactory) CreateLimiter(cfg config.LimiterConfig, _ types.BackendClients) (types.Limiter, error) {
	if err := checkConfig(cfg, slidingWindowLogType); err != nil {
		return nil, err
	}
	if cfg.Backend != config.InMemory {
		return nil, unsupportedBackend(cfg, slidingWindowLogType)
	}
	return newInMemory(cfg, slidingWindowLogType, f.opts.clock, func(c core.Config, clk clock.Clock, name string) (core.RateLimiter, error) {
		return slidingwindowlog.New(c, slidingwindowlog.WithClock(clk), slidingwindowlog.WithName(name))
	}), nil
}
