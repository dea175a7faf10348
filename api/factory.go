package api

import (
	"fmt"

	"learn.wordgate/config"
	"learn.wordgate/internal/factory"
)

// NewLimiterFactory returns the factory for the algorithm named in cfg.
func NewLimiterFactory(cfg config.LimiterConfig, opts ...Option) (factory.LimiterFactory, error) {
	switch cfg.Algorithm {
	case config.FixedWindowCounter:
		return factory.NewFixedWindowFactory(opts...), nil
	case config.TokenBucket:
		return factory.NewTokenBucketFactory(opts...), nil
	case config.SlidingWindowCounter:
		return factory.NewSlidingWindowCounterFactory(opts...), nil
	case config.SlidingWindowLog:
		return factory.NewSlidingWindowLogFactory(opts...), nil
	case config.LeakyBucket:
		return factory.NewLeakyBucketFactory(opts...), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm type '%s' for key '%s'", cfg.Algorithm, cfg.Key)
	}
}
