package factory

import (
	"learn.wordgate/config"
	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/leakybucket"
	lbredis "learn.wordgate/internal/leakybucket/redis"
	"learn.wordgate/types"
)

const leakyBucketType = "LeakyBucket"

type LeakyBucketFactory struct {
	opts options
}

func NewLeakyBucketFactory(opts ...Option) *LeakyBucketFactory {
	return &LeakyBucketFactory{opts: buildOptions(opts)}
}

func (f *LeakyBucketFactory) CreateLimiter(cfg config.LimiterConfig, clients types.BackendClients) (types.Limiter, error) {
	if err := checkConfig(cfg, leakyBucketType); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.InMemory:
		return newInMemory(cfg, leakyBucketType, f.opts.clock, func(c core.Config, clk clock.Clock, name string) (core.RateLimiter, error) {
			return leakybucket.New(c, leakybucket.WithClock(clk), leakybucket.WithName(name))
		}), nil
	case config.Redis:
		if clients.RedisClient == nil {
			return nil, missingClient(cfg, leakyBucketType, "redis")
		}
		return checked(lbredis.NewLimiter(cfg.Key, cfg.WindowParams.Core(), clients.RedisClient, lbredis.WithClock(f.opts.clock)))
	default:
		return nil, unsupportedBackend(cfg, leakyBucketType)
	}
}
