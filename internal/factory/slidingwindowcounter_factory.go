package factory

import (
	"learn.wordgate/config"
	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/slidingwindowcounter"
	swcmemcache "learn.wordgate/internal/slidingwindowcounter/memcache"
	swredis "learn.wordgate/internal/slidingwindowcounter/redis"
	"learn.wordgate/types"
)

const slidingWindowCounterType = "SlidingWindowCounter"

type SlidingWindowCounterFactory struct {
	opts options
}

func NewSlidingWindowCounterFactory(opts ...Option) *SlidingWindowCounterFactory {
	return &SlidingWindowCounterFactory{opts: buildOptions(opts)}
}

func (f *SlidingWindowCounterFactory) CreateLimiter(cfg config.LimiterConfig, clients types.BackendClients) (types.Limiter, error) {
	if err := checkConfig(cfg, slidingWindowCounterType); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.InMemory:
		return newInMemory(cfg, slidingWindowCounterType, f.opts.clock, func(c core.Config, clk clock.Clock, name string) (core.RateLimiter, error) {
			return slidingwindowcounter.New(c, slidingwindowcounter.WithClock(clk), slidingwindowcounter.WithName(name))
		}), nil
	case config.Redis:
		if clients.RedisClient == nil {
			return nil, missingClient(cfg, slidingWindowCounterType, "redis")
		}
		return checked(swredis.NewLimiter(cfg.Key, cfg.WindowParams.Core(), clients.RedisClient, swredis.WithClock(f.opts.clock)))
	case config.Memcache:
		if clients.MemcacheClient == nil {
			return nil, missingClient(cfg, slidingWindowCounterType, "memcache")
		}
		return checked(swcmemcache.NewLimiter(clients.MemcacheClient, cfg.Key, cfg.WindowParams.Core(), swcmemcache.WithClock(f.opts.clock)))
	default:
		return nil, unsupportedBackend(cfg, slidingWindowCounterType)
	}
}
