package factory

import (
	"learn.wordgate/config"
	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/fixedcounter"
	fcmemcache "learn.wordgate/internal/fixedcounter/memcache"
	fcredis "learn.wordgate/internal/fixedcounter/redis"
	"learn.wordgate/types"
)

const fixedWindowType = "FixedWindowCounter"

// FixedWindowFactory creates limiters using the Fixed Window Counter algorithm.
// It supports every backend.
type FixedWindowFactory struct {
	opts options
}

// NewFixedWindowFactory returns a new FixedWindowFactory instance.
func NewFixedWindowFactory(opts ...Option) *FixedWindowFactory {
	return &FixedWindowFactory{opts: buildOptions(opts)}
}

// CreateLimiter creates a Fixed Window Counter limiter based on the configuration and clients.
func (f *FixedWindowFactory) CreateLimiter(cfg config.LimiterConfig, clients types.BackendClients) (types.Limiter, error) {
	if err := checkConfig(cfg, fixedWindowType); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.InMemory:
		return newInMemory(cfg, fixedWindowType, f.opts.clock, func(c core.Config, clk clock.Clock, name string) (core.RateLimiter, error) {
			return fixedcounter.New(c, fixedcounter.WithClock(clk), fixedcounter.WithName(name))
		}), nil
	case config.Redis:
		if clients.RedisClient == nil {
			return nil, missingClient(cfg, fixedWindowType, "redis")
		}
		return checked(fcredis.NewLimiter(clients.RedisClient, cfg.Key, cfg.WindowParams.Core(), fcredis.WithClock(f.opts.clock)))
	case config.Memcache:
		if clients.MemcacheClient == nil {
			return nil, missingClient(cfg, fixedWindowType, "memcache")
		}
		return checked(fcmemcache.NewLimiter(clients.MemcacheClient, cfg.Key, cfg.WindowParams.Core(), fcmemcache.WithClock(f.opts.clock)))
	default:
		return nil, unsupportedBackend(cfg, fixedWindowType)
	}
}
