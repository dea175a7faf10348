package factory

import (
	"learn.wordgate/config"
	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/tokenbucket"
	tbmemcache "learn.wordgate/internal/tokenbucket/memcache"
	tbredis "learn.wordgate/internal/tokenbucket/redis"
	"learn.wordgate/types"
)

const tokenBucketType = "TokenBucket"

type TokenBucketFactory struct {
	opts options
}

func NewTokenBucketFactory(opts ...Option) *TokenBucketFactory {
	return &TokenBucketFactory{opts: buildOptions(opts)}
}

func (f *TokenBucketFactory) CreateLimiter(cfg config.LimiterConfig, clients types.BackendClients) (types.Limiter, error) {
	if err := checkConfig(cfg, tokenBucketType); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.InMemory:
		return newInMemory(cfg, tokenBucketType, f.opts.clock, func(c core.Config, clk clock.Clock, name string) (core.RateLimiter, error) {
			return tokenbucket.New(c, tokenbucket.WithClock(clk), tokenbucket.WithName(name))
		}), nil
	case config.Redis:
		if clients.RedisClient == nil {
			return nil, missingClient(cfg, tokenBucketType, "redis")
		}
		return checked(tbredis.NewLimiter(cfg.Key, cfg.WindowParams.Core(), clients.RedisClient, tbredis.WithClock(f.opts.clock)))
	case config.Memcache:
		if clients.MemcacheClient == nil {
			return nil, missingClient(cfg, tokenBucketType, "memcache")
		}
		return checked(tbmemcache.NewLimiter(cfg.Key, cfg.WindowParams.Core(), clients.MemcacheClient, tbmemcache.WithClock(f.opts.clock)))
	default:
		return nil, unsupportedBackend(cfg, tokenBucketType)
	}
}
