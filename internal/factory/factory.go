// Package factory builds keyed limiters from configuration, one factory per algorithm.
package factory

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"learn.wordgate/config"
	"learn.wordgate/core"
	"learn.wordgate/internal/clock"
	"learn.wordgate/internal/registry"
	"learn.wordgate/types"
)

// LimiterFactory creates a keyed limiter for one configuration entry.
type LimiterFactory interface {
	CreateLimiter(cfg config.LimiterConfig, clients types.BackendClients) (types.Limiter, error)
}

// Option configures a factory.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock makes every limiter built by the factory read time from c.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newFunc builds the single-entity limiter for one identifier.
type newFunc func(cfg core.Config, clk clock.Clock, name string) (core.RateLimiter, error)

func newInMemory(cfg config.LimiterConfig, limiterType string, clk clock.Clock, build newFunc) types.Limiter {
	log.Debug().Str("limiter_type", limiterType).Str("limiter_key", cfg.Key).Dur("window", cfg.WindowParams.Window).Int64("limit", cfg.WindowParams.Limit).Msg("Factory: Creating in-memory limiter")
	limiterCfg := cfg.WindowParams.Core()
	// Every algorithm is back to its initial state after two idle windows.
	return registry.New(cfg.Key, limiterType, func(identifier string) (core.RateLimiter, error) {
		return build(limiterCfg, clk, cfg.Key+":"+identifier)
	}, registry.WithClock(clk), registry.WithIdleTimeout(2*limiterCfg.Window))
}

func checkConfig(cfg config.LimiterConfig, limiterType string) error {
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Str("limiter_type", limiterType).Str("limiter_key", cfg.Key).Msg("Factory: Creation failed")
		return err
	}
	return nil
}

func unsupportedBackend(cfg config.LimiterConfig, limiterType string) error {
	err := fmt.Errorf("unsupported backend type '%s' for %s for key '%s'", cfg.Backend, limiterType, cfg.Key)
	log.Error().Err(err).Str("limiter_type", limiterType).Str("limiter_key", cfg.Key).Msg("Factory: Creation failed")
	return err
}

func missingClient(cfg config.LimiterConfig, limiterType, client string) error {
	err := fmt.Errorf("%s client is required but not provided for %s backend for key '%s'", client, cfg.Backend, cfg.Key)
	log.Error().Err(err).Str("limiter_type", limiterType).Str("limiter_key", cfg.Key).Msg("Factory: Creation failed")
	return err
}

// checked keeps a failed constructor from returning a typed nil Limiter.
func checked[L types.Limiter](l L, err error) (types.Limiter, error) {
	if err != nil {
		return nil, err
	}
	return l, nil
}
