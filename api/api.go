// Package api builds keyed rate limiters from a YAML configuration file.
package api

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	apiinternal "learn.wordgate/api/internal"
	"learn.wordgate/config"
	"learn.wordgate/types"
)

// clientCloser holds backend clients and implements io.Closer.
type clientCloser struct {
	clients types.BackendClients
}

// Close shuts down every initialized backend client held by the clientCloser.
// The memcache client keeps no resources that need releasing.
func (c *clientCloser) Close() error {
	log.Info().Msg("API: Starting backend client shutdown")
	var err error
	if c.clients.RedisClient != nil {
		if cerr := c.clients.RedisClient.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("API: Error closing Redis client")
			err = multierr.Append(err, fmt.Errorf("failed to close Redis client: %w", cerr))
		}
	}
	if err == nil {
		log.Info().Msg("API: Backend client shutdown complete")
	}
	return err
}

// NewLimitersFromConfigPath loads config, initializes any needed backend clients,
// and returns the limiters keyed by their config key, the configs themselves,
// and an io.Closer for backend clients.
func NewLimitersFromConfigPath(configPath string, opts ...Option) (map[string]Limiter, map[string]config.LimiterConfig, io.Closer, error) {
	log.Info().Str("path", configPath).Msg("API: Starting initialization of rate limiters")
	cfgFile, err := apiinternal.LoadConfig(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("API: Initialization failed")
		return nil, nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if len(cfgFile.Limiters) == 0 {
		log.Error().Str("path", configPath).Msg("API: No limiter configurations found")
		return nil, nil, nil, fmt.Errorf("no limiter configurations found in %s", configPath)
	}
	return NewLimiters(cfgFile.Limiters, opts...)
}

// NewLimiters is NewLimitersFromConfigPath for configuration already in memory.
// Every entry is validated before any backend client is created.
func NewLimiters(cfgs []config.LimiterConfig, opts ...Option) (map[string]Limiter, map[string]config.LimiterConfig, io.Closer, error) {
	configs := make(map[string]config.LimiterConfig, len(cfgs))
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			log.Error().Err(err).Str("limiter_key", cfg.Key).Msg("API: Invalid limiter configuration")
			return nil, nil, nil, err
		}
		if _, dup := configs[cfg.Key]; dup {
			return nil, nil, nil, fmt.Errorf("duplicate limiter key '%s'", cfg.Key)
		}
		configs[cfg.Key] = cfg
	}

	closer := &clientCloser{}
	if err := initClients(cfgs, &closer.clients); err != nil {
		_ = closer.Close()
		return nil, nil, nil, err
	}

	limiters := make(map[string]Limiter, len(cfgs))
	for _, cfg := range cfgs {
		limiterFactory, err := NewLimiterFactory(cfg, opts...)
		if err != nil {
			_ = closer.Close()
			return nil, nil, nil, fmt.Errorf("limiter '%s': failed to get factory: %w", cfg.Key, err)
		}
		limiter, err := limiterFactory.CreateLimiter(cfg, closer.clients)
		if err != nil {
			_ = closer.Close()
			return nil, nil, nil, fmt.Errorf("limiter '%s': failed to create instance: %w", cfg.Key, err)
		}
		limiters[cfg.Key] = limiter
		log.Info().Str("limiter_key", cfg.Key).Str("algorithm", string(cfg.Algorithm)).Str("backend", string(cfg.Backend)).Msg("API: Limiter created successfully")
	}

	log.Info().Int("count", len(limiters)).Msg("API: All rate limiters initialized")
	return limiters, configs, closer, nil
}

// initClients creates one client per backend type, using the params of the
// first entry that selects it.
func initClients(cfgs []config.LimiterConfig, clients *types.BackendClients) error {
	for _, cfg := range cfgs {
		switch {
		case cfg.Backend == config.Redis && clients.RedisClient == nil:
			c, err := apiinternal.InitRedisClient(cfg.RedisParams)
			if err != nil {
				return err
			}
			clients.RedisClient = c
		case cfg.Backend == config.Memcache && clients.MemcacheClient == nil:
			c, err := apiinternal.InitMemcacheClient(cfg.MemcacheParams)
			if err != nil {
				return err
			}
			clients.MemcacheClient = c
		}
	}
	return nil
}
