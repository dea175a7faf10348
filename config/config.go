package config

import (
	"fmt"
	"time"

	"learn.wordgate/core"
)

// AlgorithmType represents the type of rate limiting algorithm.
type AlgorithmType string

const (
	FixedWindowCounter   AlgorithmType = "fixed_window_counter"
	SlidingWindowCounter AlgorithmType = "sliding_window_counter"
	SlidingWindowLog     AlgorithmType = "sliding_window_log"
	TokenBucket          AlgorithmType = "token_bucket"
	LeakyBucket          AlgorithmType = "leaky_bucket"
)

// BackendType represents the storage backend.
type BackendType string

const (
	InMemory BackendType = "in_memory"
	Redis    BackendType = "redis"
	Memcache BackendType = "memcache"
)

// LimiterConfig holds the configuration for a single rate limiter instance.
type LimiterConfig struct {
	Algorithm AlgorithmType `yaml:"algorithm"`
	Backend   BackendType   `yaml:"backend"`
	Key       string        `yaml:"key"`

	WindowParams *WindowConfig `yaml:"window_params,omitempty"`

	RedisParams    *RedisBackendConfig    `yaml:"redis_params,omitempty"`
	MemcacheParams *MemcacheBackendConfig `yaml:"memcache_params,omitempty"`
}

// WindowConfig is the request budget shared by every algorithm: Limit requests per Window.
// Token and leaky buckets use Limit as capacity and Limit/Window as their rate.
type WindowConfig struct {
	Window time.Duration `yaml:"window"`
	Limit  int64         `yaml:"limit"`
}

// Core converts the params into the limiter construction config.
func (w WindowConfig) Core() core.Config {
	return core.Config{MaxRequests: w.Limit, Window: w.Window}
}

// RedisBackendConfig holds parameters for the Redis backend.
type RedisBackendConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// MemcacheBackendConfig holds parameters for the Memcache backend.
type MemcacheBackendConfig struct {
	Addresses []string `yaml:"addresses"`
}

// Validate checks the entry before any backend client is created.
// Bad budgets are reported as core.ErrInvalidConfiguration.
func (c LimiterConfig) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("limiter configuration missing 'key' field")
	}
	switch c.Algorithm {
	case FixedWindowCounter, SlidingWindowCounter, SlidingWindowLog, TokenBucket, LeakyBucket:
	default:
		return fmt.Errorf("unsupported algorithm type '%s' for key '%s'", c.Algorithm, c.Key)
	}
	if c.WindowParams == nil {
		return fmt.Errorf("window parameters are missing in config for key '%s'", c.Key)
	}
	if err := c.WindowParams.Core().Validate(); err != nil {
		return fmt.Errorf("limiter '%s': %w", c.Key, err)
	}
	switch c.Backend {
	case InMemory:
	case Redis:
		if c.RedisParams == nil || c.RedisParams.Address == "" {
			return fmt.Errorf("redis backend selected but redis_params are missing for key '%s'", c.Key)
		}
	case Memcache:
		if c.MemcacheParams == nil || len(c.MemcacheParams.Addresses) == 0 {
			return fmt.Errorf("memcache backend selected but memcache_params are missing for key '%s'", c.Key)
		}
	default:
		return fmt.Errorf("unsupported backend type '%s' for key '%s'", c.Backend, c.Key)
	}
	return nil
}
