package internal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"learn.wordgate/config"
)

const pingTimeout = 5 * time.Second

// ConfigFile represents the top-level structure of the configuration file.
type ConfigFile struct {
	Limiters []config.LimiterConfig `yaml:"limiters"`
}

// LoadConfig reads and unmarshals the YAML config.
func LoadConfig(path string) (*ConfigFile, error) {
	log.Info().Str("path", path).Msg("Loading configuration")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config file %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("limiters", len(cfg.Limiters)).Msg("Configuration loaded successfully")
	return cfg, nil
}

// ParseConfig unmarshals a YAML document. Durations use time.ParseDuration syntax ("10s", "1m").
func ParseConfig(data []byte) (*ConfigFile, error) {
	var cfg ConfigFile
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// InitRedisClient initializes and pings a Redis client.
func InitRedisClient(cfg *config.RedisBackendConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis backend selected but redis_params are missing in config")
	}
	log.Info().Str("address", cfg.Address).Int("db", cfg.DB).Msg("Initializing Redis client")
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error().Err(err).Str("address", cfg.Address).Msg("Redis ping failed")
		// Close the client if ping fails to prevent resource leaks
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}
	log.Info().Str("address", cfg.Address).Msg("Connected to Redis successfully")
	return client, nil
}

// InitMemcacheClient initializes and pings a Memcache client.
func InitMemcacheClient(cfg *config.MemcacheBackendConfig) (*memcache.Client, error) {
	if cfg == nil || len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("memcache backend selected but memcache_params are missing in config")
	}
	log.Info().Strs("addresses", cfg.Addresses).Msg("Initializing Memcache client")
	client := memcache.New(cfg.Addresses...)
	if err := client.Ping(); err != nil {
		log.Error().Err(err).Strs("addresses", cfg.Addresses).Msg("Memcache ping failed")
		return nil, fmt.Errorf("failed to connect to Memcache at %v: %w", cfg.Addresses, err)
	}
	log.Info().Strs("addresses", cfg.Addresses).Msg("Connected to Memcache successfully")
	return client, nil
}
