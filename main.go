// Package main is the entry point for the word service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	ratelimiter "learn.wordgate/api"
	"learn.wordgate/config"
	"learn.wordgate/internal/server"
	"learn.wordgate/internal/words"
	"learn.wordgate/metrics"
	"learn.wordgate/middleware"
)

const (
	defaultLimiterKey  = "word_api"
	defaultMaxRequests = 5
	defaultWindow      = 10 * time.Second
	shutdownTimeout    = 10 * time.Second
)

var (
	logLevel   string
	port       int
	configPath string
	limiterKey string
	trustProxy bool
)

var rootCmd = &cobra.Command{
	Use:   "wordgate",
	Short: "A rate-limited random word service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server. GET /word is guarded by the limiter named by --limiter-key.

Without --config the server uses an in-memory fixed window limiter admitting
5 requests per 10 seconds per client IP.

Clients are keyed by the connection's remote address. Pass --trust-proxy-headers
only behind a proxy that overwrites X-Forwarded-For and X-Real-IP; otherwise any
client can pick a fresh identifier per request and is never throttled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (trace, debug, info, warn, error, fatal, panic)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the HTTP server on")
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to the limiter configuration file")
	serveCmd.Flags().StringVar(&limiterKey, "limiter-key", defaultLimiterKey, "Limiter key guarding /word")
	serveCmd.Flags().BoolVar(&trustProxy, "trust-proxy-headers", false, "Key clients by X-Forwarded-For / X-Real-IP")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func loadLimiters() (map[string]ratelimiter.Limiter, map[string]config.LimiterConfig, func() error, error) {
	if configPath == "" {
		log.Info().Str("limiter_key", limiterKey).Msg("No config file given, using the default in-memory limiter")
		limiters, configs, closer, err := ratelimiter.NewLimiters([]config.LimiterConfig{{
			Key:          limiterKey,
			Algorithm:    config.FixedWindowCounter,
			Backend:      config.InMemory,
			WindowParams: &config.WindowConfig{Window: defaultWindow, Limit: defaultMaxRequests},
		}})
		if err != nil {
			return nil, nil, nil, err
		}
		return limiters, configs, closer.Close, nil
	}
	limiters, configs, closer, err := ratelimiter.NewLimitersFromConfigPath(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return limiters, configs, closer.Close, nil
}

func serve(ctx context.Context) error {
	log.Info().Str("config_path", configPath).Msg("Starting application initialization")

	limiters, configs, closeClients, err := loadLimiters()
	if err != nil {
		return fmt.Errorf("initializing rate limiters: %w", err)
	}
	defer func() {
		if err := closeClients(); err != nil {
			log.Error().Err(err).Msg("Failed to close backend clients")
		}
	}()

	limiter, ok := limiters[limiterKey]
	if !ok {
		return fmt.Errorf("rate limiter key %q not found in config", limiterKey)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewRateLimitMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	mw := middleware.NewRateLimitMiddleware(limiter, m, limiterKey, configs[limiterKey].Algorithm)
	var opts []server.Option
	if trustProxy {
		opts = append(opts, server.WithTrustedProxyHeaders())
	}
	srv := server.New(fmt.Sprintf(":%d", port), mw, words.Default(), reg, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
