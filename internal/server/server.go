// Package server wires the word service routes behind a rate limiter.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"learn.wordgate/internal/words"
	"learn.wordgate/middleware"
)

// WordResponse is the body of a successful GET /word.
type WordResponse struct {
	Payload string `json:"payload"`
}

// Server represents the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	addr   string
}

// Option configures a Server.
type Option func(*options)

type options struct {
	identify func(*http.Request) string
}

// WithTrustedProxyHeaders keys /word by ClientIP instead of RemoteIP. Only use it
// behind a proxy that overwrites X-Forwarded-For and X-Real-IP: a client that
// can set them picks its own identifier.
func WithTrustedProxyHeaders() Option {
	return func(o *options) {
		o.identify = ClientIP
	}
}

// New creates the router. limiter guards /word; gatherer backs /metrics.
func New(addr string, limiter *middleware.RateLimitMiddleware, source *words.Source, gatherer prometheus.Gatherer, opts ...Option) *Server {
	o := options{identify: RemoteIP}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Welcome to the word service!")
	})
	r.Get("/word", limiter.Handle(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, WordResponse{Payload: source.Random()})
	}, o.identify))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		router: r,
		addr:   addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	log.Info().Str("address", s.addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ClientIP extracts the client's IP address from the request.
// It checks X-Forwarded-For, X-Real-IP headers, and finally the request's RemoteAddr.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return RemoteIP(r)
}

// RemoteIP returns the host part of the request's RemoteAddr.
func RemoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
