// Package middleware applies a keyed limiter to HTTP handlers.
package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"learn.wordgate/config"
	"learn.wordgate/core"
	"learn.wordgate/metrics"
	"learn.wordgate/types"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
	HeaderRequestID  = "X-Request-ID"
)

// ErrorResponse is the JSON body written for rejected and failed requests.
type ErrorResponse struct {
	Payload string `json:"payload"`
	Error   string `json:"error"`
}

// RateLimitMiddleware provides rate limiting functionality.
type RateLimitMiddleware struct {
	limiter   types.Limiter
	metrics   *metrics.RateLimitMetrics
	key       string
	algorithm config.AlgorithmType
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. key and algorithm label
// the metrics and log lines.
func NewRateLimitMiddleware(limiter types.Limiter, m *metrics.RateLimitMetrics, key string, algorithm config.AlgorithmType) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:   limiter,
		metrics:   m,
		key:       key,
		algorithm: algorithm,
	}
}

// Handle wraps an http.HandlerFunc with rate limiting logic.
// identifierFunc extracts the identifier (e.g., IP address) from the request.
func (m *RateLimitMiddleware) Handle(next http.HandlerFunc, identifierFunc func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		logger := log.With().Str("request_id", requestID).Str("limiter_key", m.key).Str("limiter_type", string(m.algorithm)).Logger()

		identifier := identifierFunc(r)
		if identifier == "" {
			logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("Middleware: Could not extract identifier, denying request")
			m.record(metrics.Error)
			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Payload: "could not identify client", Error: "missing_identifier"})
			return
		}

		d, err := m.limiter.Allow(r.Context(), identifier)
		if err != nil {
			logger.Error().Err(err).Str("identifier", identifier).Msg("Middleware: Error checking rate limit")
			m.record(metrics.Error)
			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Payload: "rate limiter unavailable", Error: "internal_error"})
			return
		}

		setHeaders(w, d)
		if !d.Allowed {
			logger.Info().Str("identifier", identifier).Dur("retry_after", d.RetryAfter).Msg("Middleware: Request rate limited")
			m.record(metrics.Rejected)
			WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{Payload: "number of requests exceeds the limit, wait until the current window lapses", Error: "rate_limit_exceeded"})
			return
		}
		m.record(metrics.Allowed)
		next.ServeHTTP(w, r)
	}
}

func (m *RateLimitMiddleware) record(outcome metrics.Outcome) {
	if m.metrics != nil {
		m.metrics.RecordRequest(m.key, m.algorithm, outcome)
	}
}

func setHeaders(w http.ResponseWriter, d core.Decision) {
	h := w.Header()
	h.Set(HeaderLimit, strconv.FormatInt(d.Limit, 10))
	h.Set(HeaderRemaining, strconv.FormatInt(d.Remaining, 10))
	if !d.Allowed && d.RetryAfter > 0 {
		// Retry-After is whole seconds, rounded up.
		h.Set(HeaderRetryAfter, strconv.FormatInt(int64(math.Ceil(d.RetryAfter.Seconds())), 10))
	}
}

// WriteJSON writes body as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Middleware: Failed to write response")
	}
}

