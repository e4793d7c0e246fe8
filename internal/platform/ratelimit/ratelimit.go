// Package ratelimit limits API requests per client IP with a sliding window.
// Windows live in memory for a single instance or in Redis when sessions are
// stored there, so all instances share one budget.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"kycflow/pkg/platform/httputil"
	"kycflow/pkg/platform/middleware/metadata"
)

// Result is the outcome of one limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Store records requests in a sliding window keyed by caller.
type Store interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*Result, error)
}

// Class is a named budget applied to a group of endpoints.
type Class struct {
	Name   string
	Limit  int
	Window time.Duration
}

type Middleware struct {
	store    Store
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns limiting off, for local runs and demos.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{store: store, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled && logger != nil {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit returns middleware enforcing class per client IP. A failing store
// lets the request through.
func (m *Middleware) Limit(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled || class.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := metadata.GetClientIP(ctx)
			result, err := m.store.AllowN(ctx, key(class, ip), 1, class.Limit, class.Window)
			if err != nil {
				if m.logger != nil {
					m.logger.ErrorContext(ctx, "failed to check rate limit", "class", class.Name, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)
			if !result.Allowed {
				writeExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func key(class Class, ip string) string {
	return "kycflow:ratelimit:" + class.Name + ":" + ip
}

func addHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeExceeded(w http.ResponseWriter, result *Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":             "rate_limit_exceeded",
		"error_description": "too many requests, try again later",
		"retry_after":       result.RetryAfter,
	})
}

// retryAfter rounds the wait up to whole seconds, never below one.
func retryAfter(resetAt, now time.Time) int {
	secs := int((resetAt.Sub(now) + time.Second - 1) / time.Second)
	return max(secs, 1)
}
