package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tair/price-tracker/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// MiddlewareConfig selects the chain wrapped around the API router
type MiddlewareConfig struct {
	ServiceName string
	Tracing     bool
	// RequestTimeout bounds the request context; a manual check runs inside
	// the request, so it has to cover a full cycle. Zero disables it.
	RequestTimeout time.Duration
	// AllowedOrigins enables CORS when not empty
	AllowedOrigins []string
}

// DefaultMiddlewareConfig returns the chain used by `serve`
func DefaultMiddlewareConfig(serviceName string) *MiddlewareConfig {
	return &MiddlewareConfig{
		ServiceName:    serviceName,
		Tracing:        true,
		RequestTimeout: 5 * time.Minute,
		AllowedOrigins: []string{"*"},
	}
}

type namedMiddleware struct {
	name string
	fn   mux.MiddlewareFunc
}

// chain lists the middlewares outermost first
func (c *MiddlewareConfig) chain() []namedMiddleware {
	chain := []namedMiddleware{
		{"recovery", RecoveryMiddleware},
		{"request_id", RequestIDMiddleware},
	}
	if c.RequestTimeout > 0 {
		chain = append(chain, namedMiddleware{"deadline", DeadlineMiddleware(c.RequestTimeout)})
	}
	chain = append(chain, namedMiddleware{"logging", LoggingMiddleware})
	if c.Tracing {
		operation := c.ServiceName + "-http-request"
		chain = append(chain, namedMiddleware{"tracing", func(next http.Handler) http.Handler {
			return TracingMiddleware(operation, next)
		}})
	}
	return append(chain, namedMiddleware{"security_headers", SecurityHeadersMiddleware})
}

// RegisterMiddlewares installs the configured chain on router
func RegisterMiddlewares(router *mux.Router, config *MiddlewareConfig) {
	chain := config.chain()
	names := make([]string, 0, len(chain))
	for _, m := range chain {
		router.Use(m.fn)
		names = append(names, m.name)
	}

	logger.Logger.Info().
		Strs("chain", names).
		Dur("request_timeout", config.RequestTimeout).
		Strs("cors_origins", config.AllowedOrigins).
		Msg("Registered middlewares")
}

// RecoveryMiddleware turns a handler panic into a 500 envelope
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Logger.Error().
					Interface("panic", err).
					Str("request_id", r.Header.Get(requestIDHeader)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				respondJSON(w, http.StatusInternalServerError, Response{Error: "Internal Server Error"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// DeadlineMiddleware cancels the request context after timeout. Handlers see
// the deadline through r.Context(), and a check cut short answers 504.
func DeadlineMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware propagates or assigns X-Request-ID
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(requestIDHeader, requestID)
		}
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r)
	})
}

// SecurityHeadersMiddleware marks API responses as uncacheable JSON
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// SetupCORS wraps the router with rs/cors for the configured origins
func SetupCORS(config *MiddlewareConfig) func(http.Handler) http.Handler {
	if len(config.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "X-RateLimit-Remaining", "Retry-After"},
	}).Handler
}
