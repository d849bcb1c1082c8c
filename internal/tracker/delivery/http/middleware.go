package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/price-tracker/pkg/auth"
	"github.com/tair/price-tracker/pkg/logger"
)

type contextKey string

// SubjectKey holds the token subject of an authenticated request
const SubjectKey contextKey = "subject"

// AuthMiddleware returns a guard that validates bearer tokens signed with
// secret. An empty secret leaves routes open.
func AuthMiddleware(secret string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if secret == "" {
			return next
		}

		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondJSON(w, http.StatusUnauthorized, Response{Error: "Authorization header required"})
				return
			}

			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondJSON(w, http.StatusUnauthorized, Response{Error: "Invalid authorization header format"})
				return
			}

			claims, err := auth.ValidateToken(secret, parts[1])
			if err != nil {
				logger.Warn(r.Context()).Err(err).Msg("Rejected token")
				respondJSON(w, http.StatusUnauthorized, Response{Error: "Invalid token"})
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// LoggingMiddleware logs HTTP requests with structured logging
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		ctx := r.Context()
		traceID := "no-trace"
		if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		}

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		logEvent := logger.WithContext(ctx).Info()
		if ww.statusCode >= 500 {
			logEvent = logger.WithContext(ctx).Error()
		} else if ww.statusCode >= 400 {
			logEvent = logger.WithContext(ctx).Warn()
		}

		logEvent.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Int("status", ww.statusCode).
			Dur("duration", duration).
			Str("trace_id", traceID).
			Msg("HTTP request completed")
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// TracingMiddleware wraps HTTP handlers with OpenTelemetry tracing
func TracingMiddleware(operationName string, next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, operationName)
}
