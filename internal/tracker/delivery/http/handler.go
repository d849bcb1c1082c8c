package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/internal/tracker/scheduler"
	"github.com/tair/price-tracker/internal/tracker/usecase/command"
	"github.com/tair/price-tracker/internal/tracker/usecase/query"
	"github.com/tair/price-tracker/pkg/logger"
)

// CycleTrigger runs check cycles on demand and reports the schedule
type CycleTrigger interface {
	RunNow(ctx context.Context) (domain.CycleSummary, error)
	Running() bool
	NextRun() time.Time
	Interval() time.Duration
	LastCycle(ctx context.Context) (domain.CycleSummary, bool, error)
}

// TrackerHandler handles HTTP requests for tracked products using CQRS pattern
type TrackerHandler struct {
	// Command handlers
	addHandler    *command.AddProductHandler
	removeHandler *command.RemoveProductHandler
	clearHandler  *command.ClearAllHandler

	// Query handlers
	listHandler    *query.ListProductsHandler
	historyHandler *query.GetHistoryHandler
	productHandler *query.GetProductHandler

	trigger   CycleTrigger
	jwtSecret string
	limiter   *RateLimiter

	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	requestSummary *prometheus.SummaryVec
}

// NewTrackerHandler creates a new tracker handler. Collectors are registered on reg.
func NewTrackerHandler(
	addHandler *command.AddProductHandler,
	removeHandler *command.RemoveProductHandler,
	clearHandler *command.ClearAllHandler,
	listHandler *query.ListProductsHandler,
	historyHandler *query.GetHistoryHandler,
	productHandler *query.GetProductHandler,
	trigger CycleTrigger,
	jwtSecret string,
	reg prometheus.Registerer,
) *TrackerHandler {
	requestCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_tracker_http_requests_total",
			Help: "Total number of requests to the price tracker API",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_tracker_http_request_duration_seconds",
			Help:    "Duration of price tracker API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Summary metric for percentile calculation (p50, p90, p95, p99)
	requestSummary := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "price_tracker_http_request_duration_summary",
			Help: "Summary of request durations with percentiles",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.95: 0.01,
				0.99: 0.001,
			},
			MaxAge: 10 * time.Minute,
		},
		[]string{"method", "endpoint"},
	)

	reg.MustRegister(requestCounter, requestLatency, requestSummary)

	return &TrackerHandler{
		addHandler:     addHandler,
		removeHandler:  removeHandler,
		clearHandler:   clearHandler,
		listHandler:    listHandler,
		historyHandler: historyHandler,
		productHandler: productHandler,
		trigger:        trigger,
		jwtSecret:      jwtSecret,
		requestCounter: requestCounter,
		requestLatency: requestLatency,
		requestSummary: requestSummary,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware wraps handlers with Prometheus metrics
func (h *TrackerHandler) metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		h.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
		h.requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
		h.requestSummary.WithLabelValues(r.Method, endpoint).Observe(duration)
	}
}

// UseRateLimiter limits mutating routes. Call before RegisterRoutes.
func (h *TrackerHandler) UseRateLimiter(rl *RateLimiter) {
	h.limiter = rl
}

// RegisterRoutes registers all tracker routes. Mutating routes require a
// bearer token when a JWT secret is configured.
func (h *TrackerHandler) RegisterRoutes(router *mux.Router) {
	auth := AuthMiddleware(h.jwtSecret)
	guard := func(next http.HandlerFunc) http.HandlerFunc {
		if h.limiter != nil {
			next = h.limiter.Middleware(next)
		}
		return auth(next)
	}

	router.HandleFunc("/api/products", h.metricsMiddleware("/api/products", h.ListProducts)).Methods("GET")
	router.HandleFunc("/api/products/history", h.metricsMiddleware("/api/products/history", h.GetHistory)).Methods("GET")
	router.HandleFunc("/api/products/lookup", h.metricsMiddleware("/api/products/lookup", h.GetProduct)).Methods("GET")
	router.HandleFunc("/api/status", h.metricsMiddleware("/api/status", h.GetStatus)).Methods("GET")

	router.HandleFunc("/api/products", h.metricsMiddleware("/api/products", guard(h.AddProduct))).Methods("POST")
	router.HandleFunc("/api/products", h.metricsMiddleware("/api/products", guard(h.RemoveProducts))).Methods("DELETE")
	router.HandleFunc("/api/checks", h.metricsMiddleware("/api/checks", guard(h.RunCheck))).Methods("POST")
}

// RegisterHealthCheck registers health check endpoint
func (h *TrackerHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Price tracker is healthy",
		})
	}).Methods("GET")
}

// AddProduct handles POST /api/products
func (h *TrackerHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL         string  `json:"url"`
		TargetPrice float64 `json:"target_price"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	product, err := h.addHandler.Handle(r.Context(), command.AddProductCommand{
		URL:         req.URL,
		TargetPrice: req.TargetPrice,
	})
	if err != nil {
		respondError(w, r, err, "Failed to add product")
		return
	}

	logger.Info(r.Context()).
		Str("url", product.URL).
		Float64("target_price", product.TargetPrice).
		Msg("Product added")

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Product added successfully",
		Data:    product,
	})
}

// ListProducts handles GET /api/products
func (h *TrackerHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.listHandler.Handle(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to list products")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    products,
	})
}

// GetProduct handles GET /api/products/lookup?url=
func (h *TrackerHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.productHandler.Handle(r.Context(), query.GetProductQuery{URL: r.URL.Query().Get("url")})
	if err != nil {
		respondError(w, r, err, "Failed to get product")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    product,
	})
}

// GetHistory handles GET /api/products/history?url=
func (h *TrackerHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.historyHandler.Handle(r.Context(), query.GetHistoryQuery{URL: r.URL.Query().Get("url")})
	if err != nil {
		respondError(w, r, err, "Failed to get history")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    history,
	})
}

// RemoveProducts handles DELETE /api/products?url= and DELETE /api/products?all=true
func (h *TrackerHandler) RemoveProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if all, _ := strconv.ParseBool(q.Get("all")); all {
		removed, err := h.clearHandler.Handle(r.Context())
		if err != nil {
			respondError(w, r, err, "Failed to clear products")
			return
		}

		logger.Warn(r.Context()).Int64("removed", removed).Msg("All products cleared")
		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "All products removed",
			Data:    map[string]int64{"removed": removed},
		})
		return
	}

	url := q.Get("url")
	if url == "" {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "url or all=true is required",
		})
		return
	}

	if err := h.removeHandler.Handle(r.Context(), command.RemoveProductCommand{URL: url}); err != nil {
		respondError(w, r, err, "Failed to remove product")
		return
	}

	logger.Info(r.Context()).Str("url", url).Msg("Product removed")
	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Product removed successfully",
	})
}

// RunCheck handles POST /api/checks
func (h *TrackerHandler) RunCheck(w http.ResponseWriter, r *http.Request) {
	summary, err := h.trigger.RunNow(r.Context())
	if err != nil && summary.ID == "" {
		respondError(w, r, err, "Failed to run check")
		return
	}

	resp := Response{
		Success: err == nil,
		Message: "Check cycle completed",
		Data:    summary,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// StatusView is the body of GET /api/status
type StatusView struct {
	Running   bool                 `json:"running"`
	Interval  string               `json:"interval"`
	NextRun   *time.Time           `json:"next_run,omitempty"`
	LastCycle *domain.CycleSummary `json:"last_cycle,omitempty"`
	Degraded  bool                 `json:"degraded"`
}

// GetStatus handles GET /api/status
func (h *TrackerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	view := StatusView{
		Running:  h.trigger.Running(),
		Interval: h.trigger.Interval().String(),
	}
	if next := h.trigger.NextRun(); !next.IsZero() {
		view.NextRun = &next
	}

	last, ok, err := h.trigger.LastCycle(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to read status")
		return
	}
	if ok {
		view.LastCycle = &last
		view.Degraded = last.Degraded()
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateURL):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scheduler.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(r.Context()).Err(err).Msg(msg)
		respondJSON(w, status, Response{Success: false, Error: msg})
		return
	}

	respondJSON(w, status, Response{Success: false, Error: err.Error()})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
