package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackerhttp "github.com/tair/price-tracker/internal/tracker/delivery/http"
)

func TestRegisterMiddlewares(t *testing.T) {
	router := mux.NewRouter()
	cfg := trackerhttp.DefaultMiddlewareConfig("price-tracker")
	cfg.Tracing = false
	trackerhttp.RegisterMiddlewares(router, cfg)

	router.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("X-Request-ID")))
	})
	router.HandleFunc("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDeadlineMiddleware(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, hasDeadline = r.Context().Deadline()
	})

	before := time.Now()
	trackerhttp.DeadlineMiddleware(time.Minute)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/checks", nil))
	require.True(t, hasDeadline)
	assert.WithinDuration(t, before.Add(time.Minute), deadline, 5*time.Second)

	// zero timeout leaves the deadline out of the chain
	router := mux.NewRouter()
	cfg := trackerhttp.DefaultMiddlewareConfig("price-tracker")
	cfg.Tracing = false
	cfg.RequestTimeout = 0
	trackerhttp.RegisterMiddlewares(router, cfg)
	router.Handle("/api/checks", next)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/checks", nil))
	assert.False(t, hasDeadline)
}

func TestSetupCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	cfg := trackerhttp.DefaultMiddlewareConfig("price-tracker")
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	rec := httptest.NewRecorder()
	trackerhttp.SetupCORS(cfg)(next).ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	cfg.AllowedOrigins = []string{"https://other.example"}
	rec = httptest.NewRecorder()
	trackerhttp.SetupCORS(cfg)(next).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	cfg.AllowedOrigins = nil
	rec = httptest.NewRecorder()
	trackerhttp.SetupCORS(cfg)(next).ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
