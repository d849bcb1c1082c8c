package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	trackerhttp "github.com/tair/price-tracker/internal/tracker/delivery/http"
)

func newLimiter(t *testing.T, max int) (*trackerhttp.RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return trackerhttp.NewRateLimiter(client, max, time.Minute), mr
}

func TestRateLimiter(t *testing.T) {
	limiter, _ := newLimiter(t, 2)
	handler := limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	call := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/checks", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	rec := call("10.0.0.1:5000")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:5001").Code)

	rec = call("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// other callers have their own window
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:5000").Code)
}

func TestRateLimiter_RedisDownAllows(t *testing.T) {
	limiter, mr := newLimiter(t, 1)
	mr.Close()

	called := 0
	handler := limiter.Middleware(func(w http.ResponseWriter, r *http.Request) { called++ })

	for i := 0; i < 3; i++ {
		handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/checks", nil))
	}
	assert.Equal(t, 3, called)
}

func TestRateLimiter_AppliedToMutatingRoutes(t *testing.T) {
	f := newFixture(t, "")
	limiter, _ := newLimiter(t, 1)

	h := f.handler
	h.UseRateLimiter(limiter)
	f.router = newRouter(h)

	rec, _ := f.do(t, http.MethodPost, "/api/checks", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/api/checks", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, f.trigger.calls)

	for i := 0; i < 3; i++ {
		rec, _ = f.do(t, http.MethodGet, "/api/products", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
