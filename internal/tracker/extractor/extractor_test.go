package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

const productPage = `<!DOCTYPE html>
<html lang="en">
	<body>
		<span id="productTitle">
			Electric   Kettle 1.7L
		</span>
		<div id="corePrice_feature_div">
			<span class="a-price"><span class="a-offscreen">$1,299.99</span></span>
		</div>
		<span class="a-price-whole">999.</span>
	</body>
</html>`

func newTestServer(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	agents := &sync.Map{}

	mux := http.NewServeMux()
	mux.HandleFunc("/dp/kettle", func(w http.ResponseWriter, r *http.Request) {
		agents.Store(r.Header.Get("User-Agent"), true)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, productPage)
	})
	mux.HandleFunc("/dp/whole", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1 id="productTitle">Toaster</h1><span class="a-price-whole">49.</span></body></html>`)
	})
	mux.HandleFunc("/dp/no-price", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1 id="productTitle">Toaster</h1></body></html>`)
	})
	mux.HandleFunc("/dp/bad-price", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1 id="productTitle">Toaster</h1><span class="a-price-whole">Currently unavailable</span></body></html>`)
	})
	mux.HandleFunc("/dp/blocked", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "robot check", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/dp/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, agents
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text    string
		want    float64
		wantErr bool
	}{
		{"$99.99", 99.99, false},
		{"$100", 100, false},
		{"1,299.", 1299, false},
		{" $1,299.99 ", 1299.99, false},
		{"EUR 12.5", 12.5, false},
		{"12.345", 12.35, false},
		{"Currently unavailable", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParsePrice(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract(t *testing.T) {
	ts, _ := newTestServer(t)
	e := NewCollyExtractor(DefaultConfig())

	got, err := e.Extract(context.Background(), ts.URL+"/dp/kettle")
	require.NoError(t, err)
	assert.Equal(t, "Electric Kettle 1.7L", got.Name)
	// first matching price element in document order
	assert.Equal(t, 1299.99, got.Price)

	got, err = e.Extract(context.Background(), ts.URL+"/dp/whole")
	require.NoError(t, err)
	assert.Equal(t, "Toaster", got.Name)
	assert.Equal(t, 49.0, got.Price)
}

func TestExtract_RotatesUserAgents(t *testing.T) {
	ts, agents := newTestServer(t)
	e := NewCollyExtractor(Config{UserAgents: []string{"agent-a", "agent-b"}})

	for i := 0; i < 40; i++ {
		_, err := e.Extract(context.Background(), ts.URL+"/dp/kettle")
		require.NoError(t, err)
	}

	_, a := agents.Load("agent-a")
	_, b := agents.Load("agent-b")
	assert.True(t, a && b)
}

func TestExtract_FailureKinds(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		path string
		kind domain.FailureKind
	}{
		{"/dp/missing", domain.NotFound},
		{"/dp/no-price", domain.ParseError},
		{"/dp/bad-price", domain.ParseError},
		{"/dp/blocked", domain.NetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e := NewCollyExtractor(DefaultConfig())
			_, err := e.Extract(context.Background(), ts.URL+tt.path)
			require.ErrorIs(t, err, domain.ErrExtraction)
			assert.Equal(t, tt.kind, domain.ExtractionKind(err))
		})
	}
}

func TestExtract_Timeout(t *testing.T) {
	ts, _ := newTestServer(t)
	e := NewCollyExtractor(Config{Timeout: 100 * time.Millisecond})

	_, err := e.Extract(context.Background(), ts.URL+"/dp/slow")
	require.ErrorIs(t, err, domain.ErrExtraction)
	assert.Equal(t, domain.NetworkError, domain.ExtractionKind(err))
}

func TestExtract_ContextCancelled(t *testing.T) {
	ts, _ := newTestServer(t)
	e := NewCollyExtractor(DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, ts.URL+"/dp/kettle")
	require.ErrorIs(t, err, domain.ErrExtraction)
	assert.Equal(t, domain.NetworkError, domain.ExtractionKind(err))
}

func TestExtract_InvalidURL(t *testing.T) {
	e := NewCollyExtractor(DefaultConfig())

	_, err := e.Extract(context.Background(), "not a url")
	assert.Equal(t, domain.NotFound, domain.ExtractionKind(err))
}

func TestExtract_BreakerOpensPerHost(t *testing.T) {
	ts, _ := newTestServer(t)
	e := NewCollyExtractor(Config{MaxFailures: 2, OpenTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := e.Extract(context.Background(), ts.URL+"/dp/blocked")
		require.Equal(t, domain.NetworkError, domain.ExtractionKind(err))
	}

	// the host is healthy again but the breaker is open
	_, err := e.Extract(context.Background(), ts.URL+"/dp/kettle")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, domain.NetworkError, domain.ExtractionKind(err))
}

func TestExtract_ParseErrorsDoNotOpenBreaker(t *testing.T) {
	ts, _ := newTestServer(t)
	e := NewCollyExtractor(Config{MaxFailures: 1, OpenTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := e.Extract(context.Background(), ts.URL+"/dp/no-price")
		require.Equal(t, domain.ParseError, domain.ExtractionKind(err))
	}

	_, err := e.Extract(context.Background(), ts.URL+"/dp/kettle")
	assert.NoError(t, err)
}

func TestCircuitBreaker_Recovers(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	cb := NewCircuitBreaker("shop.test", 2, time.Minute, func(error) bool { return true })
	cb.now = func() time.Time { return now }

	assert.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAdmitsOneTrial(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	cb := NewCircuitBreaker("shop.test", 1, time.Minute, func(error) bool { return true })
	cb.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	assert.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.State())

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Call(func() error { return nil }))
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	cb := NewCircuitBreaker("shop.test", 0, time.Minute, func(error) bool { return true })
	for i := 0; i < 10; i++ {
		_ = cb.Call(func() error { return errors.New("boom") })
	}
	assert.NoError(t, cb.Call(func() error { return nil }))
}
