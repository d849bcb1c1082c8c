package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/price-tracker/internal/testutil"
	"github.com/tair/price-tracker/internal/tracker"
	"github.com/tair/price-tracker/internal/tracker/config"
	"github.com/tair/price-tracker/internal/tracker/domain"
	"github.com/tair/price-tracker/internal/tracker/monitor"
	"github.com/tair/price-tracker/pkg/auth"
)

const (
	kettleURL = "https://www.amazon.com/dp/B000KETTLE"
	secret    = "cli-secret"
)

type harness struct {
	repo      domain.ProductRepository
	extractor *testutil.FakeExtractor
	notifier  *testutil.RecordingNotifier
	opener    Opener
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		repo:      testutil.NewRepository(t),
		extractor: testutil.NewFakeExtractor(),
		notifier:  &testutil.RecordingNotifier{},
	}
	cfg := &config.Config{
		ServiceName: "price-tracker-test",
		Environment: "test",
		LogLevel:    "error",
		JWTSecret:   secret,
	}

	h.opener = Opener{
		Config: func() (*config.Config, error) { return cfg, nil },
		Store: func(*config.Config) (*tracker.Store, func(), error) {
			return tracker.NewStore(h.repo, h.extractor), func() {}, nil
		},
		App: func(*config.Config) (*tracker.App, func(), error) {
			return &tracker.App{
				Config: cfg,
				Store:  tracker.NewStore(h.repo, h.extractor),
				Engine: monitor.NewEngine(h.repo, h.extractor, h.notifier),
			}, func() {}, nil
		},
	}
	return h
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := NewRootCommand(h.opener)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()
	return out.String(), err
}

func TestAddAndList(t *testing.T) {
	h := newHarness(t)
	h.extractor.Script(kettleURL, testutil.Price("Electric Kettle", 60))

	out, err := h.run(t, "", "add", kettleURL, "50")
	require.NoError(t, err)
	assert.Equal(t, "Added Electric Kettle to tracking list (target 50.00).\n", out)

	out, err = h.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Electric Kettle")
	assert.Contains(t, out, "60.00")

	out, err = h.run(t, "", "list", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string                     `json:"status"`
		Data   []domain.ProductWithLatest `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, kettleURL, resp.Data[0].URL)
}

func TestAdd_Rejected(t *testing.T) {
	h := newHarness(t)
	h.extractor.Script(kettleURL, testutil.Price("Electric Kettle", 60))

	_, err := h.run(t, "", "add", kettleURL, "fifty")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = h.run(t, "", "add", kettleURL, "0")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.run(t, "", "add", kettleURL, "50")
	require.NoError(t, err)

	_, err = h.run(t, "", "add", kettleURL, "40")
	assert.ErrorIs(t, err, domain.ErrDuplicateURL)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = h.run(t, "", "add", kettleURL)
	assert.Error(t, err)
}

func TestGlobalFlags(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "list", "--format", "yaml")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run(t, "", "list", "--sort", "price")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	h.extractor.Script(kettleURL, testutil.Price("Electric Kettle", 60))
	_, err := h.run(t, "", "add", kettleURL, "50")
	require.NoError(t, err)

	out, err := h.run(t, "", "history", kettleURL)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[2], "60.00"))

	_, err = h.run(t, "", "history", "https://www.amazon.com/dp/UNKNOWN")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	h.extractor.Script(kettleURL, testutil.Price("Electric Kettle", 60))
	_, err := h.run(t, "", "add", kettleURL, "50")
	require.NoError(t, err)

	_, err = h.run(t, "n\n", "remove", kettleURL)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	count, err := h.repo.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	out, err := h.run(t, "y\n", "remove", kettleURL)
	require.NoError(t, err)
	assert.Equal(t, "Product removed from tracking.\n", out)

	_, err = h.run(t, "", "remove", "-y", kettleURL)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestClear(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "clear")
	require.NoError(t, err)
	assert.Equal(t, "No products to clear.\n", out)

	h.extractor.Script(kettleURL, testutil.Price("Electric Kettle", 60))
	h.extractor.Script("https://www.amazon.com/dp/B0FRENCH", testutil.Price("French Press", 35))
	for _, url := range []string{kettleURL, "https://www.amazon.com/dp/B0FRENCH"} {
		_, err := h.run(t, "", "add", url, "30")
		require.NoError(t, err)
	}

	_, err = h.run(t, "", "clear")
	assert.Equal(t, ExitFailure, GetExitCode(err), "no answer means no")

	out, err = h.run(t, "yes\n", "clear")
	require.NoError(t, err)
	assert.Equal(t, "All products removed (2).\n", out)
}

func TestCheck_Local(t *testing.T) {
	h := newHarness(t)
	h.extractor.Script(kettleURL, testutil.Price("Electric Kettle", 60), testutil.Price("Electric Kettle", 45))
	_, err := h.run(t, "", "add", kettleURL, "50")
	require.NoError(t, err)

	out, err := h.run(t, "", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked:   1 of 1\n")
	assert.Contains(t, out, "Alerts:    1\n")

	alerts := h.notifier.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Price Drop Alert: Electric Kettle", alerts[0].Title)
}

func TestCheck_Remote(t *testing.T) {
	h := newHarness(t)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost || r.URL.Path != "/api/checks" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"id":"cycle-7","total":2,"checked":2,"alerts":1}}`))
	}))
	defer srv.Close()

	out, err := h.run(t, "", "check", "--server", srv.URL+"/", "--token", "tok", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)

	var resp struct {
		Data domain.CycleSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "cycle-7", resp.Data.ID)
	assert.Equal(t, 1, resp.Data.Alerts)
}

func TestCheck_RemoteUnavailable(t *testing.T) {
	h := newHarness(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"success":false,"error":"scheduler is not running"}`))
	}))
	defer srv.Close()

	_, err := h.run(t, "", "check", "--server", srv.URL)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "503")
}

func TestToken(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "token", "--subject", "ops")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(secret, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestAlerts_RequiresBrokers(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "alerts")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
