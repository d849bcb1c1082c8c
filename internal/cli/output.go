package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation rejected or cycle aborted
	ExitCommandError = 2 // Command error (bad flags, configuration, database unavailable)
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Print writes data as JSON, or calls text to render it for humans.
func (f *OutputFormatter) Print(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

const timeLayout = "2006-01-02 15:04:05"

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func money(price float64, ok bool, missing string) string {
	if !ok {
		return missing
	}
	return fmt.Sprintf("%.2f", price)
}

func renderProducts(w io.Writer, products []domain.ProductWithLatest) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products are being tracked.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-33s  %-43s  %10s  %10s  %10s\n", "ID", "NAME", "URL", "TARGET", "LATEST", "NOTIFIED")
	for _, p := range products {
		latest, ok := p.LatestPrice()
		var notified float64
		if p.LastNotifiedPrice != nil {
			notified = *p.LastNotifiedPrice
		}
		fmt.Fprintf(w, "%-4d  %-33s  %-43s  %10.2f  %10s  %10s\n",
			p.ID,
			truncate(p.Name, 30),
			truncate(p.URL, 40),
			p.TargetPrice,
			money(latest, ok, "N/A"),
			money(notified, p.LastNotifiedPrice != nil, "-"),
		)
	}
}

func renderHistory(w io.Writer, url string, history []domain.Observation) {
	fmt.Fprintf(w, "Price history for %s\n", url)
	fmt.Fprintf(w, "%-19s  %10s\n", "TIMESTAMP", "PRICE ($)")
	for _, o := range history {
		fmt.Fprintf(w, "%-19s  %10.2f\n", o.ObservedAt.Format(timeLayout), o.Price)
	}
}

func cycleState(s domain.CycleSummary) string {
	switch {
	case s.Aborted:
		return "aborted"
	case s.Degraded():
		return "degraded"
	default:
		return "ok"
	}
}

func renderSummary(w io.Writer, s domain.CycleSummary) {
	fmt.Fprintf(w, "Cycle:     %s\n", s.ID)
	fmt.Fprintf(w, "State:     %s\n", cycleState(s))
	fmt.Fprintf(w, "Checked:   %d of %d\n", s.Checked, s.Total)
	fmt.Fprintf(w, "Failed:    %d\n", s.Failed)
	fmt.Fprintf(w, "Skipped:   %d\n", s.Skipped)
	fmt.Fprintf(w, "Alerts:    %d\n", s.Alerts)
	fmt.Fprintf(w, "Duration:  %s\n", s.Duration())
	fmt.Fprintf(w, "Last checked: %s\n", s.CompletedAt.Format(timeLayout))
}

// SortKeys are the accepted values of list --sort.
var SortKeys = []string{"id", "name", "target", "latest"}

// sortProducts orders products by key. Products without a latest price sort last.
func sortProducts(products []domain.ProductWithLatest, key string, desc bool) error {
	var less func(a, b domain.ProductWithLatest) bool
	switch key {
	case "id":
		less = func(a, b domain.ProductWithLatest) bool { return a.ID < b.ID }
	case "name":
		less = func(a, b domain.ProductWithLatest) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case "target":
		less = func(a, b domain.ProductWithLatest) bool { return a.TargetPrice < b.TargetPrice }
	case "latest":
		less = func(a, b domain.ProductWithLatest) bool {
			pa, _ := a.LatestPrice()
			pb, _ := b.LatestPrice()
			return pa < pb
		}
	default:
		return fmt.Errorf("invalid sort key %q: must be one of %v", key, SortKeys)
	}

	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if key == "latest" && (a.Latest == nil) != (b.Latest == nil) {
			return b.Latest == nil
		}
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
	return nil
}
