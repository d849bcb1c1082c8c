package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// Response is one scripted extractor answer
type Response struct {
	Name  string
	Price float64
	Err   error
}

// Price is a successful response
func Price(name string, price float64) Response {
	return Response{Name: name, Price: price}
}

// Failure is a failed response of the given kind
func Failure(kind domain.FailureKind) Response {
	return Response{Err: errors.New(string(kind) + " failure")}.withKind(kind)
}

func (r Response) withKind(kind domain.FailureKind) Response {
	r.Err = &domain.ExtractionError{Kind: kind, Err: r.Err}
	return r
}

// FakeExtractor replays scripted responses per url. The last response for a
// url repeats once the script is exhausted.
type FakeExtractor struct {
	mu      sync.Mutex
	scripts map[string][]Response
	calls   map[string]int
	hook    func(url string)
}

func NewFakeExtractor() *FakeExtractor {
	return &FakeExtractor{
		scripts: make(map[string][]Response),
		calls:   make(map[string]int),
	}
}

// Script appends responses for url
func (f *FakeExtractor) Script(url string, responses ...Response) *FakeExtractor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[url] = append(f.scripts[url], responses...)
	return f
}

// OnExtract registers a callback run before every extraction
func (f *FakeExtractor) OnExtract(hook func(url string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

func (f *FakeExtractor) Extract(ctx context.Context, url string) (domain.Extraction, error) {
	f.mu.Lock()
	hook := f.hook
	script := f.scripts[url]
	n := f.calls[url]
	f.calls[url]++
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, domain.NewExtractionError(url, domain.NetworkError, err)
	}
	if len(script) == 0 {
		return domain.Extraction{}, domain.NewExtractionError(url, domain.NotFound, fmt.Errorf("no script for %s", url))
	}
	if n >= len(script) {
		n = len(script) - 1
	}

	resp := script[n]
	if resp.Err != nil {
		var extErr *domain.ExtractionError
		if errors.As(resp.Err, &extErr) {
			return domain.Extraction{}, domain.NewExtractionError(url, extErr.Kind, extErr.Err)
		}
		return domain.Extraction{}, resp.Err
	}
	return domain.Extraction{Name: resp.Name, Price: resp.Price}, nil
}

// Calls returns how often url was extracted
func (f *FakeExtractor) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// RecordingNotifier stores every alert it receives
type RecordingNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
	Err    error
}

func (n *RecordingNotifier) Notify(ctx context.Context, alert domain.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.Err
}

// Alerts returns a copy of the received alerts
func (n *RecordingNotifier) Alerts() []domain.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Alert, len(n.alerts))
	copy(out, n.alerts)
	return out
}

// StepClock returns a deterministic time that advances by step on every call
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{now: start, step: step}
}

func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}
