package extractor

import (
	"errors"
	"sync"
	"time"

	"github.com/tair/price-tracker/pkg/logger"
)

// ErrCircuitOpen is returned while a host's breaker rejects requests
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"    // Normal operation
	StateOpen     CircuitState = "open"      // Rejecting requests
	StateHalfOpen CircuitState = "half-open" // Probing whether the host recovered
)

// CircuitBreaker stops fetching from a host after consecutive failures
type CircuitBreaker struct {
	host         string
	maxFailures  int
	openTimeout  time.Duration
	halfOpenPass int
	isFailure    func(error) bool
	now          func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	probing         bool
	lastStateChange time.Time
}

// NewCircuitBreaker creates a breaker for host. Only errors for which
// isFailure returns true count towards opening the circuit.
func NewCircuitBreaker(host string, maxFailures int, openTimeout time.Duration, isFailure func(error) bool) *CircuitBreaker {
	return &CircuitBreaker{
		host:            host,
		maxFailures:     maxFailures,
		openTimeout:     openTimeout,
		halfOpenPass:    1,
		isFailure:       isFailure,
		now:             time.Now,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Call executes fn unless the circuit is open
func (cb *CircuitBreaker) Call(fn func() error) error {
	if cb.maxFailures <= 0 {
		return fn()
	}

	cb.mu.Lock()
	if cb.state == StateOpen && cb.now().Sub(cb.lastStateChange) >= cb.openTimeout {
		cb.setState(StateHalfOpen)
	}
	// half-open admits a single trial request at a time
	if cb.state == StateOpen || (cb.state == StateHalfOpen && cb.probing) {
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	trial := cb.state == StateHalfOpen
	if trial {
		cb.probing = true
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.probing = false
	}

	if err != nil && cb.isFailure(err) {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
	return err
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++

	switch {
	case cb.state == StateHalfOpen:
		cb.setState(StateOpen)
		logger.Logger.Warn().
			Str("host", cb.host).
			Msg("Circuit breaker reopened after half-open failure")
	case cb.failures >= cb.maxFailures:
		cb.setState(StateOpen)
		logger.Logger.Error().
			Str("host", cb.host).
			Int("failures", cb.failures).
			Int("threshold", cb.maxFailures).
			Msg("Circuit breaker opened")
	}
}

func (cb *CircuitBreaker) onSuccess() {
	if cb.state != StateHalfOpen {
		cb.failures = 0
		return
	}

	cb.successes++
	if cb.successes >= cb.halfOpenPass {
		cb.setState(StateClosed)
		cb.failures = 0
		logger.Logger.Info().
			Str("host", cb.host).
			Msg("Circuit breaker closed after successful recovery")
	}
}

func (cb *CircuitBreaker) setState(state CircuitState) {
	cb.state = state
	cb.successes = 0
	cb.lastStateChange = cb.now()
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// breakerSet holds one breaker per host
type breakerSet struct {
	mu          sync.Mutex
	breakers    map[string]*CircuitBreaker
	maxFailures int
	openTimeout time.Duration
	isFailure   func(error) bool
	now         func() time.Time
}

func newBreakerSet(maxFailures int, openTimeout time.Duration, isFailure func(error) bool) *breakerSet {
	return &breakerSet{
		breakers:    make(map[string]*CircuitBreaker),
		maxFailures: maxFailures,
		openTimeout: openTimeout,
		isFailure:   isFailure,
		now:         time.Now,
	}
}

func (s *breakerSet) get(host string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[host]; ok {
		return cb
	}

	cb := NewCircuitBreaker(host, s.maxFailures, s.openTimeout, s.isFailure)
	cb.now = s.now
	cb.lastStateChange = s.now()
	s.breakers[host] = cb
	return cb
}
