package status

import (
	"context"
	"sync"

	"github.com/tair/price-tracker/internal/tracker/domain"
)

// DefaultHistorySize is how many recent cycle summaries a store keeps
const DefaultHistorySize = 20

// Store keeps the summaries of recently completed cycles
type Store interface {
	Save(ctx context.Context, summary domain.CycleSummary) error
	// Last returns the most recent summary and false if no cycle completed yet
	Last(ctx context.Context) (domain.CycleSummary, bool, error)
	// Recent returns up to n summaries, newest first
	Recent(ctx context.Context, n int) ([]domain.CycleSummary, error)
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu      sync.RWMutex
	size    int
	history []domain.CycleSummary
}

// NewMemoryStore creates a store keeping at most size summaries
func NewMemoryStore(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &MemoryStore{size: size}
}

func (s *MemoryStore) Save(ctx context.Context, summary domain.CycleSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]domain.CycleSummary{summary}, s.history...)
	if len(s.history) > s.size {
		s.history = s.history[:s.size]
	}
	return nil
}

func (s *MemoryStore) Last(ctx context.Context) (domain.CycleSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return domain.CycleSummary{}, false, nil
	}
	return s.history[0], true, nil
}

func (s *MemoryStore) Recent(ctx context.Context, n int) ([]domain.CycleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]domain.CycleSummary, n)
	copy(out, s.history[:n])
	return out, nil
}
