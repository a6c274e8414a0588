package memory

import (
	"context"
	"sync"

	"gocausal/ports"
)

// RunStore keeps the most recent runs in process memory
type RunStore struct {
	mu       sync.RWMutex
	capacity int
	order    []string // oldest first
	runs     map[string]*ports.RunRecord
}

// NewRunStore creates a store that evicts the oldest run beyond capacity
func NewRunStore(capacity int) *RunStore {
	if capacity < 1 {
		capacity = 1
	}
	return &RunStore{capacity: capacity, runs: make(map[string]*ports.RunRecord)}
}

// SaveRun stores a copy of rec; saving an existing id replaces it in place
func (s *RunStore) SaveRun(_ context.Context, rec *ports.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if _, ok := s.runs[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.runs[rec.ID] = &cp

	for len(s.order) > s.capacity {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// GetRun returns the run or ports.ErrRunNotFound
func (s *RunStore) GetRun(_ context.Context, id string) (*ports.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[id]
	if !ok {
		return nil, ports.ErrRunNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListRuns returns up to limit runs, newest first
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]*ports.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ports.RunRecord, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.runs[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}
