// Package memory provides in-memory store implementations used by tests and
// the --use-memory mode of the command-line tools.
package memory

import (
	"context"
	"sort"
	"sync"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// TrainingRunStore is an in-memory implementation of storage.TrainingRunStore.
type TrainingRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrainingRun
}

// NewTrainingRunStore creates a new in-memory training run store.
func NewTrainingRunStore() *TrainingRunStore {
	return &TrainingRunStore{data: make(map[string]*domain.TrainingRun)}
}

var _ storage.TrainingRunStore = (*TrainingRunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *TrainingRunStore) Insert(_ context.Context, r *domain.TrainingRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *r
	s.data[r.RunID] = &cp
	return nil
}

// GetByID retrieves a run by its ID.
func (s *TrainingRunStore) GetByID(_ context.Context, runID string) (*domain.TrainingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// GetAll retrieves all runs ordered by creation time ASC.
func (s *TrainingRunStore) GetAll(_ context.Context) ([]*domain.TrainingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.TrainingRun, 0, len(s.data))
	for _, r := range s.data {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	return out, nil
}

// UpdateOutcome records how a run ended.
func (s *TrainingRunStore) UpdateOutcome(_ context.Context, runID, status string, episodesRun int, objective float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[runID]
	if !ok {
		return storage.ErrNotFound
	}
	r.Status = status
	r.EpisodesRun = episodesRun
	r.Objective = objective
	return nil
}
