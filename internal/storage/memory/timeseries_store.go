package memory

import (
	"context"
	"sort"
	"sync"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// TrajectoryStore is an in-memory implementation of storage.TrajectoryStore.
type TrajectoryStore struct {
	mu   sync.RWMutex
	data []*domain.TrajectoryPoint
}

// NewTrajectoryStore creates a new in-memory trajectory store.
func NewTrajectoryStore() *TrajectoryStore {
	return &TrajectoryStore{}
}

var _ storage.TrajectoryStore = (*TrajectoryStore)(nil)

// InsertBulk adds trajectory points.
func (s *TrajectoryStore) InsertBulk(_ context.Context, points []*domain.TrajectoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
		cp := *p
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetByEpisode retrieves points for one (run, episode, controller),
// ordered by step ASC.
func (s *TrajectoryStore) GetByEpisode(_ context.Context, runID string, episode int, controller string) ([]*domain.TrajectoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.TrajectoryPoint
	for _, p := range s.data {
		if p.RunID == runID && p.Episode == episode && p.Controller == controller {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// ScalarStore is an in-memory implementation of storage.ScalarStore.
type ScalarStore struct {
	mu   sync.RWMutex
	data []*domain.ScalarPoint
}

// NewScalarStore creates a new in-memory scalar store.
func NewScalarStore() *ScalarStore {
	return &ScalarStore{}
}

var _ storage.ScalarStore = (*ScalarStore)(nil)

// InsertBulk adds scalar points.
func (s *ScalarStore) InsertBulk(_ context.Context, points []*domain.ScalarPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
		cp := *p
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetByRunID retrieves all scalars for a run, ordered by episode ASC.
func (s *ScalarStore) GetByRunID(_ context.Context, runID string) ([]*domain.ScalarPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ScalarPoint
	for _, p := range s.data {
		if p.RunID == runID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Episode < out[j].Episode })
	return out, nil
}
