package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// EpisodeResultStore is an in-memory implementation of storage.EpisodeResultStore.
type EpisodeResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EpisodeResult // keyed by run_id/episode
}

// NewEpisodeResultStore creates a new in-memory episode result store.
func NewEpisodeResultStore() *EpisodeResultStore {
	return &EpisodeResultStore{data: make(map[string]*domain.EpisodeResult)}
}

var _ storage.EpisodeResultStore = (*EpisodeResultStore)(nil)

func resultKey(runID string, episode int) string {
	return fmt.Sprintf("%s/%d", runID, episode)
}

// InsertBulk adds results atomically. Fails the entire batch on any duplicate.
func (s *EpisodeResultStore) InsertBulk(_ context.Context, results []*domain.EpisodeResult) error {
	if len(results) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(results))
	for _, r := range results {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
		key := resultKey(r.RunID, r.Episode)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[key]; exists {
			return storage.ErrDuplicateKey
		}
		batch[key] = struct{}{}
	}

	for _, r := range results {
		cp := *r
		s.data[resultKey(r.RunID, r.Episode)] = &cp
	}
	return nil
}

// GetByRunID retrieves all results for a run, ordered by episode ASC.
func (s *EpisodeResultStore) GetByRunID(_ context.Context, runID string) ([]*domain.EpisodeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.EpisodeResult
	for _, r := range s.data {
		if r.RunID == runID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Episode < out[j].Episode })
	return out, nil
}
