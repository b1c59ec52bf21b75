package memory

import (
	"context"
	"sync"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Checkpoint // keyed by run_id/component
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{data: make(map[string]*domain.Checkpoint)}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

func checkpointKey(runID, component string) string {
	return runID + "/" + component
}

// Put stores a checkpoint, replacing any previous blob for the key.
func (s *CheckpointStore) Put(_ context.Context, c *domain.Checkpoint) error {
	if c == nil || c.RunID == "" || c.Component == "" || len(c.Blob) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	cp.Blob = append([]byte(nil), c.Blob...)
	s.data[checkpointKey(c.RunID, c.Component)] = &cp
	return nil
}

// Get retrieves a checkpoint.
func (s *CheckpointStore) Get(_ context.Context, runID, component string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[checkpointKey(runID, component)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	cp.Blob = append([]byte(nil), c.Blob...)
	return &cp, nil
}
