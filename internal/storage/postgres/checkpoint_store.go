package postgres

import (
	"context"
	"fmt"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL,
// storing network parameter blobs as bytea.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// Put stores a checkpoint, replacing any previous blob for the key.
func (s *CheckpointStore) Put(ctx context.Context, c *domain.Checkpoint) error {
	if c == nil || c.RunID == "" || c.Component == "" || len(c.Blob) == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO checkpoints (run_id, component, blob, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, component)
		DO UPDATE SET blob = EXCLUDED.blob, created_at = EXCLUDED.created_at
	`

	_, err := s.pool.Exec(ctx, query, c.RunID, c.Component, c.Blob, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// Get retrieves a checkpoint. Returns ErrNotFound if absent.
func (s *CheckpointStore) Get(ctx context.Context, runID, component string) (*domain.Checkpoint, error) {
	query := `
		SELECT run_id, component, blob, created_at
		FROM checkpoints
		WHERE run_id = $1 AND component = $2
	`

	var c domain.Checkpoint
	err := s.pool.QueryRow(ctx, query, runID, component).Scan(&c.RunID, &c.Component, &c.Blob, &c.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return &c, nil
}
