// Package storage defines the persistence interfaces for training runs,
// evaluation results, trajectories, scalars, and network checkpoints.
// Backends: in-memory (tests, --use-memory), PostgreSQL (runs, results,
// checkpoints), ClickHouse (high-volume timeseries).
package storage

import (
	"context"

	"order-exec-lab/internal/domain"
)

// TrainingRunStore records training invocations and their outcomes.
type TrainingRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.TrainingRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, runID string) (*domain.TrainingRun, error)

	// GetAll retrieves all runs ordered by creation time ASC.
	GetAll(ctx context.Context) ([]*domain.TrainingRun, error)

	// UpdateOutcome records how a run ended: episodes completed, terminal
	// status, and the evaluation objective. Returns ErrNotFound if absent.
	UpdateOutcome(ctx context.Context, runID, status string, episodesRun int, objective float64) error
}

// EpisodeResultStore holds per-episode evaluation results.
type EpisodeResultStore interface {
	// InsertBulk adds results atomically. Fails the entire batch on a
	// duplicate (run_id, episode).
	InsertBulk(ctx context.Context, results []*domain.EpisodeResult) error

	// GetByRunID retrieves all results for a run, ordered by episode ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EpisodeResult, error)
}

// TrajectoryStore holds per-step evaluation trajectories for plotting.
type TrajectoryStore interface {
	// InsertBulk adds trajectory points.
	InsertBulk(ctx context.Context, points []*domain.TrajectoryPoint) error

	// GetByEpisode retrieves points for one (run, episode, controller),
	// ordered by step ASC.
	GetByEpisode(ctx context.Context, runID string, episode int, controller string) ([]*domain.TrajectoryPoint, error)
}

// ScalarStore holds per-episode training scalars (reward, loss, epsilon).
type ScalarStore interface {
	// InsertBulk adds scalar points.
	InsertBulk(ctx context.Context, points []*domain.ScalarPoint) error

	// GetByRunID retrieves all scalars for a run, ordered by episode ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ScalarPoint, error)
}

// CheckpointStore holds opaque network parameter blobs keyed by
// (run_id, component).
type CheckpointStore interface {
	// Put stores a checkpoint, replacing any previous blob for the key.
	Put(ctx context.Context, c *domain.Checkpoint) error

	// Get retrieves a checkpoint. Returns ErrNotFound if absent.
	Get(ctx context.Context, runID, component string) (*domain.Checkpoint, error)
}
