package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// TrainingRunStore implements storage.TrainingRunStore using PostgreSQL.
type TrainingRunStore struct {
	pool *Pool
}

// NewTrainingRunStore creates a new TrainingRunStore.
func NewTrainingRunStore(pool *Pool) *TrainingRunStore {
	return &TrainingRunStore{pool: pool}
}

var _ storage.TrainingRunStore = (*TrainingRunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *TrainingRunStore) Insert(ctx context.Context, r *domain.TrainingRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO training_runs (
			run_id, created_at, status,
			total_shares, time_horizon, start_price, drift, volatility,
			perm_impact, temp_impact, risk_aversion, seed, action_multipliers,
			gamma, lr, batch_size, memory_size, episodes,
			epsilon_start, epsilon_end, epsilon_decay, target_update, hidden_size,
			episodes_run, objective
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23,
			$24, $25
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.CreatedAt, r.Status,
		r.Params.TotalShares, r.Params.TimeHorizon, r.Params.StartPrice, r.Params.Drift, r.Params.Volatility,
		r.Params.PermImpact, r.Params.TempImpact, r.Params.RiskAversion, r.Params.Seed, r.Params.ActionMultipliers,
		r.Hyper.Gamma, r.Hyper.LR, r.Hyper.BatchSize, r.Hyper.MemorySize, r.Hyper.Episodes,
		r.Hyper.EpsilonStart, r.Hyper.EpsilonEnd, r.Hyper.EpsilonDecay, r.Hyper.TargetUpdate, r.Hyper.HiddenSize,
		r.EpisodesRun, r.Objective,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert training run: %w", err)
	}
	return nil
}

const runColumns = `
	run_id, created_at, status,
	total_shares, time_horizon, start_price, drift, volatility,
	perm_impact, temp_impact, risk_aversion, seed, action_multipliers,
	gamma, lr, batch_size, memory_size, episodes,
	epsilon_start, epsilon_end, epsilon_decay, target_update, hidden_size,
	episodes_run, objective
`

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *TrainingRunStore) GetByID(ctx context.Context, runID string) (*domain.TrainingRun, error) {
	query := `SELECT` + runColumns + `FROM training_runs WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get training run by id: %w", err)
	}
	return r, nil
}

// GetAll retrieves all runs ordered by creation time ASC.
func (s *TrainingRunStore) GetAll(ctx context.Context) ([]*domain.TrainingRun, error) {
	query := `SELECT` + runColumns + `FROM training_runs ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all training runs: %w", err)
	}
	defer rows.Close()

	var out []*domain.TrainingRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan training run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateOutcome records how a run ended. Returns ErrNotFound if absent.
func (s *TrainingRunStore) UpdateOutcome(ctx context.Context, runID, status string, episodesRun int, objective float64) error {
	query := `
		UPDATE training_runs
		SET status = $2, episodes_run = $3, objective = $4
		WHERE run_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, runID, status, episodesRun, objective)
	if err != nil {
		return fmt.Errorf("update training run outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (*domain.TrainingRun, error) {
	var r domain.TrainingRun
	err := row.Scan(
		&r.RunID, &r.CreatedAt, &r.Status,
		&r.Params.TotalShares, &r.Params.TimeHorizon, &r.Params.StartPrice, &r.Params.Drift, &r.Params.Volatility,
		&r.Params.PermImpact, &r.Params.TempImpact, &r.Params.RiskAversion, &r.Params.Seed, &r.Params.ActionMultipliers,
		&r.Hyper.Gamma, &r.Hyper.LR, &r.Hyper.BatchSize, &r.Hyper.MemorySize, &r.Hyper.Episodes,
		&r.Hyper.EpsilonStart, &r.Hyper.EpsilonEnd, &r.Hyper.EpsilonDecay, &r.Hyper.TargetUpdate, &r.Hyper.HiddenSize,
		&r.EpisodesRun, &r.Objective,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
