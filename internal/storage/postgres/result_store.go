package postgres

import (
	"context"
	"fmt"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// EpisodeResultStore implements storage.EpisodeResultStore using PostgreSQL.
type EpisodeResultStore struct {
	pool *Pool
}

// NewEpisodeResultStore creates a new EpisodeResultStore.
func NewEpisodeResultStore(pool *Pool) *EpisodeResultStore {
	return &EpisodeResultStore{pool: pool}
}

var _ storage.EpisodeResultStore = (*EpisodeResultStore)(nil)

// InsertBulk adds results atomically within a transaction. Fails the whole
// batch on a duplicate (run_id, episode).
func (s *EpisodeResultStore) InsertBulk(ctx context.Context, results []*domain.EpisodeResult) error {
	if len(results) == 0 {
		return nil
	}
	for _, r := range results {
		if r == nil || r.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert episode results: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO episode_results (
			run_id, episode, seed, arrival_price,
			agent_revenue, twap_revenue, agent_shortfall, twap_shortfall,
			savings, savings_bps
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, r := range results {
		_, err := tx.Exec(ctx, query,
			r.RunID, r.Episode, r.Seed, r.ArrivalPrice,
			r.AgentRevenue, r.TWAPRevenue, r.AgentShortfall, r.TWAPShortfall,
			r.Savings, r.SavingsBps,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert episode result: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByRunID retrieves all results for a run, ordered by episode ASC.
func (s *EpisodeResultStore) GetByRunID(ctx context.Context, runID string) ([]*domain.EpisodeResult, error) {
	query := `
		SELECT run_id, episode, seed, arrival_price,
			agent_revenue, twap_revenue, agent_shortfall, twap_shortfall,
			savings, savings_bps
		FROM episode_results
		WHERE run_id = $1
		ORDER BY episode ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get episode results: %w", err)
	}
	defer rows.Close()

	var out []*domain.EpisodeResult
	for rows.Next() {
		var r domain.EpisodeResult
		err := rows.Scan(
			&r.RunID, &r.Episode, &r.Seed, &r.ArrivalPrice,
			&r.AgentRevenue, &r.TWAPRevenue, &r.AgentShortfall, &r.TWAPShortfall,
			&r.Savings, &r.SavingsBps,
		)
		if err != nil {
			return nil, fmt.Errorf("scan episode result: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
