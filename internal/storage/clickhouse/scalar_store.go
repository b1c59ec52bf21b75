package clickhouse

import (
	"context"
	"fmt"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// ScalarStore implements storage.ScalarStore using ClickHouse.
type ScalarStore struct {
	conn *Conn
}

// NewScalarStore creates a new ScalarStore.
func NewScalarStore(conn *Conn) *ScalarStore {
	return &ScalarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScalarStore = (*ScalarStore)(nil)

// InsertBulk adds multiple scalar points in one batch.
func (s *ScalarStore) InsertBulk(ctx context.Context, points []*domain.ScalarPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO training_scalars (
			run_id, episode, reward, avg_loss, epsilon
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(p.RunID, uint32(p.Episode), p.Reward, p.AvgLoss, p.Epsilon)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all scalars for a run, ordered by episode ASC.
func (s *ScalarStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ScalarPoint, error) {
	query := `
		SELECT run_id, episode, reward, avg_loss, epsilon
		FROM training_scalars
		WHERE run_id = ?
		ORDER BY episode ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanScalars(rows)
}

func scanScalars(rows chRows) ([]*domain.ScalarPoint, error) {
	var points []*domain.ScalarPoint

	for rows.Next() {
		var p domain.ScalarPoint
		var episode uint32

		err := rows.Scan(&p.RunID, &episode, &p.Reward, &p.AvgLoss, &p.Epsilon)
		if err != nil {
			return nil, fmt.Errorf("scan scalar row: %w", err)
		}

		p.Episode = int(episode)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scalar rows: %w", err)
	}

	return points, nil
}
