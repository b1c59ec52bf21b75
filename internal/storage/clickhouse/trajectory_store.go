package clickhouse

import (
	"context"
	"fmt"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// TrajectoryStore implements storage.TrajectoryStore using ClickHouse.
type TrajectoryStore struct {
	conn *Conn
}

// NewTrajectoryStore creates a new TrajectoryStore.
func NewTrajectoryStore(conn *Conn) *TrajectoryStore {
	return &TrajectoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TrajectoryStore = (*TrajectoryStore)(nil)

// InsertBulk adds multiple trajectory points in one batch.
func (s *TrajectoryStore) InsertBulk(ctx context.Context, points []*domain.TrajectoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trajectories (
			run_id, episode, controller, step, inventory, mid_price, executed
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.RunID, uint32(p.Episode), p.Controller, uint32(p.Step),
			p.Inventory, p.MidPrice, p.Executed,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByEpisode retrieves points for one (run, episode, controller), ordered by step ASC.
func (s *TrajectoryStore) GetByEpisode(ctx context.Context, runID string, episode int, controller string) ([]*domain.TrajectoryPoint, error) {
	query := `
		SELECT run_id, episode, controller, step, inventory, mid_price, executed
		FROM trajectories
		WHERE run_id = ? AND episode = ? AND controller = ?
		ORDER BY step ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, uint32(episode), controller)
	if err != nil {
		return nil, fmt.Errorf("query by episode: %w", err)
	}
	defer rows.Close()

	return scanTrajectories(rows)
}

func scanTrajectories(rows chRows) ([]*domain.TrajectoryPoint, error) {
	var points []*domain.TrajectoryPoint

	for rows.Next() {
		var p domain.TrajectoryPoint
		var episode, step uint32

		err := rows.Scan(
			&p.RunID, &episode, &p.Controller, &step,
			&p.Inventory, &p.MidPrice, &p.Executed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trajectory row: %w", err)
		}

		p.Episode = int(episode)
		p.Step = int(step)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trajectory rows: %w", err)
	}

	return points, nil
}
