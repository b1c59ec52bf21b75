package training

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

// LogRecorder writes each scalar point as a debug log line.
type LogRecorder struct {
	Log zerolog.Logger
}

func (r LogRecorder) Record(p *domain.ScalarPoint) {
	r.Log.Debug().
		Int("episode", p.Episode).
		Float64("reward", p.Reward).
		Float64("avg_loss", p.AvgLoss).
		Float64("epsilon", p.Epsilon).
		Msg("episode scalars")
}

// StoreRecorder buffers scalar points in memory so training never waits on
// the database, and writes them out in one bulk insert on Flush.
type StoreRecorder struct {
	store storage.ScalarStore

	mu     sync.Mutex
	points []*domain.ScalarPoint
}

// NewStoreRecorder creates a recorder backed by the given store.
func NewStoreRecorder(store storage.ScalarStore) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) Record(p *domain.ScalarPoint) {
	r.mu.Lock()
	r.points = append(r.points, p)
	r.mu.Unlock()
}

// Flush persists everything recorded so far and clears the buffer.
func (r *StoreRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	points := r.points
	r.points = nil
	r.mu.Unlock()

	if len(points) == 0 {
		return nil
	}
	return r.store.InsertBulk(ctx, points)
}
