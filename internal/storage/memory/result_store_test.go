package memory

import (
	"context"
	"errors"
	"testing"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage"
)

func TestEpisodeResultStore_InsertBulkAndGet(t *testing.T) {
	store := NewEpisodeResultStore()
	ctx := context.Background()

	results := []*domain.EpisodeResult{
		{RunID: "run1", Episode: 1, Savings: 2.5},
		{RunID: "run1", Episode: 0, Savings: -1.0},
		{RunID: "run2", Episode: 0, Savings: 9.0},
	}
	if err := store.InsertBulk(ctx, results); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Episode != 0 || got[1].Episode != 1 {
		t.Errorf("results not ordered by episode: %d %d", got[0].Episode, got[1].Episode)
	}
}

func TestEpisodeResultStore_AtomicDuplicates(t *testing.T) {
	store := NewEpisodeResultStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.EpisodeResult{{RunID: "run1", Episode: 0}}); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.EpisodeResult{
		{RunID: "run1", Episode: 1},
		{RunID: "run1", Episode: 0}, // duplicate
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// The whole batch must have been rejected.
	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("batch was not atomic: %d results stored", len(got))
	}
}

func TestEpisodeResultStore_IntraBatchDuplicate(t *testing.T) {
	store := NewEpisodeResultStore()
	err := store.InsertBulk(context.Background(), []*domain.EpisodeResult{
		{RunID: "run1", Episode: 0},
		{RunID: "run1", Episode: 0},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}
