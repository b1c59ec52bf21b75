package training

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage/memory"
)

func TestStoreRecorder_FlushPersistsAndClears(t *testing.T) {
	store := memory.NewScalarStore()
	rec := NewStoreRecorder(store)
	ctx := context.Background()

	rec.Record(&domain.ScalarPoint{RunID: "run-1", Episode: 0, Reward: 1})
	rec.Record(&domain.ScalarPoint{RunID: "run-1", Episode: 1, Reward: 2})

	// Nothing hits the store until Flush.
	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, rec.Flush(ctx))

	got, err = store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Reward)

	// Second flush is a no-op.
	require.NoError(t, rec.Flush(ctx))
	got, err = store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMultiRecorder_FansOut(t *testing.T) {
	a := &captureRecorder{}
	b := &captureRecorder{}
	rec := MultiRecorder{a, b}

	rec.Record(&domain.ScalarPoint{Episode: 3})

	require.Len(t, a.points, 1)
	require.Len(t, b.points, 1)
	assert.Equal(t, 3, a.points[0].Episode)
}
