package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-exec-lab/internal/domain"
)

func TestTrajectoryStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrajectoryStore(conn)
	ctx := context.Background()

	// Empty insert is a no-op
	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	points := []*domain.TrajectoryPoint{
		{RunID: "run-1", Episode: 0, Controller: domain.ControllerAgent, Step: 0, Inventory: 100, MidPrice: 50.0, Executed: 10},
		{RunID: "run-1", Episode: 0, Controller: domain.ControllerAgent, Step: 1, Inventory: 90, MidPrice: 49.8, Executed: 5},
	}

	err = store.InsertBulk(ctx, points)
	require.NoError(t, err)

	got, err := store.GetByEpisode(ctx, "run-1", 0, domain.ControllerAgent)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.Equal(t, 0, got[0].Step)
	assert.Equal(t, 100.0, got[0].Inventory)
	assert.Equal(t, 50.0, got[0].MidPrice)
	assert.Equal(t, 10.0, got[0].Executed)
	assert.Equal(t, 1, got[1].Step)
}

func TestTrajectoryStore_GetByEpisode_FiltersController(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrajectoryStore(conn)
	ctx := context.Background()

	points := []*domain.TrajectoryPoint{
		{RunID: "run-1", Episode: 3, Controller: domain.ControllerAgent, Step: 0, Inventory: 100, MidPrice: 50, Executed: 10},
		{RunID: "run-1", Episode: 3, Controller: domain.ControllerTWAP, Step: 0, Inventory: 100, MidPrice: 50, Executed: 12.5},
		{RunID: "run-1", Episode: 4, Controller: domain.ControllerAgent, Step: 0, Inventory: 100, MidPrice: 51, Executed: 8},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByEpisode(ctx, "run-1", 3, domain.ControllerTWAP)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ControllerTWAP, got[0].Controller)
	assert.Equal(t, 12.5, got[0].Executed)
}

func TestTrajectoryStore_GetByEpisode_Empty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrajectoryStore(conn)

	got, err := store.GetByEpisode(context.Background(), "missing", 0, domain.ControllerAgent)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTrajectoryStore_OrderedBySteps(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrajectoryStore(conn)
	ctx := context.Background()

	// Insert out of order
	points := []*domain.TrajectoryPoint{
		{RunID: "run-1", Episode: 0, Controller: domain.ControllerAgent, Step: 2, Inventory: 80, MidPrice: 49, Executed: 10},
		{RunID: "run-1", Episode: 0, Controller: domain.ControllerAgent, Step: 0, Inventory: 100, MidPrice: 50, Executed: 10},
		{RunID: "run-1", Episode: 0, Controller: domain.ControllerAgent, Step: 1, Inventory: 90, MidPrice: 49.5, Executed: 10},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByEpisode(ctx, "run-1", 0, domain.ControllerAgent)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, p := range got {
		assert.Equal(t, i, p.Step)
	}
}
