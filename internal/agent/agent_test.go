package agent

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-exec-lab/internal/domain"
)

func testHyper() domain.Hyperparams {
	return domain.Hyperparams{
		Gamma:        0.99,
		LR:           1e-3,
		BatchSize:    8,
		MemorySize:   100,
		Episodes:     10,
		EpsilonStart: 1.0,
		EpsilonEnd:   0.01,
		EpsilonDecay: 0.995,
		TargetUpdate: 5,
		HiddenSize:   16,
	}
}

func newTestAgent(t *testing.T, seed int64) *Agent {
	t.Helper()
	a, err := New(rand.New(rand.NewSource(seed)), testHyper(), domain.ObservationDim, 7)
	require.NoError(t, err)
	return a
}

func transitionWith(action int, reward float64, done bool) domain.Transition {
	return domain.Transition{
		Obs:     []float64{1, 1, 0},
		Action:  action,
		Reward:  reward,
		NextObs: []float64{0.9, 0.8, 0.01},
		Done:    done,
	}
}

func TestNewRejectsInvalidHyperparams(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	h := testHyper()
	h.Gamma = 1.5
	_, err := New(rng, h, domain.ObservationDim, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	h = testHyper()
	h.MemorySize = -1
	_, err = New(rng, h, domain.ObservationDim, 7)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestActEpsilonExtremes(t *testing.T) {
	a := newTestAgent(t, 1)
	obs := []float64{1, 1, 0}

	// Epsilon zero is pure exploitation and therefore deterministic.
	first, err := a.Act(obs, 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := a.Act(obs, 0)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}

	// Epsilon one is pure exploration and must eventually cover the space.
	seen := make(map[int]bool)
	for i := 0; i < 500; i++ {
		got, err := a.Act(obs, 1)
		require.NoError(t, err)
		seen[got] = true
	}
	assert.Len(t, seen, a.NumActions())
}

func TestActRejectsBadObservation(t *testing.T) {
	a := newTestAgent(t, 1)
	_, err := a.Act([]float64{1}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLearnRejectsMalformedBatch(t *testing.T) {
	a := newTestAgent(t, 1)

	_, err := a.Learn(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := transitionWith(0, 1, false)
	bad.NextObs = []float64{1}
	_, err = a.Learn([]domain.Transition{bad})
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad = transitionWith(42, 1, false)
	_, err = a.Learn([]domain.Transition{bad})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTerminalTargetsEqualRewards(t *testing.T) {
	a := newTestAgent(t, 2)

	batch := []domain.Transition{
		transitionWith(0, 3.5, true),
		transitionWith(2, -1.25, true),
		transitionWith(6, 0, true),
	}
	targets, err := a.computeTargets(batch)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5, -1.25, 0}, targets, "terminal transitions bootstrap nothing")
}

func TestDoubleDQNTargetUsesTargetNetworkEvaluation(t *testing.T) {
	a := newTestAgent(t, 3)
	tr := transitionWith(1, 2.0, false)

	best, err := a.policy.Argmax(tr.NextObs)
	require.NoError(t, err)
	qNext, err := a.target.Forward(tr.NextObs)
	require.NoError(t, err)

	targets, err := a.computeTargets([]domain.Transition{tr})
	require.NoError(t, err)
	assert.InDelta(t, 2.0+0.99*qNext[best], targets[0], 1e-12)
}

func TestLearnUpdatesOnlyPolicy(t *testing.T) {
	a := newTestAgent(t, 4)
	probe := []float64{0.5, 0.5, 0}

	targetBefore, err := a.target.Forward(probe)
	require.NoError(t, err)
	policyBefore, err := a.policy.Forward(probe)
	require.NoError(t, err)

	batch := make([]domain.Transition, 8)
	for i := range batch {
		batch[i] = transitionWith(i%7, 5, i%2 == 0)
	}
	loss, err := a.Learn(batch)
	require.NoError(t, err)
	assert.Greater(t, loss, 0.0)

	targetAfter, err := a.target.Forward(probe)
	require.NoError(t, err)
	policyAfter, err := a.policy.Forward(probe)
	require.NoError(t, err)

	assert.Equal(t, targetBefore, targetAfter, "target parameters are never trained")
	assert.NotEqual(t, policyBefore, policyAfter, "policy must move")
}

func TestSyncTargetMatchesPolicyExactly(t *testing.T) {
	a := newTestAgent(t, 5)

	batch := make([]domain.Transition, 8)
	for i := range batch {
		batch[i] = transitionWith(i%7, float64(i), false)
	}
	for i := 0; i < 5; i++ {
		_, err := a.Learn(batch)
		require.NoError(t, err)
	}

	a.SyncTarget()
	for _, probe := range [][]float64{{1, 1, 0}, {0.2, 0.7, -0.05}, {0, 0, 0}} {
		qp, err := a.policy.Forward(probe)
		require.NoError(t, err)
		qt, err := a.target.Forward(probe)
		require.NoError(t, err)
		assert.Equal(t, qp, qt)
	}
}

func TestCheckpointRestoreRoundTrip(t *testing.T) {
	src := newTestAgent(t, 6)
	batch := make([]domain.Transition, 8)
	for i := range batch {
		batch[i] = transitionWith(i%7, float64(i), false)
	}
	_, err := src.Learn(batch)
	require.NoError(t, err)

	blobs, err := src.Checkpoint()
	require.NoError(t, err)
	require.Contains(t, blobs, domain.ComponentPolicy)
	require.Contains(t, blobs, domain.ComponentTarget)

	dst := newTestAgent(t, 7)
	require.NoError(t, dst.Restore(blobs))

	probe := []float64{0.4, 0.6, 0.01}
	wantP, err := src.policy.Forward(probe)
	require.NoError(t, err)
	gotP, err := dst.policy.Forward(probe)
	require.NoError(t, err)
	assert.Equal(t, wantP, gotP)

	err = dst.Restore(map[string][]byte{"optimizer": nil})
	assert.ErrorIs(t, err, ErrUnknownComponent)
}
