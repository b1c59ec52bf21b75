package evaluation

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-exec-lab/internal/agent"
	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/simulation"
)

func testParams() domain.SimulationParams {
	return domain.SimulationParams{
		TotalShares:       100,
		TimeHorizon:       10,
		StartPrice:        50,
		Drift:             0.0,
		Volatility:        0.05,
		PermImpact:        0.001,
		TempImpact:        0.002,
		RiskAversion:      0.1,
		Seed:              7,
		ActionMultipliers: domain.DefaultActionMultipliers,
	}
}

func testHyper() domain.Hyperparams {
	return domain.Hyperparams{
		Gamma:        0.99,
		LR:           1e-3,
		BatchSize:    8,
		MemorySize:   256,
		Episodes:     6,
		EpsilonStart: 1.0,
		EpsilonEnd:   0.1,
		EpsilonDecay: 0.9,
		TargetUpdate: 2,
		HiddenSize:   8,
	}
}

func newTestEvaluator(t *testing.T, p domain.SimulationParams, cfg Config) *Evaluator {
	t.Helper()

	env, err := simulation.NewEnvironment(p)
	require.NoError(t, err)

	ag, err := agent.New(rand.New(rand.NewSource(1)), testHyper(), domain.ObservationDim, env.NumActions())
	require.NoError(t, err)

	ev, err := New(env, ag, cfg)
	require.NoError(t, err)
	return ev
}

func TestNew_Validation(t *testing.T) {
	env, err := simulation.NewEnvironment(testParams())
	require.NoError(t, err)

	ag, err := agent.New(rand.New(rand.NewSource(1)), testHyper(), domain.ObservationDim, env.NumActions())
	require.NoError(t, err)

	_, err = New(nil, ag, Config{Episodes: 1})
	assert.Error(t, err)

	_, err = New(env, nil, Config{Episodes: 1})
	assert.Error(t, err)

	_, err = New(env, ag, Config{Episodes: 0})
	assert.ErrorIs(t, err, ErrNoEpisodes)
}

func TestEvaluator_Run_PairedEpisodes(t *testing.T) {
	p := testParams()
	ev := newTestEvaluator(t, p, Config{RunID: "run-1", Episodes: 5, Seed: 9000, Logger: zerolog.Nop()})

	out, err := ev.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Results, 5)

	for i, r := range out.Results {
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, i, r.Episode)
		assert.Equal(t, int64(9000+i), r.Seed)

		// Both controllers start from the same arrival price.
		assert.Equal(t, p.StartPrice, r.ArrivalPrice)

		notional := r.ArrivalPrice * p.TotalShares
		assert.InDelta(t, notional-r.AgentRevenue, r.AgentShortfall, 1e-9)
		assert.InDelta(t, notional-r.TWAPRevenue, r.TWAPShortfall, 1e-9)
		assert.InDelta(t, r.TWAPShortfall-r.AgentShortfall, r.Savings, 1e-9)
		assert.InDelta(t, r.Savings/notional*1e4, r.SavingsBps, 1e-9)
	}
	assert.Equal(t, 5, out.Aggregate.Episodes)
}

func TestEvaluator_Run_FrictionlessMarketHasZeroShortfall(t *testing.T) {
	p := testParams()
	p.Volatility = 0
	p.PermImpact = 0
	p.TempImpact = 0

	ev := newTestEvaluator(t, p, Config{RunID: "run-1", Episodes: 3, Seed: 9000, Logger: zerolog.Nop()})

	out, err := ev.Run(context.Background())
	require.NoError(t, err)

	// Constant price and no impact: every schedule realizes the arrival
	// notional exactly.
	for _, r := range out.Results {
		assert.InDelta(t, 0, r.AgentShortfall, 1e-6)
		assert.InDelta(t, 0, r.TWAPShortfall, 1e-6)
		assert.InDelta(t, 0, r.Savings, 1e-6)
	}
}

func TestEvaluator_Run_Trajectories(t *testing.T) {
	p := testParams()
	ev := newTestEvaluator(t, p, Config{RunID: "run-1", Episodes: 2, Seed: 9000, Logger: zerolog.Nop()})

	out, err := ev.Run(context.Background())
	require.NoError(t, err)

	// Two controllers, full horizon each, every episode.
	assert.Len(t, out.Trajectories, 2*2*p.TimeHorizon)

	byKey := make(map[string][]*domain.TrajectoryPoint)
	for _, tp := range out.Trajectories {
		assert.Equal(t, "run-1", tp.RunID)
		byKey[tp.Controller] = append(byKey[tp.Controller], tp)
	}
	require.Len(t, byKey[domain.ControllerAgent], 2*p.TimeHorizon)
	require.Len(t, byKey[domain.ControllerTWAP], 2*p.TimeHorizon)

	// TWAP sells at the even rate every step, so inventory steps down
	// linearly and is exhausted at the horizon.
	rate := p.TotalShares / float64(p.TimeHorizon)
	for _, tp := range byKey[domain.ControllerTWAP] {
		assert.InDelta(t, rate, tp.Executed, 1e-9)
		want := p.TotalShares - rate*float64(tp.Step+1)
		assert.InDelta(t, want, tp.Inventory, 1e-9)
	}
}

func TestEvaluator_Run_Deterministic(t *testing.T) {
	run := func() []*domain.EpisodeResult {
		ev := newTestEvaluator(t, testParams(), Config{RunID: "run-1", Episodes: 3, Seed: 42, Logger: zerolog.Nop()})
		out, err := ev.Run(context.Background())
		require.NoError(t, err)
		return out.Results
	}

	a, b := run(), run()
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].AgentRevenue, b[i].AgentRevenue)
		assert.Equal(t, a[i].TWAPRevenue, b[i].TWAPRevenue)
	}
}

func TestEvaluator_Run_ContextCancelled(t *testing.T) {
	ev := newTestEvaluator(t, testParams(), Config{Episodes: 3, Seed: 42, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ev.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAggregate_HandChecked(t *testing.T) {
	mk := func(savings float64) *domain.EpisodeResult {
		return &domain.EpisodeResult{
			ArrivalPrice:   50,
			AgentShortfall: 100 - savings,
			TWAPShortfall:  100,
			Savings:        savings,
			SavingsBps:     savings / 5000 * 1e4,
		}
	}
	results := []*domain.EpisodeResult{mk(-10), mk(10), mk(20), mk(30)}

	agg := Aggregate(results)

	assert.Equal(t, 4, agg.Episodes)
	assert.InDelta(t, 12.5, agg.MeanSavings, 1e-9)
	assert.InDelta(t, 100.0, agg.MeanTWAPShortfall, 1e-9)
	assert.InDelta(t, 87.5, agg.MeanAgentShortfall, 1e-9)
	assert.InDelta(t, 0.75, agg.WinRate, 1e-9)
	assert.InDelta(t, 25.0, agg.MeanSavingsBps, 1e-9)

	// Sample stddev of {-10,10,20,30} is sqrt(875/3).
	sd := math.Sqrt(875.0 / 3.0)
	assert.InDelta(t, 12.5/sd, agg.InformationRatio, 1e-9)

	// 5th percentile of four points sits at the minimum.
	assert.InDelta(t, -10.0, agg.SavingsVaR95, 1e-9)
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(nil)
	assert.Equal(t, domain.EvaluationAggregate{}, agg)
}

func TestAggregate_SingleEpisode(t *testing.T) {
	agg := Aggregate([]*domain.EpisodeResult{{Savings: 5, TWAPShortfall: 10, AgentShortfall: 5}})
	assert.Equal(t, 1, agg.Episodes)
	assert.InDelta(t, 5.0, agg.MeanSavings, 1e-9)
	// Information ratio is undefined for one sample.
	assert.Equal(t, 0.0, agg.InformationRatio)
	assert.InDelta(t, 5.0, agg.SavingsVaR95, 1e-9)
}
