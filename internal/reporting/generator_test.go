package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/storage/memory"
)

var fixedClock = func() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func seedRun(t *testing.T, store *memory.TrainingRunStore, runID string, createdAt time.Time) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.TrainingRun{
		RunID:       runID,
		CreatedAt:   createdAt,
		Status:      domain.RunStatusCompleted,
		EpisodesRun: 500,
		Objective:   12.5,
		Hyper: domain.Hyperparams{
			Gamma: 0.99, LR: 1e-3, BatchSize: 32, MemorySize: 1000, Episodes: 500,
			EpsilonStart: 1, EpsilonEnd: 0.05, EpsilonDecay: 0.995, TargetUpdate: 10, HiddenSize: 64,
		},
	})
	require.NoError(t, err)
}

func TestGenerator_Generate(t *testing.T) {
	runs := memory.NewTrainingRunStore()
	results := memory.NewEpisodeResultStore()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	seedRun(t, runs, "run-a", base)
	seedRun(t, runs, "run-b", base.Add(time.Hour))

	// Only run-a has evaluation results.
	err := results.InsertBulk(context.Background(), []*domain.EpisodeResult{
		{RunID: "run-a", Episode: 0, ArrivalPrice: 50, AgentShortfall: 40, TWAPShortfall: 50, Savings: 10, SavingsBps: 20},
		{RunID: "run-a", Episode: 1, ArrivalPrice: 50, AgentShortfall: 60, TWAPShortfall: 50, Savings: -10, SavingsBps: -20},
	})
	require.NoError(t, err)

	gen := NewGenerator(runs, results).WithClock(fixedClock)
	report, err := gen.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fixedClock(), report.GeneratedAt)
	assert.Equal(t, 2, report.RunCount)
	require.Len(t, report.Runs, 2)
	assert.Equal(t, "run-a", report.Runs[0].RunID)
	assert.Equal(t, "run-b", report.Runs[1].RunID)
	assert.Equal(t, 500, report.Runs[0].EpisodesRun)
	assert.Equal(t, 1e-3, report.Runs[0].LR)

	require.Len(t, report.Evaluations, 1)
	ev := report.Evaluations[0]
	assert.Equal(t, "run-a", ev.RunID)
	assert.Equal(t, 2, ev.Episodes)
	assert.InDelta(t, 0.0, ev.MeanSavings, 1e-9)
	assert.InDelta(t, 0.5, ev.WinRate, 1e-9)
	assert.InDelta(t, 50.0, ev.MeanAgentIS, 1e-9)
	assert.InDelta(t, 50.0, ev.MeanTWAPIS, 1e-9)
}

func TestGenerator_Generate_Empty(t *testing.T) {
	gen := NewGenerator(memory.NewTrainingRunStore(), memory.NewEpisodeResultStore()).WithClock(fixedClock)

	report, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.RunCount)
	assert.Empty(t, report.Runs)
	assert.Empty(t, report.Evaluations)
}

func TestRenderMarkdown(t *testing.T) {
	report := &Report{
		GeneratedAt: fixedClock(),
		RunCount:    1,
		Runs: []RunRow{{
			RunID: "run-a", CreatedAt: fixedClock(), Status: "completed",
			EpisodesRun: 500, Objective: 12.5, LR: 1e-3, Gamma: 0.99, BatchSize: 32,
		}},
		Evaluations: []EvaluationRow{{
			RunID: "run-a", Episodes: 100, MeanAgentIS: 40, MeanTWAPIS: 50,
			MeanSavings: 10, MeanSavingsBps: 20, WinRate: 0.8, InformationRatio: 1.2, SavingsVaR95: -5,
		}},
	}

	md := RenderMarkdown(report)
	assert.Contains(t, md, "# Execution Training Report")
	assert.Contains(t, md, "Generated: 2025-06-01T12:00:00Z")
	assert.Contains(t, md, "## Training Runs")
	assert.Contains(t, md, "run-a")
	assert.Contains(t, md, "## Evaluation vs TWAP")
	assert.Contains(t, md, "0.8000")
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&Report{GeneratedAt: fixedClock()})
	assert.Contains(t, md, "No training runs recorded.")
	assert.Contains(t, md, "No evaluations recorded.")
}

func TestRenderCSV(t *testing.T) {
	rows := []EvaluationRow{
		{RunID: "run-a", Episodes: 100, MeanAgentIS: 40, MeanTWAPIS: 50, MeanSavings: 10, MeanSavingsBps: 20, WinRate: 0.8, InformationRatio: 1.2, SavingsVaR95: -5},
		{RunID: "run-b", Episodes: 50, MeanSavings: -2},
	}

	csv := RenderCSV(rows)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "run_id,episodes,mean_agent_is,mean_twap_is,mean_savings,mean_savings_bps,win_rate,information_ratio,savings_var95", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "run-a,100,40.000000,50.000000,10.000000,20.000000,0.800000,1.200000,-5.000000"))
	assert.True(t, strings.HasPrefix(lines[2], "run-b,50,"))
}
