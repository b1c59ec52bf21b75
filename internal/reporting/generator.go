package reporting

import (
	"context"
	"time"

	"order-exec-lab/internal/evaluation"
	"order-exec-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	runStore    storage.TrainingRunStore
	resultStore storage.EpisodeResultStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.TrainingRunStore, resultStore storage.EpisodeResultStore) *Generator {
	return &Generator{
		runStore:    runStore,
		resultStore: resultStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report covering every recorded run. Runs without
// episode results appear in the runs table but not in the evaluations table.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	runs, err := g.runStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		GeneratedAt: g.now(),
		RunCount:    len(runs),
	}

	for _, run := range runs {
		report.Runs = append(report.Runs, RunRow{
			RunID:       run.RunID,
			CreatedAt:   run.CreatedAt,
			Status:      run.Status,
			EpisodesRun: run.EpisodesRun,
			Objective:   run.Objective,
			LR:          run.Hyper.LR,
			Gamma:       run.Hyper.Gamma,
			BatchSize:   run.Hyper.BatchSize,
		})

		results, err := g.resultStore.GetByRunID(ctx, run.RunID)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			continue
		}

		agg := evaluation.Aggregate(results)
		report.Evaluations = append(report.Evaluations, EvaluationRow{
			RunID:            run.RunID,
			Episodes:         agg.Episodes,
			MeanAgentIS:      agg.MeanAgentShortfall,
			MeanTWAPIS:       agg.MeanTWAPShortfall,
			MeanSavings:      agg.MeanSavings,
			MeanSavingsBps:   agg.MeanSavingsBps,
			WinRate:          agg.WinRate,
			InformationRatio: agg.InformationRatio,
			SavingsVaR95:     agg.SavingsVaR95,
		})
	}

	return report, nil
}
