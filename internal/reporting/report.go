package reporting

import "time"

// Report summarizes all recorded training runs and their evaluations.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunCount    int

	// Training runs (sorted by creation time)
	Runs []RunRow

	// Evaluation aggregates, one per run that has episode results
	Evaluations []EvaluationRow
}

// RunRow represents one training run in the runs table.
type RunRow struct {
	RunID       string
	CreatedAt   time.Time
	Status      string
	EpisodesRun int
	Objective   float64

	// Headline hyperparameters
	LR        float64
	Gamma     float64
	BatchSize int
}

// EvaluationRow represents one run's evaluation aggregate.
type EvaluationRow struct {
	RunID            string
	Episodes         int
	MeanAgentIS      float64
	MeanTWAPIS       float64
	MeanSavings      float64
	MeanSavingsBps   float64
	WinRate          float64
	InformationRatio float64
	SavingsVaR95     float64
}
