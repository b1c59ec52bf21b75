package domain

import "time"

// Training run outcome states.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPruned    = "pruned"
)

// TrainingRun records one training invocation: the full parameter set it was
// launched with, and the outcome read back by the tuning layer.
type TrainingRun struct {
	RunID     string
	CreatedAt time.Time
	Status    string

	Params SimulationParams
	Hyper  Hyperparams

	EpisodesRun int
	Objective   float64 // mean evaluation savings, once evaluated
}

// Checkpoint is an opaque parameter blob keyed by component
// ("policy" or "target").
type Checkpoint struct {
	RunID     string
	Component string
	Blob      []byte
	CreatedAt time.Time
}

// Checkpoint component keys.
const (
	ComponentPolicy = "policy"
	ComponentTarget = "target"
)
