package domain

// Controller identifiers used in episode results and trajectories.
const (
	ControllerAgent = "agent"
	ControllerTWAP  = "twap"
)

// EpisodeResult captures one held-out evaluation episode: the agent and the
// TWAP baseline run over the identical price path (shared seed), with
// implementation shortfall computed for both.
type EpisodeResult struct {
	RunID   string
	Episode int
	Seed    int64

	ArrivalPrice float64

	AgentRevenue   float64
	TWAPRevenue    float64
	AgentShortfall float64 // arrival * Q - agent revenue
	TWAPShortfall  float64 // arrival * Q - twap revenue

	Savings    float64 // TWAPShortfall - AgentShortfall
	SavingsBps float64 // Savings / (arrival * Q) * 10_000
}

// EvaluationAggregate summarizes a batch of paired evaluation episodes.
type EvaluationAggregate struct {
	Episodes int

	MeanAgentShortfall float64
	MeanTWAPShortfall  float64

	MeanSavings      float64
	MeanSavingsBps   float64
	WinRate          float64 // fraction of episodes with savings > 0
	InformationRatio float64 // mean(savings) / sample stddev(savings)
	SavingsVaR95     float64 // 5th percentile of the savings distribution
}

// TrajectoryPoint is one step of a recorded evaluation episode, kept for
// external plotting.
type TrajectoryPoint struct {
	RunID      string
	Episode    int
	Controller string // ControllerAgent or ControllerTWAP
	Step       int
	Inventory  float64
	MidPrice   float64
	Executed   float64
}

// ScalarPoint is one per-episode training scalar emission.
type ScalarPoint struct {
	RunID   string
	Episode int
	Reward  float64
	AvgLoss float64
	Epsilon float64
}
