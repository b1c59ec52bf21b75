// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"order-exec-lab/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Training metrics
	EpisodesTrained   prometheus.Counter
	StepsTaken        prometheus.Counter
	EpisodeReward     prometheus.Gauge
	EpisodeAvgLoss    prometheus.Gauge
	Epsilon           prometheus.Gauge
	ReplayBufferSize  prometheus.Gauge
	TargetSyncs       prometheus.Counter
	LearnLatency      prometheus.Histogram
	TrainingRunsTotal *prometheus.CounterVec

	// Evaluation metrics
	EpisodesEvaluated prometheus.Counter
	MeanSavingsBps    prometheus.Gauge
	WinRate           prometheus.Gauge

	// Tuning metrics
	TrialsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryErrors *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "order_exec_lab"
	}

	return &Metrics{
		// Training metrics
		EpisodesTrained: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "episodes_total",
			Help:      "Total number of training episodes completed",
		}),
		StepsTaken: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "steps_total",
			Help:      "Total number of environment steps taken",
		}),
		EpisodeReward: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "episode_reward",
			Help:      "Total reward of the most recent training episode",
		}),
		EpisodeAvgLoss: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "episode_avg_loss",
			Help:      "Mean TD loss of the most recent training episode",
		}),
		Epsilon: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "epsilon",
			Help:      "Current exploration rate",
		}),
		ReplayBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "replay_buffer_size",
			Help:      "Current number of transitions in the replay buffer",
		}),
		TargetSyncs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "target_syncs_total",
			Help:      "Total number of target network synchronizations",
		}),
		LearnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "learn_latency_seconds",
			Help:      "Batch learning step latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TrainingRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "runs_total",
			Help:      "Total number of training runs by outcome",
		}, []string{"status"}),

		// Evaluation metrics
		EpisodesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "episodes_total",
			Help:      "Total number of evaluation episodes run",
		}),
		MeanSavingsBps: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "mean_savings_bps",
			Help:      "Mean savings vs TWAP in basis points from the last evaluation",
		}),
		WinRate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "win_rate",
			Help:      "Fraction of evaluation episodes beating TWAP in the last evaluation",
		}),

		// Tuning metrics
		TrialsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tuning",
			Name:      "trials_total",
			Help:      "Total number of search trials by outcome",
		}, []string{"status"}),

		// Database metrics
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last run that finished cleanly",
		}),
	}
}

// Record implements the training scalar recorder against the gauges.
func (m *Metrics) Record(p *domain.ScalarPoint) {
	m.EpisodesTrained.Inc()
	m.EpisodeReward.Set(p.Reward)
	m.EpisodeAvgLoss.Set(p.AvgLoss)
	m.Epsilon.Set(p.Epsilon)
}

// RecordEvaluation publishes the headline aggregate numbers.
func (m *Metrics) RecordEvaluation(agg domain.EvaluationAggregate) {
	m.EpisodesEvaluated.Add(float64(agg.Episodes))
	m.MeanSavingsBps.Set(agg.MeanSavingsBps)
	m.WinRate.Set(agg.WinRate)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
