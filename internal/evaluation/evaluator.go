// Package evaluation measures a trained policy against a TWAP baseline on
// held-out price paths and aggregates implementation-shortfall statistics.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"order-exec-lab/internal/agent"
	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/simulation"
)

var (
	// ErrArrivalMismatch reports paired runs starting from different
	// arrival prices, which would invalidate the shortfall comparison.
	ErrArrivalMismatch = errors.New("evaluation: paired runs have different arrival prices")

	// ErrNoEpisodes reports an evaluation over zero episodes.
	ErrNoEpisodes = errors.New("evaluation: no episodes")
)

// Config assembles an evaluator.
type Config struct {
	RunID string

	// Episodes is the number of held-out episodes. Each episode fixes one
	// seed shared by the greedy agent run and the TWAP run, so both face
	// the identical price path.
	Episodes int

	// Seed bases the per-episode seeds. Episode i uses Seed+i. Held-out
	// evaluation should base this outside the training seed range.
	Seed int64

	Logger zerolog.Logger
}

// Outcome bundles everything one evaluation produces.
type Outcome struct {
	Results      []*domain.EpisodeResult
	Aggregate    domain.EvaluationAggregate
	Trajectories []*domain.TrajectoryPoint
}

// Evaluator runs paired agent-vs-TWAP episodes.
type Evaluator struct {
	env   *simulation.Environment
	agent *agent.Agent
	cfg   Config
}

// New wires an evaluator.
func New(env *simulation.Environment, ag *agent.Agent, cfg Config) (*Evaluator, error) {
	if env == nil || ag == nil {
		return nil, errors.New("evaluation: nil collaborator")
	}
	if cfg.Episodes <= 0 {
		return nil, ErrNoEpisodes
	}
	return &Evaluator{env: env, agent: ag, cfg: cfg}, nil
}

// Run evaluates the policy greedily over the configured episodes. The
// context is checked between episodes.
func (ev *Evaluator) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{Results: make([]*domain.EpisodeResult, 0, ev.cfg.Episodes)}
	totalShares := ev.env.TotalShares()

	for episode := 0; episode < ev.cfg.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seed := ev.cfg.Seed + int64(episode)

		agentRun, err := ev.playEpisode(episode, seed, domain.ControllerAgent)
		if err != nil {
			return nil, fmt.Errorf("agent episode %d: %w", episode, err)
		}
		twapRun, err := ev.playEpisode(episode, seed, domain.ControllerTWAP)
		if err != nil {
			return nil, fmt.Errorf("twap episode %d: %w", episode, err)
		}

		if agentRun.arrival != twapRun.arrival {
			return nil, ErrArrivalMismatch
		}
		arrival := agentRun.arrival

		r := &domain.EpisodeResult{
			RunID:          ev.cfg.RunID,
			Episode:        episode,
			Seed:           seed,
			ArrivalPrice:   arrival,
			AgentRevenue:   agentRun.revenue,
			TWAPRevenue:    twapRun.revenue,
			AgentShortfall: arrival*totalShares - agentRun.revenue,
			TWAPShortfall:  arrival*totalShares - twapRun.revenue,
		}
		r.Savings = r.TWAPShortfall - r.AgentShortfall
		r.SavingsBps = r.Savings / (arrival * totalShares) * 1e4

		out.Results = append(out.Results, r)
		out.Trajectories = append(out.Trajectories, agentRun.trajectory...)
		out.Trajectories = append(out.Trajectories, twapRun.trajectory...)

		ev.cfg.Logger.Debug().
			Int("episode", episode).
			Float64("savings", r.Savings).
			Float64("savings_bps", r.SavingsBps).
			Msg("evaluation episode")
	}

	out.Aggregate = Aggregate(out.Results)
	return out, nil
}

// episodeRun is the raw outcome of a single-controller episode.
type episodeRun struct {
	arrival    float64
	revenue    float64
	trajectory []*domain.TrajectoryPoint
}

func (ev *Evaluator) playEpisode(episode int, seed int64, controller string) (*episodeRun, error) {
	obs := ev.env.Reset(seed)
	run := &episodeRun{arrival: ev.env.MidPrice()}

	twapAction := ev.env.TWAPAction()

	for step := 0; ; step++ {
		var action int
		if controller == domain.ControllerTWAP {
			action = twapAction
		} else {
			var err error
			action, err = ev.agent.ActGreedy(obs)
			if err != nil {
				return nil, fmt.Errorf("act greedy: %w", err)
			}
		}

		next, _, done, info, err := ev.env.Step(action)
		if err != nil {
			return nil, fmt.Errorf("step: %w", err)
		}
		run.revenue += info.Revenue

		run.trajectory = append(run.trajectory, &domain.TrajectoryPoint{
			RunID:      ev.cfg.RunID,
			Episode:    episode,
			Controller: controller,
			Step:       step,
			Inventory:  ev.env.Inventory(),
			MidPrice:   info.MidPrice,
			Executed:   info.SharesSold,
		})

		if done {
			return run, nil
		}
		obs = next
	}
}

// Aggregate summarizes per-episode results. An empty slice yields a zero
// aggregate.
func Aggregate(results []*domain.EpisodeResult) domain.EvaluationAggregate {
	n := len(results)
	if n == 0 {
		return domain.EvaluationAggregate{}
	}

	agentIS := make([]float64, n)
	twapIS := make([]float64, n)
	savings := make([]float64, n)
	savingsBps := make([]float64, n)
	wins := 0

	for i, r := range results {
		agentIS[i] = r.AgentShortfall
		twapIS[i] = r.TWAPShortfall
		savings[i] = r.Savings
		savingsBps[i] = r.SavingsBps
		if r.Savings > 0 {
			wins++
		}
	}

	agg := domain.EvaluationAggregate{
		Episodes:           n,
		MeanAgentShortfall: stat.Mean(agentIS, nil),
		MeanTWAPShortfall:  stat.Mean(twapIS, nil),
		MeanSavings:        stat.Mean(savings, nil),
		MeanSavingsBps:     stat.Mean(savingsBps, nil),
		WinRate:            float64(wins) / float64(n),
	}

	if n > 1 {
		sd := stat.StdDev(savings, nil)
		if sd > 0 {
			agg.InformationRatio = agg.MeanSavings / sd
		}
	}

	sorted := append([]float64(nil), savings...)
	sort.Float64s(sorted)
	agg.SavingsVaR95 = stat.Quantile(0.05, stat.LinInterp, sorted, nil)

	return agg
}
