// Package training runs the episodic Double-DQN training loop: stepping the
// environment under an epsilon-greedy policy, filling the replay buffer,
// learning on sampled batches, and decaying exploration between episodes.
package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"order-exec-lab/internal/agent"
	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/replay"
	"order-exec-lab/internal/simulation"
)

// logEvery is the episode interval for info-level progress logs.
const logEvery = 50

// Recorder receives per-episode training scalars. Implementations must not
// block: the loop calls Record synchronously between episodes.
type Recorder interface {
	Record(p *domain.ScalarPoint)
}

// NopRecorder discards all scalars.
type NopRecorder struct{}

func (NopRecorder) Record(*domain.ScalarPoint) {}

// MultiRecorder fans out to several recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(p *domain.ScalarPoint) {
	for _, r := range m {
		r.Record(p)
	}
}

// PruneHook is consulted between episodes. It receives the 1-based count of
// completed episodes and the mean episode reward since the previous call;
// returning true stops training with a Pruned outcome.
type PruneHook func(episodesDone int, meanReward float64) bool

// Config assembles a training loop.
type Config struct {
	RunID string
	Hyper domain.Hyperparams

	// Seed bases the per-episode environment seeds. Episode i resets the
	// environment with Seed+i.
	Seed int64

	Recorder Recorder

	// PruneEvery is the episode interval between PruneHook calls; zero
	// disables pruning.
	PruneEvery int
	PruneHook  PruneHook

	Logger zerolog.Logger
}

// Result is the outcome of a training run.
type Result struct {
	EpisodeRewards []float64
	EpisodesRun    int
	Pruned         bool
	FinalEpsilon   float64
}

// Loop drives one training run to completion.
type Loop struct {
	env    *simulation.Environment
	agent  *agent.Agent
	buffer *replay.Buffer
	rng    *rand.Rand
	cfg    Config
}

// NewLoop validates the configuration and wires the loop. The rng is used
// for replay sampling only; exploration noise lives inside the agent and the
// price process inside the environment.
func NewLoop(env *simulation.Environment, ag *agent.Agent, buf *replay.Buffer, rng *rand.Rand, cfg Config) (*Loop, error) {
	if env == nil || ag == nil || buf == nil || rng == nil {
		return nil, errors.New("training: nil collaborator")
	}
	if err := cfg.Hyper.Validate(); err != nil {
		return nil, fmt.Errorf("training config: %w", err)
	}
	if cfg.PruneEvery < 0 {
		return nil, errors.New("training config: negative prune interval")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	return &Loop{env: env, agent: ag, buffer: buf, rng: rng, cfg: cfg}, nil
}

// Run trains for the configured number of episodes, or until the context is
// cancelled or the prune hook fires. Cancellation and pruning both take
// effect between episodes, never mid-episode.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	h := l.cfg.Hyper
	epsilon := h.EpsilonStart

	res := &Result{EpisodeRewards: make([]float64, 0, h.Episodes)}
	var windowSum float64
	var windowN int

	for episode := 0; episode < h.Episodes; episode++ {
		if err := ctx.Err(); err != nil {
			res.FinalEpsilon = epsilon
			return res, err
		}

		reward, avgLoss, err := l.runEpisode(episode, epsilon)
		if err != nil {
			res.FinalEpsilon = epsilon
			return res, fmt.Errorf("episode %d: %w", episode, err)
		}

		res.EpisodeRewards = append(res.EpisodeRewards, reward)
		res.EpisodesRun++
		windowSum += reward
		windowN++

		l.cfg.Recorder.Record(&domain.ScalarPoint{
			RunID:   l.cfg.RunID,
			Episode: episode,
			Reward:  reward,
			AvgLoss: avgLoss,
			Epsilon: epsilon,
		})

		if (episode+1)%logEvery == 0 {
			l.cfg.Logger.Info().
				Int("episode", episode+1).
				Float64("reward", reward).
				Float64("avg_loss", avgLoss).
				Float64("epsilon", epsilon).
				Msg("training progress")
		}

		epsilon = decayEpsilon(epsilon, h)

		if (episode+1)%h.TargetUpdate == 0 {
			l.agent.SyncTarget()
		}

		if l.cfg.PruneEvery > 0 && l.cfg.PruneHook != nil && (episode+1)%l.cfg.PruneEvery == 0 {
			mean := windowSum / float64(windowN)
			windowSum, windowN = 0, 0
			if l.cfg.PruneHook(episode+1, mean) {
				l.cfg.Logger.Info().Int("episode", episode+1).Msg("training pruned")
				res.Pruned = true
				res.FinalEpsilon = epsilon
				return res, nil
			}
		}
	}

	res.FinalEpsilon = epsilon
	return res, nil
}

// runEpisode plays one full episode and returns its total reward and the
// mean learn loss over the steps that actually learned.
func (l *Loop) runEpisode(episode int, epsilon float64) (float64, float64, error) {
	obs := l.env.Reset(l.cfg.Seed + int64(episode))

	var total float64
	var lossSum float64
	var lossN int

	for {
		action, err := l.agent.Act(obs, epsilon)
		if err != nil {
			return 0, 0, fmt.Errorf("act: %w", err)
		}

		next, reward, done, _, err := l.env.Step(action)
		if err != nil {
			return 0, 0, fmt.Errorf("step: %w", err)
		}
		total += reward

		l.buffer.Push(domain.Transition{
			Obs:     obs,
			Action:  action,
			Reward:  reward,
			NextObs: next,
			Done:    done,
		})

		loss, err := l.learn()
		if err != nil {
			return 0, 0, err
		}
		if loss >= 0 {
			lossSum += loss
			lossN++
		}

		if done {
			break
		}
		obs = next
	}

	avgLoss := 0.0
	if lossN > 0 {
		avgLoss = lossSum / float64(lossN)
	}
	return total, avgLoss, nil
}

// learn samples a batch and updates the policy network. Returns -1 when the
// buffer is still warming up, which is not an error.
func (l *Loop) learn() (float64, error) {
	batch, err := l.buffer.Sample(l.rng, l.cfg.Hyper.BatchSize)
	if err != nil {
		if errors.Is(err, replay.ErrInsufficientData) {
			return -1, nil
		}
		return 0, fmt.Errorf("sample replay: %w", err)
	}

	loss, err := l.agent.Learn(batch)
	if err != nil {
		return 0, fmt.Errorf("learn: %w", err)
	}
	return loss, nil
}

func decayEpsilon(epsilon float64, h domain.Hyperparams) float64 {
	next := epsilon * h.EpsilonDecay
	if next < h.EpsilonEnd {
		return h.EpsilonEnd
	}
	return next
}
