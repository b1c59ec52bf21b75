// Package tuning implements random hyperparameter search with median-based
// early pruning. The objective is the mean evaluation savings of a trained
// policy; higher is better.
package tuning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/idhash"
)

// Trial outcome states.
const (
	TrialCompleted = "completed"
	TrialPruned    = "pruned"
)

var (
	// ErrInvalidSpace reports a search space with empty or inverted ranges.
	ErrInvalidSpace = errors.New("tuning: invalid search space")

	// ErrNoTrials reports a search configured for zero trials.
	ErrNoTrials = errors.New("tuning: no trials configured")

	// ErrNoCompletedTrials reports a study where every trial was pruned
	// or failed, leaving nothing to pick a best from.
	ErrNoCompletedTrials = errors.New("tuning: no completed trials")
)

// SearchSpace bounds the sampled hyperparameters. Learning rate is sampled
// log-uniformly, gamma uniformly, batch size from the listed choices.
type SearchSpace struct {
	LRMin      float64 `yaml:"lr_min"`
	LRMax      float64 `yaml:"lr_max"`
	GammaMin   float64 `yaml:"gamma_min"`
	GammaMax   float64 `yaml:"gamma_max"`
	BatchSizes []int   `yaml:"batch_sizes"`
}

// Validate checks the space ranges.
func (s SearchSpace) Validate() error {
	if s.LRMin <= 0 || s.LRMax < s.LRMin {
		return fmt.Errorf("%w: lr range [%v, %v]", ErrInvalidSpace, s.LRMin, s.LRMax)
	}
	if s.GammaMin <= 0 || s.GammaMax > 1 || s.GammaMax < s.GammaMin {
		return fmt.Errorf("%w: gamma range [%v, %v]", ErrInvalidSpace, s.GammaMin, s.GammaMax)
	}
	if len(s.BatchSizes) == 0 {
		return fmt.Errorf("%w: no batch sizes", ErrInvalidSpace)
	}
	for _, b := range s.BatchSizes {
		if b <= 0 {
			return fmt.Errorf("%w: batch size %d", ErrInvalidSpace, b)
		}
	}
	return nil
}

// Sample draws one hyperparameter set from the space on top of base.
func (s SearchSpace) Sample(rng *rand.Rand, base domain.Hyperparams) domain.Hyperparams {
	h := base
	h.LR = math.Exp(rng.Float64()*(math.Log(s.LRMax)-math.Log(s.LRMin)) + math.Log(s.LRMin))
	h.Gamma = s.GammaMin + rng.Float64()*(s.GammaMax-s.GammaMin)
	h.BatchSize = s.BatchSizes[rng.Intn(len(s.BatchSizes))]
	return h
}

// ReportFunc lets a running trial report an intermediate objective; a true
// return tells the trial to stop and count as pruned.
type ReportFunc func(step int, value float64) bool

// TrialRunner trains and evaluates one candidate. It returns the final
// objective and whether the trial stopped early on a prune signal.
type TrialRunner func(ctx context.Context, trialID string, h domain.Hyperparams, report ReportFunc) (objective float64, pruned bool, err error)

// Trial is one search attempt and its outcome.
type Trial struct {
	ID        string
	Number    int
	Hyper     domain.Hyperparams
	Objective float64
	Status    string
}

// StudyResult is the outcome of a full search.
type StudyResult struct {
	Trials []Trial
	Best   Trial
}

// SearchConfig assembles a study.
type SearchConfig struct {
	StudyName     string
	Trials        int
	StartupTrials int
	Seed          int64
	Space         SearchSpace
	Base          domain.Hyperparams
	Logger        zerolog.Logger
}

// Search runs the configured number of trials sequentially and returns the
// best completed one. Pruned trials stay in the result with TrialPruned
// status; a trial error aborts the study.
func Search(ctx context.Context, cfg SearchConfig, run TrialRunner) (*StudyResult, error) {
	if cfg.Trials <= 0 {
		return nil, ErrNoTrials
	}
	if err := cfg.Space.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Base.Validate(); err != nil {
		return nil, fmt.Errorf("tuning base hyperparams: %w", err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	pruner := NewMedianPruner(cfg.StartupTrials)
	res := &StudyResult{Trials: make([]Trial, 0, cfg.Trials)}

	for number := 0; number < cfg.Trials; number++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trial := Trial{
			ID:     idhash.ComputeTrialID(cfg.StudyName, number),
			Number: number,
			Hyper:  cfg.Space.Sample(rng, cfg.Base),
		}

		report := func(step int, value float64) bool {
			prune := pruner.ShouldPrune(step, value)
			pruner.Report(step, value)
			return prune
		}

		objective, pruned, err := run(ctx, trial.ID, trial.Hyper, report)
		pruner.TrialFinished()
		if err != nil {
			return nil, fmt.Errorf("trial %d (%s): %w", number, trial.ID, err)
		}

		trial.Objective = objective
		trial.Status = TrialCompleted
		if pruned {
			trial.Status = TrialPruned
		}
		res.Trials = append(res.Trials, trial)

		cfg.Logger.Info().
			Int("trial", number).
			Str("trial_id", trial.ID).
			Str("status", trial.Status).
			Float64("objective", objective).
			Float64("lr", trial.Hyper.LR).
			Float64("gamma", trial.Hyper.Gamma).
			Int("batch_size", trial.Hyper.BatchSize).
			Msg("trial finished")
	}

	best, err := bestTrial(res.Trials)
	if err != nil {
		return nil, err
	}
	res.Best = best
	return res, nil
}

func bestTrial(trials []Trial) (Trial, error) {
	var best Trial
	found := false
	for _, tr := range trials {
		if tr.Status != TrialCompleted {
			continue
		}
		if !found || tr.Objective > best.Objective {
			best = tr
			found = true
		}
	}
	if !found {
		return Trial{}, ErrNoCompletedTrials
	}
	return best, nil
}

// bestParamsFile is the YAML shape persisted after a study.
type bestParamsFile struct {
	StudyName string  `yaml:"study_name"`
	TrialID   string  `yaml:"trial_id"`
	Objective float64 `yaml:"objective"`
	LR        float64 `yaml:"lr"`
	Gamma     float64 `yaml:"gamma"`
	BatchSize int     `yaml:"batch_size"`
}

// SaveBest writes the best trial's sampled parameters to a YAML file.
func SaveBest(path, studyName string, best Trial) error {
	out := bestParamsFile{
		StudyName: studyName,
		TrialID:   best.ID,
		Objective: best.Objective,
		LR:        best.Hyper.LR,
		Gamma:     best.Hyper.Gamma,
		BatchSize: best.Hyper.BatchSize,
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal best params: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write best params: %w", err)
	}
	return nil
}
