package domain

import (
	"errors"
	"fmt"
)

// Parameter validation errors.
var (
	// ErrInvalidParams is returned when a parameter fails construction-time validation.
	ErrInvalidParams = errors.New("invalid parameters")
)

// DefaultActionMultipliers are the discrete TWAP-rate multipliers available
// to the agent. Index i maps to a target quantity of multiplier_i * Q/T.
var DefaultActionMultipliers = []float64{0.0, 0.5, 1.0, 1.5, 2.0, 3.0, 5.0}

// SimulationParams describes one liquidation problem: the inventory, horizon,
// price dynamics, and market impact coefficients. Immutable per episode.
type SimulationParams struct {
	TotalShares  float64 // Q: shares to liquidate
	TimeHorizon  int     // T: discrete steps
	StartPrice   float64 // P0: initial fair mid-price
	Drift        float64 // mu: GBM drift per unit time
	Volatility   float64 // sigma: GBM volatility per unit time
	PermImpact   float64 // alpha: permanent impact per share
	TempImpact   float64 // beta: temporary impact per share
	RiskAversion float64 // lambda: inventory risk penalty weight
	Seed         int64   // base seed for the episode random streams

	// ActionMultipliers overrides DefaultActionMultipliers when non-empty.
	ActionMultipliers []float64
}

// Multipliers returns the effective action multiplier set.
func (p SimulationParams) Multipliers() []float64 {
	if len(p.ActionMultipliers) > 0 {
		return p.ActionMultipliers
	}
	return DefaultActionMultipliers
}

// Validate checks all simulation parameters once, at construction time.
func (p SimulationParams) Validate() error {
	if p.TotalShares <= 0 {
		return fmt.Errorf("%w: total shares must be positive, got %v", ErrInvalidParams, p.TotalShares)
	}
	if p.TimeHorizon <= 0 {
		return fmt.Errorf("%w: time horizon must be positive, got %d", ErrInvalidParams, p.TimeHorizon)
	}
	if p.StartPrice <= 0 {
		return fmt.Errorf("%w: start price must be positive, got %v", ErrInvalidParams, p.StartPrice)
	}
	if p.Volatility < 0 {
		return fmt.Errorf("%w: volatility cannot be negative, got %v", ErrInvalidParams, p.Volatility)
	}
	if p.PermImpact < 0 {
		return fmt.Errorf("%w: permanent impact cannot be negative, got %v", ErrInvalidParams, p.PermImpact)
	}
	if p.TempImpact < 0 {
		return fmt.Errorf("%w: temporary impact cannot be negative, got %v", ErrInvalidParams, p.TempImpact)
	}
	if p.RiskAversion < 0 {
		return fmt.Errorf("%w: risk aversion cannot be negative, got %v", ErrInvalidParams, p.RiskAversion)
	}
	if len(p.ActionMultipliers) > 0 {
		for i, m := range p.ActionMultipliers {
			if m < 0 {
				return fmt.Errorf("%w: action multiplier %d cannot be negative, got %v", ErrInvalidParams, i, m)
			}
		}
	}
	return nil
}

// Hyperparams bundles the RL hyperparameters consumed by the agent and the
// training loop.
type Hyperparams struct {
	Gamma        float64 // discount factor, (0, 1]
	LR           float64 // Adam learning rate
	BatchSize    int
	MemorySize   int // replay buffer capacity
	Episodes     int
	EpsilonStart float64
	EpsilonEnd   float64
	EpsilonDecay float64
	TargetUpdate int // episodes between target network syncs
	HiddenSize   int // units per hidden layer of the value network
}

// Validate checks all hyperparameters once, at construction time.
func (h Hyperparams) Validate() error {
	if h.Gamma <= 0 || h.Gamma > 1 {
		return fmt.Errorf("%w: gamma must be in (0, 1], got %v", ErrInvalidParams, h.Gamma)
	}
	if h.LR <= 0 {
		return fmt.Errorf("%w: learning rate must be positive, got %v", ErrInvalidParams, h.LR)
	}
	if h.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidParams, h.BatchSize)
	}
	if h.MemorySize <= 0 {
		return fmt.Errorf("%w: memory size must be positive, got %d", ErrInvalidParams, h.MemorySize)
	}
	if h.MemorySize < h.BatchSize {
		return fmt.Errorf("%w: memory size %d smaller than batch size %d", ErrInvalidParams, h.MemorySize, h.BatchSize)
	}
	if h.Episodes <= 0 {
		return fmt.Errorf("%w: episodes must be positive, got %d", ErrInvalidParams, h.Episodes)
	}
	if h.EpsilonStart < 0 || h.EpsilonStart > 1 {
		return fmt.Errorf("%w: epsilon start must be in [0, 1], got %v", ErrInvalidParams, h.EpsilonStart)
	}
	if h.EpsilonEnd < 0 || h.EpsilonEnd > 1 {
		return fmt.Errorf("%w: epsilon end must be in [0, 1], got %v", ErrInvalidParams, h.EpsilonEnd)
	}
	if h.EpsilonDecay <= 0 || h.EpsilonDecay > 1 {
		return fmt.Errorf("%w: epsilon decay must be in (0, 1], got %v", ErrInvalidParams, h.EpsilonDecay)
	}
	if h.TargetUpdate <= 0 {
		return fmt.Errorf("%w: target update interval must be positive, got %d", ErrInvalidParams, h.TargetUpdate)
	}
	if h.HiddenSize <= 0 {
		return fmt.Errorf("%w: hidden size must be positive, got %d", ErrInvalidParams, h.HiddenSize)
	}
	return nil
}
