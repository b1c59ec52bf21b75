package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"order-exec-lab/internal/domain"
)

// Environment errors.
var (
	// ErrNotRunning is returned when Step is called before Reset or after
	// the episode finished.
	ErrNotRunning = errors.New("environment is not running: call Reset first")

	// ErrInvalidAction is returned for an action index outside the
	// multiplier set.
	ErrInvalidAction = errors.New("invalid action index")
)

type envState int

const (
	stateReady envState = iota
	stateRunning
	stateDone
)

// StepInfo carries raw execution data for downstream shortfall accounting.
type StepInfo struct {
	SharesSold float64
	ExecPrice  float64
	Revenue    float64
	MidPrice   float64 // fair mid after the step
}

// Environment is the finite-horizon MDP wrapper around the simulator.
// One instance drives one episode at a time: Reset -> Step* -> done.
// Not safe for concurrent use; independent training runs each get their own
// instance and random stream.
type Environment struct {
	params      domain.SimulationParams
	sim         *Simulator
	multipliers []float64
	twapRate    float64 // Q / T

	state     envState
	rng       *rand.Rand
	t         int
	inventory float64
	mid       float64
	prevMid   float64
}

// NewEnvironment validates parameters and builds an environment in the Ready
// state. Step before Reset fails with ErrNotRunning.
func NewEnvironment(p domain.SimulationParams) (*Environment, error) {
	sim, err := NewSimulator(p)
	if err != nil {
		return nil, err
	}
	return &Environment{
		params:      p,
		sim:         sim,
		multipliers: p.Multipliers(),
		twapRate:    p.TotalShares / float64(p.TimeHorizon),
	}, nil
}

// NumActions returns the size of the discrete action set.
func (e *Environment) NumActions() int { return len(e.multipliers) }

// TWAPAction returns the index of the multiplier closest to 1.0, i.e. the
// constant-rate baseline action.
func (e *Environment) TWAPAction() int {
	best := 0
	bestDist := math.Inf(1)
	for i, m := range e.multipliers {
		if d := math.Abs(m - 1.0); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Horizon returns T, the number of steps per episode.
func (e *Environment) Horizon() int { return e.params.TimeHorizon }

// TotalShares returns Q.
func (e *Environment) TotalShares() float64 { return e.params.TotalShares }

// Inventory returns the remaining inventory q_t.
func (e *Environment) Inventory() float64 { return e.inventory }

// MidPrice returns the current fair mid-price P_t.
func (e *Environment) MidPrice() float64 { return e.mid }

// Reset starts a new episode with a fresh random stream seeded by seed and
// returns the initial observation. Valid from Ready or Done.
func (e *Environment) Reset(seed int64) []float64 {
	e.rng = rand.New(rand.NewSource(seed))
	e.t = 0
	e.inventory = e.params.TotalShares
	e.mid = e.params.StartPrice
	e.prevMid = e.params.StartPrice
	e.state = stateRunning
	return e.observation()
}

// Step applies one action: resolve the target quantity, execute against the
// simulator, update inventory and price, and compute the reward
// r = revenue - lambda * q'^2 / Q. The final step overrides the action with
// full liquidation so q_T = 0 always holds.
func (e *Environment) Step(action int) ([]float64, float64, bool, StepInfo, error) {
	if e.state != stateRunning {
		return nil, 0, false, StepInfo{}, ErrNotRunning
	}
	if action < 0 || action >= len(e.multipliers) {
		return nil, 0, false, StepInfo{}, fmt.Errorf("%w: %d of %d", ErrInvalidAction, action, len(e.multipliers))
	}

	qty := e.multipliers[action] * e.twapRate
	if qty > e.inventory {
		qty = e.inventory
	}
	if e.t == e.params.TimeHorizon-1 {
		// Forced liquidation: the terminal inventory invariant wins over
		// whatever the policy asked for.
		qty = e.inventory
	}

	exec := e.sim.Step(e.rng, e.mid, qty)

	e.inventory -= qty
	if e.inventory < 0 {
		e.inventory = 0
	}
	e.prevMid = e.mid
	e.mid = exec.NextMid
	e.t++

	remaining := e.inventory
	reward := exec.Revenue - e.params.RiskAversion*(remaining*remaining)/e.params.TotalShares

	done := e.t == e.params.TimeHorizon
	if done {
		e.state = stateDone
	}

	info := StepInfo{
		SharesSold: qty,
		ExecPrice:  exec.ExecPrice,
		Revenue:    exec.Revenue,
		MidPrice:   e.mid,
	}
	return e.observation(), reward, done, info, nil
}

// observation derives the normalized state tuple fresh from market state:
// remaining time fraction, remaining inventory fraction, and the most recent
// single-step fractional mid-price change.
func (e *Environment) observation() []float64 {
	timeFrac := float64(e.params.TimeHorizon-e.t) / float64(e.params.TimeHorizon)
	invFrac := e.inventory / e.params.TotalShares
	ret := 0.0
	if e.prevMid > 0 {
		ret = (e.mid - e.prevMid) / e.prevMid
	}
	return []float64{timeFrac, invFrac, ret}
}
