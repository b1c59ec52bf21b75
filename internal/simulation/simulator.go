// Package simulation implements the stochastic market model and the
// finite-horizon execution environment built on top of it.
package simulation

import (
	"math"
	"math/rand"

	"order-exec-lab/internal/domain"
)

// priceFloor is the minimum admissible price. Impact subtraction can push a
// price non-positive on thin parameters; prices are clamped here instead of
// erroring so training stays stable. The clamp is deterministic.
const priceFloor = 0.01

// Simulator advances a geometric Brownian motion mid-price and converts a
// requested sell quantity into a realized execution outcome under linear
// temporary and permanent impact.
type Simulator struct {
	drift      float64
	volatility float64
	permImpact float64
	tempImpact float64
	dt         float64
}

// Execution is the outcome of one simulated step.
type Execution struct {
	Mid       float64 // diffused mid-price the step trades against
	ExecPrice float64 // Mid - beta*qty, clamped to the price floor
	NextMid   float64 // Mid - alpha*qty carried into the next step, clamped
	Revenue   float64 // qty * ExecPrice
}

// NewSimulator validates parameters once and builds a simulator.
// Per-step calls perform no validation.
func NewSimulator(p domain.SimulationParams) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		drift:      p.Drift,
		volatility: p.Volatility,
		permImpact: p.PermImpact,
		tempImpact: p.TempImpact,
		dt:         1.0 / float64(p.TimeHorizon),
	}, nil
}

// Step diffuses the mid-price one interval and executes qty shares against it.
// A zero quantity yields zero revenue and leaves the fair price untouched by
// impact. The rng must be the episode's single stream; the simulator never
// seeds or owns randomness itself.
func (s *Simulator) Step(rng *rand.Rand, mid, qty float64) Execution {
	z := rng.NormFloat64()
	diffused := mid * math.Exp((s.drift-0.5*s.volatility*s.volatility)*s.dt+s.volatility*math.Sqrt(s.dt)*z)
	diffused = clampPrice(diffused)

	exec := clampPrice(diffused - s.tempImpact*qty)
	next := clampPrice(diffused - s.permImpact*qty)
	if qty == 0 {
		exec = diffused
		next = diffused
	}

	return Execution{
		Mid:       diffused,
		ExecPrice: exec,
		NextMid:   next,
		Revenue:   qty * exec,
	}
}

func clampPrice(p float64) float64 {
	if p < priceFloor {
		return priceFloor
	}
	return p
}
