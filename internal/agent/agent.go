// Package agent implements the value-based learner: epsilon-greedy action
// selection over a policy network and Double-DQN updates against a lagged
// target network.
package agent

import (
	"errors"
	"fmt"
	"math/rand"

	"order-exec-lab/internal/domain"
	"order-exec-lab/internal/network"
)

// Agent errors.
var (
	// ErrInvalidInput is returned for malformed observations or batches.
	ErrInvalidInput = errors.New("invalid agent input")

	// ErrUnknownComponent is returned by Restore for a blob key that is not
	// a known parameter set.
	ErrUnknownComponent = errors.New("unknown checkpoint component")
)

// Agent owns the policy and target networks. It holds no exploration state:
// epsilon is passed into Act by the training loop, which owns the decay
// schedule.
type Agent struct {
	policy *network.MLP
	target *network.MLP

	numActions int
	gamma      float64
	rng        *rand.Rand
}

// New validates hyperparameters and builds an agent whose target network
// starts as an exact copy of the freshly initialized policy network.
func New(rng *rand.Rand, h domain.Hyperparams, obsDim, numActions int) (*Agent, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if obsDim <= 0 || numActions <= 0 {
		return nil, fmt.Errorf("%w: obsDim=%d numActions=%d", ErrInvalidInput, obsDim, numActions)
	}

	policy, err := network.New(rng, h.LR, obsDim, h.HiddenSize, h.HiddenSize, numActions)
	if err != nil {
		return nil, err
	}
	target, err := network.New(rng, h.LR, obsDim, h.HiddenSize, h.HiddenSize, numActions)
	if err != nil {
		return nil, err
	}
	if err := target.CopyFrom(policy); err != nil {
		return nil, err
	}

	return &Agent{
		policy:     policy,
		target:     target,
		numActions: numActions,
		gamma:      h.Gamma,
		rng:        rng,
	}, nil
}

// NumActions returns the size of the action set the agent selects over.
func (a *Agent) NumActions() int { return a.numActions }

// Act selects an action for obs: uniformly random with probability epsilon,
// otherwise the argmax of the policy network.
func (a *Agent) Act(obs []float64, epsilon float64) (int, error) {
	if len(obs) != a.policy.InputDim() {
		return 0, fmt.Errorf("%w: observation has %d values, want %d", ErrInvalidInput, len(obs), a.policy.InputDim())
	}
	if epsilon > 0 && a.rng.Float64() < epsilon {
		return a.rng.Intn(a.numActions), nil
	}
	return a.policy.Argmax(obs)
}

// ActGreedy selects the exploitation action, used for evaluation.
func (a *Agent) ActGreedy(obs []float64) (int, error) {
	return a.Act(obs, 0)
}

// Learn performs one gradient step on the policy network from a sampled
// batch using the Double-DQN rule and returns the scalar loss.
func (a *Agent) Learn(batch []domain.Transition) (float64, error) {
	targets, err := a.computeTargets(batch)
	if err != nil {
		return 0, err
	}

	states := make([][]float64, len(batch))
	actions := make([]int, len(batch))
	for i, tr := range batch {
		states[i] = tr.Obs
		actions[i] = tr.Action
	}
	loss, err := a.policy.TrainBatch(states, actions, targets)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return loss, nil
}

// computeTargets builds the Double-DQN regression targets: the next action is
// chosen by the policy network but evaluated by the target network, and
// terminal transitions bootstrap nothing.
func (a *Agent) computeTargets(batch []domain.Transition) ([]float64, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	targets := make([]float64, len(batch))
	for i, tr := range batch {
		if len(tr.Obs) != a.policy.InputDim() || len(tr.NextObs) != a.policy.InputDim() {
			return nil, fmt.Errorf("%w: transition %d has malformed observations", ErrInvalidInput, i)
		}
		if tr.Action < 0 || tr.Action >= a.numActions {
			return nil, fmt.Errorf("%w: transition %d action %d out of range", ErrInvalidInput, i, tr.Action)
		}

		y := tr.Reward
		if !tr.Done {
			best, err := a.policy.Argmax(tr.NextObs)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			qNext, err := a.target.Forward(tr.NextObs)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
			y += a.gamma * qNext[best]
		}
		targets[i] = y
	}
	return targets, nil
}

// SyncTarget hard-copies the policy parameters into the target network.
func (a *Agent) SyncTarget() {
	// Architectures are identical by construction.
	_ = a.target.CopyFrom(a.policy)
}

// Checkpoint exports both parameter sets as opaque blobs keyed by component.
func (a *Agent) Checkpoint() (map[string][]byte, error) {
	policyBlob, err := a.policy.MarshalBinary()
	if err != nil {
		return nil, err
	}
	targetBlob, err := a.target.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return map[string][]byte{
		domain.ComponentPolicy: policyBlob,
		domain.ComponentTarget: targetBlob,
	}, nil
}

// Restore loads previously exported parameter blobs. Unknown keys fail;
// missing keys leave that component untouched.
func (a *Agent) Restore(blobs map[string][]byte) error {
	for component, blob := range blobs {
		var net *network.MLP
		switch component {
		case domain.ComponentPolicy:
			net = a.policy
		case domain.ComponentTarget:
			net = a.target
		default:
			return fmt.Errorf("%w: %q", ErrUnknownComponent, component)
		}
		if err := net.UnmarshalBinary(blob); err != nil {
			return fmt.Errorf("restore %s: %w", component, err)
		}
	}
	return nil
}
