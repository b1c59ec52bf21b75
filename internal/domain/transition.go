package domain

// ObservationDim is the size of the environment observation vector:
// remaining time fraction, remaining inventory fraction, recent return.
const ObservationDim = 3

// Transition is one MDP transition, the unit stored in the replay buffer.
// The buffer owns its copy after insertion; callers must not rely on slice
// aliasing.
type Transition struct {
	Obs     []float64
	Action  int
	Reward  float64
	NextObs []float64
	Done    bool
}

// Clone returns a deep copy with independent observation slices.
func (t Transition) Clone() Transition {
	out := t
	out.Obs = append([]float64(nil), t.Obs...)
	out.NextObs = append([]float64(nil), t.NextObs...)
	return out
}
