package tuning

import (
	"sort"
	"sync"
)

// MedianPruner stops unpromising trials early: a trial reporting an
// intermediate objective below the median of what earlier trials reported at
// the same step gets pruned. The first startupTrials trials always run to
// completion so the medians have something to stand on.
type MedianPruner struct {
	startupTrials int

	mu      sync.Mutex
	history map[int][]float64 // report step -> values from earlier trials
	trials  int               // trials that have finished (completed or pruned)
}

// NewMedianPruner creates a pruner that never prunes the first startupTrials
// trials.
func NewMedianPruner(startupTrials int) *MedianPruner {
	return &MedianPruner{
		startupTrials: startupTrials,
		history:       make(map[int][]float64),
	}
}

// ShouldPrune decides whether the current trial should stop after reporting
// value at step. Call Report afterwards regardless of the decision so the
// value counts toward future medians.
func (p *MedianPruner) ShouldPrune(step int, value float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.trials < p.startupTrials {
		return false
	}
	past := p.history[step]
	if len(past) == 0 {
		return false
	}
	return value < median(past)
}

// Report records an intermediate objective for the current trial.
func (p *MedianPruner) Report(step int, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history[step] = append(p.history[step], value)
}

// TrialFinished marks the end of a trial, advancing the startup counter.
func (p *MedianPruner) TrialFinished() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trials++
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
