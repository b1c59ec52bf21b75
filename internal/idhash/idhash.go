// Package idhash derives deterministic identifiers for training runs and
// tuning trials.
package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"order-exec-lab/internal/domain"
)

// runIDBytes is the hash prefix length encoded into the identifier. 16 bytes
// keeps IDs short enough for log lines while leaving collisions implausible.
const runIDBytes = 16

// ComputeRunID derives a run identifier from the full parameter set and the
// launch timestamp (unix nanoseconds).
// Formula: base58(SHA256(Q|T|P0|mu|sigma|alpha|beta|lambda|seed|gamma|lr|batch|mem|eps|launchedNs)[:16]).
func ComputeRunID(p domain.SimulationParams, h domain.Hyperparams, launchedNs int64) string {
	data := fmt.Sprintf("%v|%d|%v|%v|%v|%v|%v|%v|%d|%v|%v|%d|%d|%d|%d",
		p.TotalShares, p.TimeHorizon, p.StartPrice,
		p.Drift, p.Volatility, p.PermImpact, p.TempImpact, p.RiskAversion, p.Seed,
		h.Gamma, h.LR, h.BatchSize, h.MemorySize, h.Episodes,
		launchedNs,
	)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:runIDBytes])
}

// ComputeTrialID derives an identifier for one hyperparameter-search trial.
func ComputeTrialID(studyName string, trial int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", studyName, trial)))
	return base58.Encode(hash[:runIDBytes])
}
