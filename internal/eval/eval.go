package eval

import (
	"fmt"
	"math"

	"github.com/zachw1/AdX-Stencil-2025/internal/store"
)

// #region eval-harness
// EvalHarness validates Q-table snapshots before they are persisted.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks a snapshot. Non-finite values, runaway magnitudes and an
// exploration rate outside [0,1] fail; state coverage is informational.
func (h *EvalHarness) Run(snap store.Snapshot) EvalResult {
	if snap.Table == nil {
		return EvalResult{Reason: "eval failed: snapshot has no table"}
	}

	var metrics []EvalMetric
	var failReasons []string
	values := snap.Table.Flat()

	// 1. Every value finite
	nonFinite := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			nonFinite++
		}
	}
	metrics = append(metrics, EvalMetric{Name: "non_finite", Value: float64(nonFinite), Pass: nonFinite == 0})
	if nonFinite > 0 {
		failReasons = append(failReasons, fmt.Sprintf("%d non-finite Q values", nonFinite))
	}

	// 2. Magnitude bound
	maxAbs := maxAbsFinite(values)
	maxPass := maxAbs <= h.config.MaxAbsQ
	metrics = append(metrics, EvalMetric{Name: "max_abs_q", Value: maxAbs, Pass: maxPass})
	if !maxPass {
		failReasons = append(failReasons, fmt.Sprintf("max |Q| %.4f exceeds %.4f", maxAbs, h.config.MaxAbsQ))
	}

	// 3. Exploration rate
	epsPass := snap.Epsilon >= 0 && snap.Epsilon <= 1
	metrics = append(metrics, EvalMetric{Name: "epsilon", Value: snap.Epsilon, Pass: epsPass})
	if !epsPass {
		failReasons = append(failReasons, fmt.Sprintf("epsilon %.4f outside [0, 1]", snap.Epsilon))
	}

	// 4. Coverage: informational only
	coverage := visitedFraction(snap)
	metrics = append(metrics, EvalMetric{Name: "coverage", Value: coverage, Pass: coverage >= h.config.MinCoverage})

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func maxAbsFinite(values []float64) float64 {
	var m float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// visitedFraction is the share of states with at least one non-zero value.
func visitedFraction(snap store.Snapshot) float64 {
	states := snap.Table.States()
	visited := 0
	for s := 0; s < states; s++ {
		for _, v := range snap.Table.Row(s) {
			if v != 0 {
				visited++
				break
			}
		}
	}
	return float64(visited) / float64(states)
}

// #endregion helpers
