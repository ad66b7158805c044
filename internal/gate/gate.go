package gate

import (
	"fmt"

	"github.com/zachw1/AdX-Stencil-2025/internal/store"
	"gonum.org/v1/gonum/floats"
)

// #region gate
// Gate decides whether a candidate snapshot may replace its parent.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks hard vetoes, then scores how much of the greedy policy
// survived.
func (g *Gate) Evaluate(parent, candidate store.Snapshot) GateDecision {
	if parent.Table == nil || candidate.Table == nil {
		return reject([]VetoSignal{{Type: VetoShape, Reason: "snapshot has no table"}}, 0)
	}

	var vetoes []VetoSignal

	// 1. Same scheme and shape
	ps, pa := parent.Table.States(), parent.Table.Actions()
	cs, ca := candidate.Table.States(), candidate.Table.Actions()
	if parent.Scheme != candidate.Scheme || ps != cs || pa != ca {
		vetoes = append(vetoes, VetoSignal{
			Type: VetoShape,
			Reason: fmt.Sprintf("candidate %s %dx%d does not match parent %s %dx%d",
				candidate.Scheme, cs, ca, parent.Scheme, ps, pa),
		})
		return reject(vetoes, 0)
	}

	// 2. Delta norm exceeds cap
	delta := make([]float64, ps*pa)
	floats.SubTo(delta, candidate.Table.Flat(), parent.Table.Flat())
	deltaNorm := floats.Norm(delta, 2)
	if deltaNorm > g.config.MaxDeltaNorm {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoDelta,
			Reason: fmt.Sprintf("delta norm %.4f exceeds cap %.4f", deltaNorm, g.config.MaxDeltaNorm),
		})
	}

	// 3. Exploration only ever decays
	if candidate.Epsilon > parent.Epsilon {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoSchedule,
			Reason: fmt.Sprintf("epsilon rose from %.4f to %.4f", parent.Epsilon, candidate.Epsilon),
		})
	}

	// 4. Games never go backwards
	if candidate.Games < parent.Games {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoLineage,
			Reason: fmt.Sprintf("games went from %d to %d", parent.Games, candidate.Games),
		})
	}

	if len(vetoes) > 0 {
		return reject(vetoes, deltaNorm)
	}

	stability := policyStability(parent, candidate)
	return GateDecision{
		Action:          "commit",
		Reason:          fmt.Sprintf("passed gate: delta_norm=%.4f policy_stability=%.4f", deltaNorm, stability),
		DeltaNorm:       deltaNorm,
		PolicyStability: stability,
	}
}

// #endregion gate

// #region helpers
func reject(vetoes []VetoSignal, deltaNorm float64) GateDecision {
	return GateDecision{
		Action:      "reject",
		Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
		Vetoed:      true,
		VetoSignals: vetoes,
		DeltaNorm:   deltaNorm,
	}
}

func policyStability(parent, candidate store.Snapshot) float64 {
	states := parent.Table.States()
	same := 0
	for s := 0; s < states; s++ {
		if parent.Table.BestAction(s) == candidate.Table.BestAction(s) {
			same++
		}
	}
	return float64(same) / float64(states)
}

// #endregion helpers
