package gate

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoShape    VetoType = "shape_mismatch"
	VetoDelta    VetoType = "delta_norm"
	VetoSchedule VetoType = "schedule_regression"
	VetoLineage  VetoType = "lineage_regression"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for commit decisions.
type GateConfig struct {
	// MaxDeltaNorm caps the Frobenius norm of the change between the parent
	// table and the candidate.
	MaxDeltaNorm float64 `yaml:"max_delta_norm" json:"max_delta_norm"`
}

// DefaultGateConfig allows a game's worth of updates at budgets in the low
// thousands.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxDeltaNorm: 1e4,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	DeltaNorm   float64
	// PolicyStability is the fraction of states whose greedy action did not
	// change. Logged, never blocks.
	PolicyStability float64
}

// #endregion gate-decision
