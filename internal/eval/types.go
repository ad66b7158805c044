package eval

// #region eval-config
// EvalConfig holds thresholds for validating a Q-table snapshot before it is
// committed.
type EvalConfig struct {
	MaxAbsQ     float64 `yaml:"max_abs_q" json:"max_abs_q"`       // reject if any |Q| exceeds this
	MinCoverage float64 `yaml:"min_coverage" json:"min_coverage"` // warn below this fraction of visited states
}

// DefaultEvalConfig returns thresholds sized for budgets in the low thousands.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxAbsQ:     1e5,
		MinCoverage: 0.5,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of snapshot validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
