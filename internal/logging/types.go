package logging

import "time"

// #region kinds
// Entry kinds recorded in decision_log.
const (
	KindBid     = "bid"
	KindSkip    = "skip"
	KindUpdate  = "update"
	KindDiscard = "discard"
)

// #endregion kinds

// #region decision-entry
// DecisionEntry is a single row in the decision_log table. Every row carries
// the campaign as observed that day so a run can be rebuilt into a replay
// fixture.
type DecisionEntry struct {
	RunID       string
	Game        int
	Day         int
	Kind        string // "bid" | "skip" | "update" | "discard"
	CampaignUID int

	// Campaign observation
	Reach           int
	Budget          float64
	BudgetKnown     bool
	StartDay        int
	EndDay          int
	Segment         string
	CumulativeReach int
	CumulativeCost  float64

	// Learner output; State/Action are -1 when no action was drawn
	State  int
	Action int
	Beta   float64
	Price  float64
	Reward float64
	QAfter float64

	Reason    string
	CreatedAt time.Time
}

// #endregion decision-entry
