package campaign

// #region budget
// Budget is a campaign budget that may not be known yet. Campaigns offered
// in the reverse auction carry no budget until they are won.
type Budget struct {
	Amount float64
	Known  bool
}

// KnownBudget returns a budget with a concrete amount.
func KnownBudget(amount float64) Budget {
	return Budget{Amount: amount, Known: true}
}

// UnknownBudget returns a budget in the "not yet known" state.
func UnknownBudget() Budget {
	return Budget{}
}

// Or returns the amount if known, otherwise def.
func (b Budget) Or(def float64) float64 {
	if !b.Known {
		return def
	}
	return b.Amount
}

// #endregion budget

// #region campaign
// Campaign is a read-only view of a campaign owned by the simulator.
type Campaign struct {
	UID      int    `json:"uid"`
	Reach    int    `json:"reach"`
	Budget   Budget `json:"-"`
	StartDay int    `json:"start_day"`
	EndDay   int    `json:"end_day"`
	Segment  string `json:"segment,omitempty"`
}

// Duration is the number of days the campaign runs, both ends inclusive.
func (c Campaign) Duration() int {
	if c.EndDay < c.StartDay {
		return 0
	}
	return c.EndDay - c.StartDay + 1
}

// DaysLeft counts the days from day through EndDay inclusive. A campaign on
// its last day has one day left; after that, zero.
func (c Campaign) DaysLeft(day int) int {
	left := c.EndDay - day + 1
	if left < 0 {
		return 0
	}
	return left
}

// ActiveOn reports whether day falls within the campaign window.
func (c Campaign) ActiveOn(day int) bool {
	return day >= c.StartDay && day <= c.EndDay
}

// #endregion campaign

// #region progress
// Progress is the cumulative delivery of a campaign as reported by the
// simulator. Both fields are monotonically non-decreasing.
type Progress struct {
	Reach int     `json:"cumulative_reach"`
	Cost  float64 `json:"cumulative_cost"`
}

// Status pairs a campaign with its progress at a point in time.
type Status struct {
	Campaign
	Progress Progress
}

// RemainingReach is the number of impressions still needed, never negative.
func (s Status) RemainingReach() int {
	r := s.Reach - s.Progress.Reach
	if r < 0 {
		return 0
	}
	return r
}

// RemainingBudget is the unspent budget. Unknown budgets report zero.
func (s Status) RemainingBudget() float64 {
	if !s.Budget.Known {
		return 0
	}
	r := s.Budget.Amount - s.Progress.Cost
	if r < 0 {
		return 0
	}
	return r
}

// #endregion progress
