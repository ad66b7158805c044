package campaign

// #region environment
// Environment is the slice of the game simulator the bidding core reads from.
type Environment interface {
	CurrentDay() int
	ActiveCampaigns() []Campaign
	CumulativeReach(c Campaign) int
	CumulativeCost(c Campaign) float64
}

// Observe snapshots every active campaign for the current day, preserving the
// order the environment returned them in.
func Observe(env Environment) []Status {
	active := env.ActiveCampaigns()
	out := make([]Status, 0, len(active))
	for _, c := range active {
		out = append(out, Status{
			Campaign: c,
			Progress: Progress{
				Reach: env.CumulativeReach(c),
				Cost:  env.CumulativeCost(c),
			},
		})
	}
	return out
}

// #endregion environment

// #region static-environment
// StaticEnvironment is an Environment backed by a fixed day of observations.
// Used by the replay harness and the gRPC service, where the simulator pushes
// its state instead of being queried.
type StaticEnvironment struct {
	Day      int
	Statuses []Status
}

// CurrentDay implements Environment.
func (e StaticEnvironment) CurrentDay() int { return e.Day }

// ActiveCampaigns implements Environment.
func (e StaticEnvironment) ActiveCampaigns() []Campaign {
	out := make([]Campaign, len(e.Statuses))
	for i, s := range e.Statuses {
		out[i] = s.Campaign
	}
	return out
}

// CumulativeReach implements Environment.
func (e StaticEnvironment) CumulativeReach(c Campaign) int {
	for _, s := range e.Statuses {
		if s.UID == c.UID {
			return s.Progress.Reach
		}
	}
	return 0
}

// CumulativeCost implements Environment.
func (e StaticEnvironment) CumulativeCost(c Campaign) float64 {
	for _, s := range e.Statuses {
		if s.UID == c.UID {
			return s.Progress.Cost
		}
	}
	return 0
}

// #endregion static-environment
