package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zachw1/AdX-Stencil-2025/internal/campaign"
	"github.com/zachw1/AdX-Stencil-2025/internal/eval"
	"github.com/zachw1/AdX-Stencil-2025/internal/learner"
	"github.com/zachw1/AdX-Stencil-2025/internal/strategy"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a recorded game trace.
type Fixture struct {
	Description  string                `json:"description"`
	Config       FixtureConfig         `json:"config"`
	Games        []Game                `json:"games"`
	ExpectedBids []FixtureExpectedBids `json:"expected_bids,omitempty"`
}

// FixtureConfig bundles everything needed to rebuild the strategy. Fields
// missing from the file keep their defaults.
type FixtureConfig struct {
	Learner  learner.Config  `json:"learner"`
	Strategy strategy.Config `json:"strategy"`
	Eval     eval.EvalConfig `json:"eval"`
	Seed     int64           `json:"seed"`
}

// Game is one recorded game, day by day.
type Game struct {
	Days []Day `json:"days"`
}

// Day is the simulator's view of every active campaign at the start of a day.
type Day struct {
	Day       int                   `json:"day"`
	Campaigns []CampaignObservation `json:"campaigns"`
}

// CampaignObservation is a campaign plus its delivery so far. A null budget
// means the budget was not known that day.
type CampaignObservation struct {
	UID             int      `json:"uid"`
	Reach           int      `json:"reach"`
	Budget          *float64 `json:"budget"`
	StartDay        int      `json:"start_day"`
	EndDay          int      `json:"end_day"`
	Segment         string   `json:"segment,omitempty"`
	CumulativeReach int      `json:"cumulative_reach"`
	CumulativeCost  float64  `json:"cumulative_cost"`
}

// FixtureExpectedBids lists the campaigns expected to bid on one day.
type FixtureExpectedBids struct {
	Game         int   `json:"game"`
	Day          int   `json:"day"`
	CampaignUIDs []int `json:"campaign_uids"`
}

// #endregion fixture-types

// #region fixture-loader

// DefaultFixtureConfig is the configuration a fixture starts from.
func DefaultFixtureConfig() FixtureConfig {
	return FixtureConfig{
		Learner:  learner.DefaultConfig(),
		Strategy: strategy.DefaultConfig(),
		Eval:     eval.DefaultEvalConfig(),
		Seed:     1,
	}
}

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f := Fixture{Config: DefaultFixtureConfig()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Games) == 0 {
		return nil, fmt.Errorf("fixture %s has no games", path)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToStatus converts an observation to a campaign status.
func (o CampaignObservation) ToStatus() campaign.Status {
	budget := campaign.UnknownBudget()
	if o.Budget != nil {
		budget = campaign.KnownBudget(*o.Budget)
	}
	return campaign.Status{
		Campaign: campaign.Campaign{
			UID:      o.UID,
			Reach:    o.Reach,
			Budget:   budget,
			StartDay: o.StartDay,
			EndDay:   o.EndDay,
			Segment:  o.Segment,
		},
		Progress: campaign.Progress{Reach: o.CumulativeReach, Cost: o.CumulativeCost},
	}
}

// ObservationOf is the inverse of ToStatus.
func ObservationOf(s campaign.Status) CampaignObservation {
	o := CampaignObservation{
		UID:             s.UID,
		Reach:           s.Reach,
		StartDay:        s.StartDay,
		EndDay:          s.EndDay,
		Segment:         s.Segment,
		CumulativeReach: s.Progress.Reach,
		CumulativeCost:  s.Progress.Cost,
	}
	if s.Budget.Known {
		b := s.Budget.Amount
		o.Budget = &b
	}
	return o
}

// Environment exposes the day as a campaign.Environment.
func (d Day) Environment() campaign.StaticEnvironment {
	statuses := make([]campaign.Status, len(d.Campaigns))
	for i, o := range d.Campaigns {
		statuses[i] = o.ToStatus()
	}
	return campaign.StaticEnvironment{Day: d.Day, Statuses: statuses}
}

// #endregion fixture-loader
