package learner

import (
	"errors"
	"fmt"

	"github.com/zachw1/AdX-Stencil-2025/internal/campaign"
	"github.com/zachw1/AdX-Stencil-2025/internal/qtable"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidConfig wraps every configuration error reported by New.
var ErrInvalidConfig = errors.New("learner: invalid configuration")

// #region enums
// StateScheme selects how a campaign-day is discretised into a state index.
type StateScheme string

const (
	// SchemeUrgency uses three urgency buckets by days left.
	SchemeUrgency StateScheme = "urgency"
	// SchemeUrgencyPacing crosses urgency with three pacing buckets.
	SchemeUrgencyPacing StateScheme = "urgency_pacing"
)

// NumStates is the number of distinct state indices the scheme produces.
func (s StateScheme) NumStates() int {
	switch s {
	case SchemeUrgency:
		return 3
	case SchemeUrgencyPacing:
		return 9
	default:
		return 0
	}
}

// RewardRule selects how the next-day reward is computed.
type RewardRule string

const (
	// RewardGlobalProfit credits every pending action with the day's change
	// in total profit across all campaigns.
	RewardGlobalProfit RewardRule = "global_profit"
	// RewardPerCampaign credits each action with its own campaign's change in
	// value minus the cost incurred.
	RewardPerCampaign RewardRule = "per_campaign"
)

// BasePriceRule selects the unshaded per-impression price.
type BasePriceRule string

const (
	BaseAverageValue        BasePriceRule = "average_value"
	BaseMarginalValue       BasePriceRule = "marginal_value"
	BaseBudgetPerImpression BasePriceRule = "budget_per_impression"
)

// #endregion enums

// #region config
// Config parameterises a Learner.
type Config struct {
	// Scheme is the state discretisation.
	Scheme StateScheme `yaml:"scheme" json:"scheme"`

	// NumActions is the size of the shading grid, evenly spaced over
	// [BetaMin, BetaMax].
	NumActions int     `yaml:"num_actions" json:"num_actions"`
	BetaMin    float64 `yaml:"beta_min" json:"beta_min"`
	BetaMax    float64 `yaml:"beta_max" json:"beta_max"`

	// LearningRate is α, in (0, 1].
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`

	// Bootstrap adds γ·max Q[s'] to the update target.
	Bootstrap bool    `yaml:"bootstrap" json:"bootstrap"`
	Discount  float64 `yaml:"discount" json:"discount"`

	// Epsilon is the starting exploration rate. It decays by EpsilonDecay on
	// every new game after the first, never dropping below EpsilonMin and
	// never rising.
	Epsilon      float64 `yaml:"epsilon" json:"epsilon"`
	EpsilonMin   float64 `yaml:"epsilon_min" json:"epsilon_min"`
	EpsilonDecay float64 `yaml:"epsilon_decay" json:"epsilon_decay"`

	Reward    RewardRule    `yaml:"reward" json:"reward"`
	BasePrice BasePriceRule `yaml:"base_price" json:"base_price"`

	// MinPrice is the bid floor. MaxPrice caps bids when positive.
	MinPrice float64 `yaml:"min_price" json:"min_price"`
	MaxPrice float64 `yaml:"max_price" json:"max_price"`
}

// DefaultConfig returns the nine-state bootstrapped learner.
func DefaultConfig() Config {
	return Config{
		Scheme:       SchemeUrgencyPacing,
		NumActions:   11,
		BetaMin:      0.4,
		BetaMax:      1.4,
		LearningRate: 0.1,
		Bootstrap:    true,
		Discount:     0.9,
		Epsilon:      1.0,
		EpsilonMin:   0.05,
		EpsilonDecay: 0.985,
		Reward:       RewardPerCampaign,
		BasePrice:    BaseAverageValue,
		MinPrice:     0.01,
		MaxPrice:     5.0,
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	switch {
	case c.Scheme.NumStates() == 0:
		return fmt.Errorf("%w: unknown state scheme %q", ErrInvalidConfig, c.Scheme)
	case c.NumActions < 1:
		return fmt.Errorf("%w: action grid is empty", ErrInvalidConfig)
	case c.NumActions > qtable.MaxDim:
		return fmt.Errorf("%w: %d actions exceeds %d", ErrInvalidConfig, c.NumActions, qtable.MaxDim)
	case c.BetaMin < 0 || c.BetaMax < c.BetaMin:
		return fmt.Errorf("%w: beta range [%g, %g]", ErrInvalidConfig, c.BetaMin, c.BetaMax)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("%w: learning rate %g not in (0, 1]", ErrInvalidConfig, c.LearningRate)
	case c.Discount < 0 || c.Discount > 1:
		return fmt.Errorf("%w: discount %g not in [0, 1]", ErrInvalidConfig, c.Discount)
	case c.Epsilon < 0 || c.Epsilon > 1:
		return fmt.Errorf("%w: epsilon %g not in [0, 1]", ErrInvalidConfig, c.Epsilon)
	case c.EpsilonMin < 0 || c.EpsilonMin > 1:
		return fmt.Errorf("%w: epsilon floor %g not in [0, 1]", ErrInvalidConfig, c.EpsilonMin)
	case c.EpsilonDecay <= 0 || c.EpsilonDecay > 1:
		return fmt.Errorf("%w: epsilon decay %g not in (0, 1]", ErrInvalidConfig, c.EpsilonDecay)
	case c.Reward != RewardGlobalProfit && c.Reward != RewardPerCampaign:
		return fmt.Errorf("%w: unknown reward rule %q", ErrInvalidConfig, c.Reward)
	case c.BasePrice != BaseAverageValue && c.BasePrice != BaseMarginalValue && c.BasePrice != BaseBudgetPerImpression:
		return fmt.Errorf("%w: unknown base price rule %q", ErrInvalidConfig, c.BasePrice)
	case c.MinPrice < 0 || c.MaxPrice < 0:
		return fmt.Errorf("%w: negative price bound", ErrInvalidConfig)
	case c.MaxPrice > 0 && c.MaxPrice < c.MinPrice:
		return fmt.Errorf("%w: max price %g below min price %g", ErrInvalidConfig, c.MaxPrice, c.MinPrice)
	}
	return nil
}

// ActionGrid returns the shading multipliers, one per action index.
func (c Config) ActionGrid() []float64 {
	grid := make([]float64, c.NumActions)
	if c.NumActions == 1 {
		grid[0] = c.BetaMin
		return grid
	}
	return floats.Span(grid, c.BetaMin, c.BetaMax)
}

// #endregion config

// #region records
// PendingAction is an action awaiting its reward on the next update step.
type PendingAction struct {
	CampaignUID int
	State       int
	Action      int
	Day         int
	Snapshot    campaign.Progress
}

// Decision is the outcome of ChooseAction for one campaign-day. State and
// Action are -1 when the campaign was skipped before an action was drawn.
type Decision struct {
	CampaignUID int
	State       int
	Action      int
	Beta        float64
	BasePrice   float64
	Price       float64
	Limit       float64
	Explored    bool
	Bid         bool
	Reason      string
}

// UpdateRecord describes what happened to one pending action.
type UpdateRecord struct {
	CampaignUID int
	State       int
	Action      int
	Reward      float64
	Target      float64
	Before      float64
	After       float64
	Discarded   bool
}

// #endregion records
