package strategy

// #region bid
// Bid is one campaign's offer for the day: up to Limit in total spend at
// PricePerItem per impression in Segment.
type Bid struct {
	CampaignUID  int     `json:"campaign_uid"`
	Segment      string  `json:"segment"`
	PricePerItem float64 `json:"price_per_item"`
	Limit        float64 `json:"limit"`
}

// #endregion bid

// #region config
// Config controls the daily glue around the learner.
type Config struct {
	// MaxActiveCampaigns caps how many campaigns bid on one day, keeping the
	// ones with the most budget left. Zero means no cap.
	MaxActiveCampaigns int `yaml:"max_active_campaigns" json:"max_active_campaigns"`
}

// DefaultConfig caps bidding at five campaigns a day.
func DefaultConfig() Config {
	return Config{MaxActiveCampaigns: 5}
}

// #endregion config

// #region day-result
// DayResult summarises one AdBids call.
type DayResult struct {
	Day       int   `json:"day"`
	Bids      []Bid `json:"bids"`
	Skipped   int   `json:"skipped"`
	Updated   int   `json:"updated"`
	Discarded int   `json:"discarded"`
	Explored  int   `json:"explored"`
}

// #endregion day-result
