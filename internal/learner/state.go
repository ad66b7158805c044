package learner

import "github.com/zachw1/AdX-Stencil-2025/internal/campaign"

// #region buckets
// UrgencyBucket maps days left to 0 (one day or less), 1 (two or three
// days) or 2 (four or more).
func UrgencyBucket(daysLeft int) int {
	switch {
	case daysLeft <= 1:
		return 0
	case daysLeft <= 3:
		return 1
	default:
		return 2
	}
}

// PacingBucket compares the impressions still needed per day against the
// campaign's total reach: below 10% is 0, below 30% is 1, anything else 2.
func PacingBucket(remainingReach, daysLeft, reach int) int {
	if reach <= 0 || remainingReach <= 0 {
		return 0
	}
	if daysLeft < 1 {
		daysLeft = 1
	}
	ratio := float64(remainingReach) / float64(daysLeft) / float64(reach)
	switch {
	case ratio < 0.1:
		return 0
	case ratio < 0.3:
		return 1
	default:
		return 2
	}
}

// #endregion buckets

// #region state-index
// StateIndex discretises a campaign on the given day under the scheme.
func StateIndex(scheme StateScheme, s campaign.Status, day int) int {
	daysLeft := s.DaysLeft(day)
	u := UrgencyBucket(daysLeft)
	if scheme == SchemeUrgency {
		return u
	}
	return u*3 + PacingBucket(s.RemainingReach(), daysLeft, s.Reach)
}

// #endregion state-index
