package replay

import (
	"fmt"

	"github.com/zachw1/AdX-Stencil-2025/internal/logging"
)

// #region from-decisions

// FromDecisions rebuilds a fixture from one run of the decision journal. Bid
// and skip rows carry the campaign as observed that day, so together they
// describe every active campaign; the bid rows become the expected bids.
// Games are renumbered from 1 in the order they appear.
func FromDecisions(entries []logging.DecisionEntry) (*Fixture, error) {
	f := &Fixture{Config: DefaultFixtureConfig()}

	gameIndex := map[int]int{}
	type dayKey struct{ game, day int }
	dayIndex := map[dayKey]int{}
	expectedIndex := map[dayKey]int{}
	seen := map[dayKey]map[int]bool{}
	runID := ""

	for _, e := range entries {
		if e.Kind != logging.KindBid && e.Kind != logging.KindSkip {
			continue
		}
		runID = e.RunID

		g, ok := gameIndex[e.Game]
		if !ok {
			g = len(f.Games)
			gameIndex[e.Game] = g
			f.Games = append(f.Games, Game{})
		}

		key := dayKey{g, e.Day}
		d, ok := dayIndex[key]
		if !ok {
			d = len(f.Games[g].Days)
			dayIndex[key] = d
			f.Games[g].Days = append(f.Games[g].Days, Day{Day: e.Day})
			seen[key] = map[int]bool{}
		}

		if !seen[key][e.CampaignUID] {
			seen[key][e.CampaignUID] = true
			f.Games[g].Days[d].Campaigns = append(f.Games[g].Days[d].Campaigns, observationOf(e))
		}

		if e.Kind == logging.KindBid {
			x, ok := expectedIndex[key]
			if !ok {
				x = len(f.ExpectedBids)
				expectedIndex[key] = x
				f.ExpectedBids = append(f.ExpectedBids, FixtureExpectedBids{Game: g + 1, Day: e.Day})
			}
			f.ExpectedBids[x].CampaignUIDs = append(f.ExpectedBids[x].CampaignUIDs, e.CampaignUID)
		}
	}

	if len(f.Games) == 0 {
		return nil, fmt.Errorf("no bid or skip rows to export")
	}
	f.Description = fmt.Sprintf("Exported from run %s: %d games", runID, len(f.Games))
	return f, nil
}

func observationOf(e logging.DecisionEntry) CampaignObservation {
	o := CampaignObservation{
		UID:             e.CampaignUID,
		Reach:           e.Reach,
		StartDay:        e.StartDay,
		EndDay:          e.EndDay,
		Segment:         e.Segment,
		CumulativeReach: e.CumulativeReach,
		CumulativeCost:  e.CumulativeCost,
	}
	if e.BudgetKnown {
		b := e.Budget
		o.Budget = &b
	}
	return o
}

// #endregion from-decisions
