package replay

import (
	"math/rand"
	"sort"

	"github.com/zachw1/AdX-Stencil-2025/internal/eval"
	"github.com/zachw1/AdX-Stencil-2025/internal/learner"
	"github.com/zachw1/AdX-Stencil-2025/internal/logging"
	"github.com/zachw1/AdX-Stencil-2025/internal/qtable"
	"github.com/zachw1/AdX-Stencil-2025/internal/store"
	"github.com/zachw1/AdX-Stencil-2025/internal/strategy"
	"github.com/zachw1/AdX-Stencil-2025/internal/valuemodel"
)

// #region types

// ReplayResult captures one replayed day.
type ReplayResult struct {
	Game int
	strategy.DayResult

	// Eval is set on the last day of each game.
	Eval *eval.EvalResult
}

// BidUIDs returns the uids that bid on this day, in bid order.
func (r ReplayResult) BidUIDs() []int {
	uids := make([]int, len(r.Bids))
	for i, b := range r.Bids {
		uids[i] = b.CampaignUID
	}
	return uids
}

// CampaignSummary is a campaign's final position in one game.
type CampaignSummary struct {
	Game           int
	UID            int
	Reach          int
	Budget         float64
	BudgetKnown    bool
	FinalReach     int
	FinalCost      float64
	EffectiveReach float64
	Profit         float64
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Games       int
	Days        int
	Bids        int
	Skipped     int
	Updates     int
	Discarded   int
	Explored    int
	EvalFails   int
	MeanPrice   float64
	TotalProfit float64
	Campaigns   []CampaignSummary
}

// #endregion types

// #region build

// NewStrategy builds a seeded learner and strategy from cfg. table may be nil
// to start from zeros; journal may be nil.
func NewStrategy(cfg FixtureConfig, table *qtable.Table, journal *logging.Journal) (*strategy.Strategy, error) {
	l, err := learner.New(cfg.Learner, table, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	return strategy.New(l, cfg.Strategy, journal), nil
}

// #endregion build

// #region replay

// Replay plays every game through s: new game, then one PlayDay per recorded
// day. The learner's table is validated at the end of each game.
func Replay(s *strategy.Strategy, games []Game, evalConfig eval.EvalConfig) []ReplayResult {
	harness := eval.NewEvalHarness(evalConfig)
	var results []ReplayResult

	for g, game := range games {
		s.OnNewGame()
		for i, day := range game.Days {
			r := ReplayResult{
				Game:      g + 1,
				DayResult: s.PlayDay(day.Environment()),
			}
			if i == len(game.Days)-1 {
				l := s.Learner()
				snap := store.Snapshot{Table: l.Table(), Epsilon: l.Epsilon(), Games: l.Games()}
				res := harness.Run(snap)
				r.Eval = &res
			}
			results = append(results, r)
		}
	}
	return results
}

// Summarize computes aggregate stats from replay results, and each
// campaign's final reach and profit from the last day it was observed.
func Summarize(results []ReplayResult, games []Game) ReplaySummary {
	sum := ReplaySummary{Games: len(games), Days: len(results)}

	var priceTotal float64
	for _, r := range results {
		sum.Bids += len(r.Bids)
		sum.Skipped += r.Skipped
		sum.Updates += r.Updated
		sum.Discarded += r.Discarded
		sum.Explored += r.Explored
		if r.Eval != nil && !r.Eval.Passed {
			sum.EvalFails++
		}
		for _, b := range r.Bids {
			priceTotal += b.PricePerItem
		}
	}
	if sum.Bids > 0 {
		sum.MeanPrice = priceTotal / float64(sum.Bids)
	}

	for g, game := range games {
		last := map[int]CampaignObservation{}
		for _, day := range game.Days {
			for _, o := range day.Campaigns {
				last[o.UID] = o
			}
		}
		uids := make([]int, 0, len(last))
		for uid := range last {
			uids = append(uids, uid)
		}
		sort.Ints(uids)

		for _, uid := range uids {
			st := last[uid].ToStatus()
			cs := CampaignSummary{
				Game:           g + 1,
				UID:            uid,
				Reach:          st.Reach,
				Budget:         st.Budget.Amount,
				BudgetKnown:    st.Budget.Known,
				FinalReach:     st.Progress.Reach,
				FinalCost:      st.Progress.Cost,
				EffectiveReach: valuemodel.EffectiveReach(st.Progress.Reach, st.Reach),
			}
			if st.Budget.Known {
				cs.Profit = valuemodel.Profit(st.Progress.Reach, st.Reach, st.Budget.Amount, st.Progress.Cost)
				sum.TotalProfit += cs.Profit
			}
			sum.Campaigns = append(sum.Campaigns, cs)
		}
	}
	return sum
}

// #endregion replay
