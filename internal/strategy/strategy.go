package strategy

import (
	"sort"

	"github.com/google/uuid"
	"github.com/zachw1/AdX-Stencil-2025/internal/campaign"
	"github.com/zachw1/AdX-Stencil-2025/internal/learner"
	"github.com/zachw1/AdX-Stencil-2025/internal/logging"
	"github.com/zachw1/AdX-Stencil-2025/internal/metrics"
	"k8s.io/klog/v2"
)

const reasonOverCap = "over campaign cap"

// #region strategy-struct
// Strategy turns the learner into a per-day bidding policy: it settles
// yesterday's pending actions, ranks today's campaigns and emits one bid per
// campaign worth bidding on.
type Strategy struct {
	learner *learner.Learner
	cfg     Config
	journal *logging.Journal

	game   int
	gameID string

	// day and bidOn describe the last PlayDay: the campaigns bid on, as
	// observed when the bid was made.
	day   int
	bidOn map[int]campaign.Status
}

// #endregion strategy-struct

// #region constructor
// New wires a strategy around l. journal may be nil.
func New(l *learner.Learner, cfg Config, journal *logging.Journal) *Strategy {
	return &Strategy{learner: l, cfg: cfg, journal: journal, bidOn: map[int]campaign.Status{}}
}

// Learner exposes the wrapped learner.
func (s *Strategy) Learner() *learner.Learner { return s.learner }

// Game is the number of games started on this strategy.
func (s *Strategy) Game() int { return s.game }

// GameID identifies the current game; empty before the first OnNewGame.
func (s *Strategy) GameID() string { return s.gameID }

// #endregion constructor

// #region new-game
// OnNewGame starts a new game on the learner and stamps a fresh game id.
func (s *Strategy) OnNewGame() {
	s.learner.OnNewGame()
	s.game++
	s.gameID = uuid.New().String()
	s.day = 0
	clear(s.bidOn)
	metrics.Epsilon.Set(s.learner.Epsilon())
	klog.InfoS("Game started", "game", s.game, "gameID", s.gameID, "epsilon", s.learner.Epsilon())
}

// #endregion new-game

// #region ad-bids
// AdBids plays one day against env and returns the bids to submit.
func (s *Strategy) AdBids(env campaign.Environment) []Bid {
	return s.PlayDay(env).Bids
}

// PlayDay is AdBids with the day's bookkeeping attached.
func (s *Strategy) PlayDay(env campaign.Environment) DayResult {
	day := env.CurrentDay()
	active := campaign.Observe(env)
	res := DayResult{Day: day}

	// 1. Settle yesterday
	byUID := make(map[int]campaign.Status, len(active))
	for _, st := range active {
		byUID[st.UID] = st
	}
	for _, rec := range s.learner.BatchUpdate(active, day) {
		if rec.Discarded {
			res.Discarded++
			metrics.QUpdatesTotal.WithLabelValues("discarded").Inc()
		} else {
			res.Updated++
			metrics.QUpdatesTotal.WithLabelValues("applied").Inc()
			metrics.Reward.Observe(rec.Reward)
		}
		s.journalUpdate(day, byUID[rec.CampaignUID], rec)
	}

	s.day = day
	clear(s.bidOn)

	// 2. Rank and cap
	ranked := Rank(active)
	limit := len(ranked)
	if s.cfg.MaxActiveCampaigns > 0 && s.cfg.MaxActiveCampaigns < limit {
		limit = s.cfg.MaxActiveCampaigns
	}
	for _, st := range ranked[limit:] {
		res.Skipped++
		metrics.BidsSkippedTotal.WithLabelValues(reasonOverCap).Inc()
		s.journalSkip(day, st, reasonOverCap)
	}

	// 3. Decide
	for _, st := range ranked[:limit] {
		d := s.learner.ChooseAction(st, day)
		if !d.Bid {
			res.Skipped++
			metrics.BidsSkippedTotal.WithLabelValues(d.Reason).Inc()
			s.journalSkip(day, st, d.Reason)
			continue
		}
		s.learner.RecordDecision(d, day, st.Progress)
		s.bidOn[st.UID] = st

		if d.Explored {
			res.Explored++
			metrics.ExploreTotal.Inc()
		}
		metrics.BidsTotal.WithLabelValues(string(s.learner.Config().Scheme)).Inc()
		metrics.BidPrice.Observe(d.Price)

		res.Bids = append(res.Bids, Bid{
			CampaignUID:  st.UID,
			Segment:      st.Segment,
			PricePerItem: d.Price,
			Limit:        d.Limit,
		})
		s.journalBid(day, st, d)
	}

	klog.V(2).InfoS("Day played", "game", s.game, "day", day, "active", len(active),
		"bids", len(res.Bids), "skipped", res.Skipped, "updated", res.Updated, "discarded", res.Discarded)
	return res
}

// Rank orders campaigns by remaining budget, largest first, breaking ties by
// uid. Unknown budgets count as zero. The input is not modified.
func Rank(active []campaign.Status) []campaign.Status {
	out := make([]campaign.Status, len(active))
	copy(out, active)
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].RemainingBudget(), out[j].RemainingBudget()
		if bi != bj {
			return bi > bj
		}
		return out[i].UID < out[j].UID
	})
	return out
}

// #endregion ad-bids

// #region update-from-reward
// UpdateFromReward credits an externally computed reward to the campaign's
// pending action. It reports false when nothing was pending.
func (s *Strategy) UpdateFromReward(uid int, reward float64) bool {
	rec, ok := s.learner.UpdateFromReward(uid, reward)
	if !ok {
		klog.V(3).InfoS("No pending action for reward", "campaign", uid)
		return false
	}
	metrics.QUpdatesTotal.WithLabelValues("applied").Inc()
	metrics.Reward.Observe(reward)
	s.journalUpdate(s.day, s.bidOn[uid], rec)
	delete(s.bidOn, uid)
	return true
}

// #endregion update-from-reward

// #region journal
func (s *Strategy) journalBid(day int, st campaign.Status, d learner.Decision) {
	e := s.entry(day, st, logging.KindBid)
	e.State, e.Action, e.Beta, e.Price = d.State, d.Action, d.Beta, d.Price
	s.record(e)
}

func (s *Strategy) journalSkip(day int, st campaign.Status, reason string) {
	e := s.entry(day, st, logging.KindSkip)
	e.Reason = reason
	s.record(e)
}

func (s *Strategy) journalUpdate(day int, st campaign.Status, rec learner.UpdateRecord) {
	kind := logging.KindUpdate
	if rec.Discarded {
		kind = logging.KindDiscard
	}
	st.UID = rec.CampaignUID
	e := s.entry(day, st, kind)
	e.State, e.Action = rec.State, rec.Action
	e.Reward, e.QAfter = rec.Reward, rec.After
	s.record(e)
}

func (s *Strategy) entry(day int, st campaign.Status, kind string) logging.DecisionEntry {
	return logging.DecisionEntry{
		Game:            s.game,
		Day:             day,
		Kind:            kind,
		CampaignUID:     st.UID,
		Reach:           st.Reach,
		Budget:          st.Budget.Amount,
		BudgetKnown:     st.Budget.Known,
		StartDay:        st.StartDay,
		EndDay:          st.EndDay,
		Segment:         st.Segment,
		CumulativeReach: st.Progress.Reach,
		CumulativeCost:  st.Progress.Cost,
		State:           -1,
		Action:          -1,
	}
}

func (s *Strategy) record(e logging.DecisionEntry) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(e); err != nil {
		klog.ErrorS(err, "Failed to journal decision", "kind", e.Kind, "campaign", e.CampaignUID, "day", e.Day)
	}
}

// #endregion journal
