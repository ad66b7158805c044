package learner

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/zachw1/AdX-Stencil-2025/internal/campaign"
	"github.com/zachw1/AdX-Stencil-2025/internal/qtable"
	"github.com/zachw1/AdX-Stencil-2025/internal/valuemodel"
	"k8s.io/klog/v2"
)

// #region learner
// Learner is a tabular Q-learning bid shader. One instance owns one Q-table
// and is driven one simulated day at a time; it is not safe for concurrent
// use.
type Learner struct {
	cfg   Config
	table *qtable.Table
	grid  []float64
	rng   *rand.Rand

	epsilon float64
	games   int

	// pending holds at most one entry per campaign, in insertion order.
	pending []PendingAction

	// ledger keeps the last observed profit of every campaign seen this game
	// so campaigns leaving the active set still count towards total profit.
	ledger      map[int]float64
	ledgerOrder []int
	lastTotal   float64
}

// New validates cfg and builds a learner around table. A nil table is
// replaced by a zeroed one of the right shape; a nil rng is seeded from the
// clock.
func New(cfg Config, table *qtable.Table, rng *rand.Rand) (*Learner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	states := cfg.Scheme.NumStates()
	if table == nil {
		t, err := qtable.New(states, cfg.NumActions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		table = t
	} else if table.States() != states || table.Actions() != cfg.NumActions {
		return nil, fmt.Errorf("%w: table is %dx%d, scheme %q with %d actions needs %dx%d",
			ErrInvalidConfig, table.States(), table.Actions(), cfg.Scheme, cfg.NumActions, states, cfg.NumActions)
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Learner{
		cfg:     cfg,
		table:   table,
		grid:    cfg.ActionGrid(),
		rng:     rng,
		epsilon: cfg.Epsilon,
		ledger:  make(map[int]float64),
	}, nil
}

// Config returns the configuration the learner was built with.
func (l *Learner) Config() Config { return l.cfg }

// Table returns the live Q-table. Callers persisting it should Clone first.
func (l *Learner) Table() *qtable.Table { return l.table }

// Grid returns a copy of the shading multipliers.
func (l *Learner) Grid() []float64 {
	out := make([]float64, len(l.grid))
	copy(out, l.grid)
	return out
}

// Epsilon is the current exploration rate.
func (l *Learner) Epsilon() float64 { return l.epsilon }

// Games is the number of games started since construction or Restore.
func (l *Learner) Games() int { return l.games }

// Pending returns a copy of the actions awaiting their reward.
func (l *Learner) Pending() []PendingAction {
	out := make([]PendingAction, len(l.pending))
	copy(out, l.pending)
	return out
}

// #endregion learner

// #region lifecycle
// Restore resumes exploration state saved from an earlier run.
func (l *Learner) Restore(epsilon float64, games int) {
	l.epsilon = math.Max(0, math.Min(1, epsilon))
	l.games = games
}

// OnNewGame clears per-game bookkeeping and applies the exploration decay.
// The Q-table is kept; call Reset to start learning from scratch.
func (l *Learner) OnNewGame() {
	if l.games > 0 {
		// A rate already under the floor stays where it is.
		floor := math.Min(l.cfg.EpsilonMin, l.epsilon)
		l.epsilon = math.Max(floor, l.epsilon*l.cfg.EpsilonDecay)
	}
	l.games++
	l.pending = l.pending[:0]
	l.resetLedger()
	klog.V(2).InfoS("New game", "game", l.games, "epsilon", l.epsilon)
}

// Reset zeroes the Q-table and drops all pending actions.
func (l *Learner) Reset() {
	l.table.Reset()
	l.pending = l.pending[:0]
	l.resetLedger()
}

func (l *Learner) resetLedger() {
	l.ledger = make(map[int]float64)
	l.ledgerOrder = l.ledgerOrder[:0]
	l.lastTotal = 0
}

// #endregion lifecycle

// #region policy
// SelectAction draws an action for state: uniformly at random with
// probability epsilon, otherwise the greedy action.
func (l *Learner) SelectAction(state int) (action int, explored bool) {
	if l.rng.Float64() < l.epsilon {
		return l.rng.Intn(l.table.Actions()), true
	}
	return l.table.BestAction(state), false
}

// #endregion policy

// #region choose-action
// ChooseAction picks today's shading for one campaign and derives its bid.
// Degenerate campaigns (unknown budget, nothing left to win or spend, or
// already over) are skipped without drawing an action.
func (l *Learner) ChooseAction(s campaign.Status, day int) Decision {
	d := Decision{CampaignUID: s.UID, State: -1, Action: -1}

	if reason := skipReason(s, day); reason != "" {
		d.Reason = reason
		return d
	}

	d.State = StateIndex(l.cfg.Scheme, s, day)
	d.Action, d.Explored = l.SelectAction(d.State)
	d.Beta = l.grid[d.Action]
	d.BasePrice = l.basePrice(s)
	d.Limit = s.RemainingBudget()
	d.Price = ClampPrice(d.Beta*d.BasePrice, l.cfg.MinPrice, l.cfg.MaxPrice, d.Limit)

	if d.Price <= 0 || math.IsNaN(d.Price) {
		d.Price = 0
		d.Reason = "non-positive price"
		return d
	}
	d.Bid = true

	klog.V(4).InfoS("Chose action", "campaign", s.UID, "day", day, "state", d.State,
		"action", d.Action, "beta", d.Beta, "base", d.BasePrice, "price", d.Price, "explored", d.Explored)
	return d
}

func skipReason(s campaign.Status, day int) string {
	switch {
	case !s.Budget.Known:
		return "unknown budget"
	case s.Reach <= 0:
		return "no reach target"
	case s.RemainingReach() <= 0:
		return "reach satisfied"
	case s.RemainingBudget() <= 0:
		return "budget exhausted"
	case s.DaysLeft(day) <= 0:
		return "campaign ended"
	}
	return ""
}

func (l *Learner) basePrice(s campaign.Status) float64 {
	remaining := s.RemainingReach()
	switch l.cfg.BasePrice {
	case BaseMarginalValue:
		return valuemodel.MarginalEffectiveReach(s.Progress.Reach, s.Reach) * s.Budget.Amount
	case BaseBudgetPerImpression:
		if remaining <= 0 {
			return 0
		}
		return s.RemainingBudget() / float64(remaining)
	default:
		return valuemodel.AverageValuePerImpression(s.Progress.Reach, s.Reach, s.Budget.Amount, remaining)
	}
}

// ClampPrice bounds a shaded price to [minPrice, limit], applying maxPrice
// when positive. The limit always wins, so a campaign with less than
// minPrice left bids exactly what it has.
func ClampPrice(price, minPrice, maxPrice, limit float64) float64 {
	if price < minPrice {
		price = minPrice
	}
	if maxPrice > 0 && price > maxPrice {
		price = maxPrice
	}
	if price > limit {
		price = limit
	}
	return price
}

// #endregion choose-action

// #region pending
// RecordPending stores the action taken for a campaign today, replacing any
// earlier entry for the same campaign.
func (l *Learner) RecordPending(uid, state, action int, snapshot campaign.Progress) {
	l.recordPending(PendingAction{CampaignUID: uid, State: state, Action: action, Snapshot: snapshot})
}

func (l *Learner) recordPending(p PendingAction) {
	if p.State < 0 || p.State >= l.table.States() || p.Action < 0 || p.Action >= l.table.Actions() {
		klog.InfoS("Ignoring out-of-range pending action", "campaign", p.CampaignUID, "state", p.State, "action", p.Action)
		return
	}
	for i := range l.pending {
		if l.pending[i].CampaignUID == p.CampaignUID {
			l.pending[i] = p
			return
		}
	}
	l.pending = append(l.pending, p)
}

// RecordDecision stores a bidding decision as a pending action.
func (l *Learner) RecordDecision(d Decision, day int, snapshot campaign.Progress) {
	if !d.Bid {
		return
	}
	l.recordPending(PendingAction{CampaignUID: d.CampaignUID, State: d.State, Action: d.Action, Day: day, Snapshot: snapshot})
}

func (l *Learner) takePending(uid int) (PendingAction, bool) {
	for i, p := range l.pending {
		if p.CampaignUID == uid {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return p, true
		}
	}
	return PendingAction{}, false
}

// #endregion pending

// #region update
// UpdateFromReward applies the immediate-reward update Q += α(r − Q) to the
// campaign's pending action and consumes it. It reports false when nothing
// was pending for uid.
func (l *Learner) UpdateFromReward(uid int, reward float64) (UpdateRecord, bool) {
	p, ok := l.takePending(uid)
	if !ok {
		return UpdateRecord{}, false
	}
	return l.apply(p, reward, reward), true
}

// BatchUpdate rewards every pending action from the campaigns' state on day
// and clears the pending set. Entries whose campaign is no longer in active
// are discarded without touching the table. Entries are processed in the
// order they were recorded.
func (l *Learner) BatchUpdate(active []campaign.Status, day int) []UpdateRecord {
	byUID := make(map[int]campaign.Status, len(active))
	for _, s := range active {
		byUID[s.UID] = s
	}

	globalReward := l.observeProfit(active)

	records := make([]UpdateRecord, 0, len(l.pending))
	for _, p := range l.pending {
		s, ok := byUID[p.CampaignUID]
		if !ok {
			klog.V(3).InfoS("Discarded pending action", "campaign", p.CampaignUID, "day", day)
			records = append(records, UpdateRecord{
				CampaignUID: p.CampaignUID,
				State:       p.State,
				Action:      p.Action,
				Discarded:   true,
			})
			continue
		}

		reward := globalReward
		if l.cfg.Reward == RewardPerCampaign {
			reward = CampaignReward(s, p.Snapshot)
		}

		target := reward
		if l.cfg.Bootstrap {
			target += l.cfg.Discount * l.futureValue(s, day)
		}
		records = append(records, l.apply(p, reward, target))
	}
	l.pending = l.pending[:0]
	return records
}

func (l *Learner) apply(p PendingAction, reward, target float64) UpdateRecord {
	before := l.table.Value(p.State, p.Action)
	after := l.table.Update(p.State, p.Action, target, l.cfg.LearningRate)
	klog.V(3).InfoS("Q update", "campaign", p.CampaignUID, "state", p.State, "action", p.Action,
		"reward", reward, "before", before, "after", after)
	return UpdateRecord{
		CampaignUID: p.CampaignUID,
		State:       p.State,
		Action:      p.Action,
		Reward:      reward,
		Target:      target,
		Before:      before,
		After:       after,
	}
}

// futureValue is max_a Q[s', a] for the campaign's state on day, or 0 once
// it has ended or has nothing left to win.
func (l *Learner) futureValue(s campaign.Status, day int) float64 {
	if s.DaysLeft(day) <= 0 || s.RemainingReach() <= 0 {
		return 0
	}
	return l.table.MaxValue(StateIndex(l.cfg.Scheme, s, day))
}

// observeProfit refreshes the profit ledger and returns the change in total
// profit since the previous call.
func (l *Learner) observeProfit(active []campaign.Status) float64 {
	for _, s := range active {
		if !s.Budget.Known {
			continue
		}
		if _, seen := l.ledger[s.UID]; !seen {
			l.ledgerOrder = append(l.ledgerOrder, s.UID)
		}
		l.ledger[s.UID] = valuemodel.Profit(s.Progress.Reach, s.Reach, s.Budget.Amount, s.Progress.Cost)
	}
	var total float64
	for _, uid := range l.ledgerOrder {
		total += l.ledger[uid]
	}
	delta := total - l.lastTotal
	l.lastTotal = total
	return delta
}

// CampaignReward is the value a campaign gained since prev minus what it
// spent: Δ(ρ·budget) − Δcost.
func CampaignReward(s campaign.Status, prev campaign.Progress) float64 {
	budget := s.Budget.Or(0)
	gained := valuemodel.EffectiveReach(s.Progress.Reach, s.Reach)*budget -
		valuemodel.EffectiveReach(prev.Reach, s.Reach)*budget
	return gained - (s.Progress.Cost - prev.Cost)
}

// #endregion update
