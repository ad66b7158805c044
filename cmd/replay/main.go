package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zachw1/AdX-Stencil-2025/internal/eval"
	"github.com/zachw1/AdX-Stencil-2025/internal/logging"
	"github.com/zachw1/AdX-Stencil-2025/internal/replay"
	"github.com/zachw1/AdX-Stencil-2025/internal/store"
	"k8s.io/klog/v2"
)

// #region main

func main() {
	klog.InitFlags(nil)
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	shades := flag.String("shades", "", "comma-separated fixed shading multipliers to compare, e.g. 0.6,0.8,1.0")
	dbPath := flag.String("db", "", "persist the learned table and journal to this database")
	flag.Parse()
	defer klog.Flush()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--db path/to/adx.db]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json --shades 0.6,0.8,1.0")
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}

	var exitCode int
	if *shades != "" {
		exitCode = runShadeMode(f, *shades)
	} else {
		exitCode = runFixtureMode(f, *dbPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(f *replay.Fixture, dbPath string) int {
	var st *store.Store
	var journal *logging.Journal
	if dbPath != "" {
		var err error
		st, err = store.NewStore(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open db: %v\n", err)
			return 2
		}
		defer st.Close()
		journal = logging.NewJournal(st.DB(), uuid.New().String())
	}

	s, err := replay.NewStrategy(f.Config, nil, journal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build strategy: %v\n", err)
		return 2
	}

	results := replay.Replay(s, f.Games, f.Config.Eval)
	summary := replay.Summarize(results, f.Games)
	printSummary(summary)

	// The replay learned from zeros, so its table starts a new lineage.
	if st != nil {
		l := s.Learner()
		snap := store.NewSnapshot("", string(l.Config().Scheme), l.Grid(), l.Table(), l.Epsilon(), l.Games())
		res := eval.NewEvalHarness(f.Config.Eval).Run(snap)
		if !res.Passed {
			fmt.Fprintf(os.Stderr, "not persisting: %s\n", res.Reason)
			return 1
		}
		if err := st.Commit(snap); err != nil {
			fmt.Fprintf(os.Stderr, "commit: %v\n", err)
			return 2
		}
		fmt.Printf("\nPersisted version %s (run %s)\n", snap.VersionID, journal.RunID())
	}

	if len(f.ExpectedBids) == 0 {
		return 0
	}
	fmt.Println()
	return printComparison(results, f.ExpectedBids)
}

// #endregion fixture-mode

// #region shade-mode

// runShadeMode replays the trace once per fixed multiplier. Deliveries are
// recorded, so shades differ in what they would have paid, not in what they
// won.
func runShadeMode(f *replay.Fixture, list string) int {
	var betas []float64
	for _, part := range strings.Split(list, ",") {
		b, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || b <= 0 {
			fmt.Fprintf(os.Stderr, "invalid shade %q\n", part)
			return 2
		}
		betas = append(betas, b)
	}

	fmt.Printf("%-8s| %6s| %10s| %12s| %s\n", "Shade", "Bids", "Mean price", "Max spend", "Profit")
	fmt.Printf("%-8s+%7s+%11s+%13s+%s\n", "--------", "-------", "-----------", "-------------", "----------")
	for _, b := range betas {
		cfg := f.Config
		cfg.Learner.NumActions = 1
		cfg.Learner.BetaMin = b
		cfg.Learner.BetaMax = b
		cfg.Learner.Epsilon = 0
		cfg.Learner.EpsilonMin = 0

		s, err := replay.NewStrategy(cfg, nil, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shade %g: %v\n", b, err)
			return 2
		}
		results := replay.Replay(s, f.Games, cfg.Eval)
		summary := replay.Summarize(results, f.Games)

		var exposure float64
		for _, r := range results {
			for _, bid := range r.Bids {
				exposure += bid.Limit
			}
		}
		fmt.Printf("%-8.2f| %6d| %10.4f| %12.2f| %.2f\n", b, summary.Bids, summary.MeanPrice, exposure, summary.TotalProfit)
	}
	return 0
}

// #endregion shade-mode

// #region output

func printSummary(s replay.ReplaySummary) {
	fmt.Printf("Replayed %d games, %d days: %d bids, %d skipped, %d updates, %d discarded, %d explored\n",
		s.Games, s.Days, s.Bids, s.Skipped, s.Updates, s.Discarded, s.Explored)
	if s.EvalFails > 0 {
		fmt.Printf("Eval failures: %d\n", s.EvalFails)
	}
	fmt.Printf("Mean bid price: %.4f\n\n", s.MeanPrice)

	fmt.Printf("%-5s| %-6s| %8s| %10s| %10s| %8s| %10s\n", "Game", "UID", "Reach", "Won", "Cost", "ρ", "Profit")
	fmt.Printf("%-5s+%7s+%9s+%11s+%11s+%9s+%s\n", "-----", "-------", "---------", "-----------", "-----------", "---------", "----------")
	for _, c := range s.Campaigns {
		profit := "—"
		if c.BudgetKnown {
			profit = fmt.Sprintf("%.2f", c.Profit)
		}
		fmt.Printf("%-5d| %-6d| %8d| %10d| %10.2f| %8.4f| %10s\n",
			c.Game, c.UID, c.Reach, c.FinalReach, c.FinalCost, c.EffectiveReach, profit)
	}
	fmt.Printf("\nTotal profit (known budgets): %.2f\n", s.TotalProfit)
}

// printComparison lists expected vs replayed bidders per day and returns the
// exit code.
func printComparison(results []replay.ReplayResult, expected []replay.FixtureExpectedBids) int {
	fmt.Printf("%-10s| %-20s| %-20s| %s\n", "Game/Day", "Expected", "Replayed", "Match")
	fmt.Printf("%-10s+%-21s+%-21s+%s\n", "----------", "---------------------", "---------------------", "------")

	got := map[[2]int][]int{}
	for _, r := range results {
		got[[2]int{r.Game, r.Day}] = r.BidUIDs()
	}

	matches := 0
	for _, e := range expected {
		replayed := got[[2]int{e.Game, e.Day}]
		match := "DIFF"
		if sameUIDs(e.CampaignUIDs, replayed) {
			match = "OK"
			matches++
		}
		fmt.Printf("%-10s| %-20s| %-20s| %s\n", fmt.Sprintf("%d/%d", e.Game, e.Day),
			formatUIDs(e.CampaignUIDs), formatUIDs(replayed), match)
	}

	diverge := len(expected) - matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", len(expected), matches, diverge)
	if diverge > 0 {
		return 1
	}
	return 0
}

func sameUIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatUIDs(uids []int) string {
	parts := make([]string, len(uids))
	for i, u := range uids {
		parts[i] = strconv.Itoa(u)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// #endregion output
