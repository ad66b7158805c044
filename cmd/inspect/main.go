package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/zachw1/AdX-Stencil-2025/internal/learner"
	"github.com/zachw1/AdX-Stencil-2025/internal/store"
	"gonum.org/v1/gonum/floats"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to adx.db")
	last := flag.Int("last", 20, "show N most recent versions")
	version := flag.String("version", "", "show single version detail (\"current\" for the active one)")
	rollback := flag.String("rollback", "", "make this version active")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/adx.db [--last N] [--version id|current] [--rollback id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case *rollback != "":
		err = runRollback(st, *rollback)
	case *version != "":
		err = runDetailMode(st, *version, *jsonOut)
	default:
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string  `json:"version_id"`
	ParentID  string  `json:"parent_id,omitempty"`
	Active    bool    `json:"active"`
	Scheme    string  `json:"scheme"`
	Shape     string  `json:"shape"`
	Games     int     `json:"games"`
	Epsilon   float64 `json:"epsilon"`
	MaxAbsQ   float64 `json:"max_abs_q"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	versions, err := st.ListVersions(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}
	activeID := ""
	if cur, err := st.GetCurrent(); err == nil {
		activeID = cur.VersionID
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID: v.VersionID,
			ParentID:  v.ParentID,
			Active:    v.VersionID == activeID,
			Scheme:    v.Scheme,
			Shape:     fmt.Sprintf("%dx%d", v.Table.States(), v.Table.Actions()),
			Games:     v.Games,
			Epsilon:   v.Epsilon,
			MaxAbsQ:   maxAbs(v.Table.Flat()),
			CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-1s %-10s  %-10s  %-15s  %-5s  %6s  %7s  %10s  %s\n",
		"", "Version", "Parent", "Scheme", "Shape", "Games", "Epsilon", "Max |Q|", "Time")
	fmt.Printf("%-1s %-10s+-%-10s+-%-15s+-%-5s+-%6s+-%7s+-%10s+-%s\n",
		"", "----------", "----------", "---------------", "-----", "------", "-------", "----------", "--------------------")
	for _, r := range rows {
		mark := " "
		if r.Active {
			mark = "*"
		}
		parent := "—"
		if r.ParentID != "" {
			parent = shortID(r.ParentID)
		}
		fmt.Printf("%-1s %-10s  %-10s  %-15s  %-5s  %6d  %7.4f  %10.4f  %s\n",
			mark, shortID(r.VersionID), parent, r.Scheme, r.Shape, r.Games, r.Epsilon, r.MaxAbsQ, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type stateRow struct {
	State      int       `json:"state"`
	Label      string    `json:"label"`
	Values     []float64 `json:"values"`
	BestAction int       `json:"best_action"`
	BestBeta   float64   `json:"best_beta"`
	Visited    bool      `json:"visited"`
}

type detailOutput struct {
	VersionID   string          `json:"version_id"`
	ParentID    string          `json:"parent_id"`
	CreatedAt   string          `json:"created_at"`
	Scheme      string          `json:"scheme"`
	Games       int             `json:"games"`
	Epsilon     float64         `json:"epsilon"`
	Grid        []float64       `json:"grid"`
	States      []stateRow      `json:"states"`
	EvalMetrics json.RawMessage `json:"eval_metrics,omitempty"`
}

func runDetailMode(st *store.Store, versionID string, jsonOut bool) error {
	var snap store.Snapshot
	var err error
	if versionID == "current" {
		snap, err = st.GetCurrent()
	} else {
		snap, err = st.GetVersion(versionID)
	}
	if err != nil {
		return err
	}

	out := detailOutput{
		VersionID: snap.VersionID,
		ParentID:  snap.ParentID,
		CreatedAt: snap.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Scheme:    snap.Scheme,
		Games:     snap.Games,
		Epsilon:   snap.Epsilon,
		Grid:      snap.Grid,
	}
	if snap.MetricsJSON != "" {
		out.EvalMetrics = json.RawMessage(snap.MetricsJSON)
	}
	for s := 0; s < snap.Table.States(); s++ {
		row := snap.Table.Row(s)
		best := snap.Table.BestAction(s)
		r := stateRow{
			State:      s,
			Label:      stateLabel(snap.Scheme, s),
			Values:     row,
			BestAction: best,
			Visited:    maxAbs(row) > 0,
		}
		if best < len(snap.Grid) {
			r.BestBeta = snap.Grid[best]
		}
		out.States = append(out.States, r)
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:  %s\n", out.VersionID)
	fmt.Printf("Parent:   %s\n", out.ParentID)
	fmt.Printf("Created:  %s\n", out.CreatedAt)
	fmt.Printf("Scheme:   %s\n", out.Scheme)
	fmt.Printf("Games:    %d\n", out.Games)
	fmt.Printf("Epsilon:  %.4f\n", out.Epsilon)

	fmt.Printf("\n%-14s", "State")
	for _, b := range out.Grid {
		fmt.Printf(" %8.2f", b)
	}
	fmt.Printf("  %s\n", "Greedy β")
	for _, r := range out.States {
		fmt.Printf("%-14s", r.Label)
		for _, v := range r.Values {
			fmt.Printf(" %8.3f", v)
		}
		greedy := "—"
		if r.Visited {
			greedy = fmt.Sprintf("%.2f", r.BestBeta)
		}
		fmt.Printf("  %s\n", greedy)
	}
	return nil
}

// #endregion detail-mode

// #region rollback

func runRollback(st *store.Store, versionID string) error {
	if err := st.Rollback(versionID); err != nil {
		return err
	}
	fmt.Printf("Active version is now %s\n", versionID)
	return nil
}

// #endregion rollback

// #region output

var bucketNames = []string{"low", "mid", "high"}

// stateLabel names a state index by its urgency and pacing buckets.
func stateLabel(scheme string, s int) string {
	switch learner.StateScheme(scheme) {
	case learner.SchemeUrgency:
		if s < len(bucketNames) {
			return "urgency=" + bucketNames[s]
		}
	case learner.SchemeUrgencyPacing:
		u, p := s/3, s%3
		if u < len(bucketNames) {
			return fmt.Sprintf("u=%s p=%s", bucketNames[u], bucketNames[p])
		}
	}
	return fmt.Sprintf("state %d", s)
}

func maxAbs(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Max(math.Abs(floats.Max(v)), math.Abs(floats.Min(v)))
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
