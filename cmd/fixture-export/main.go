package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zachw1/AdX-Stencil-2025/internal/logging"
	"github.com/zachw1/AdX-Stencil-2025/internal/replay"
	"github.com/zachw1/AdX-Stencil-2025/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to adx.db")
	runID := flag.String("run", "", "run id to export (default: most recent run)")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/adx.db --out path/to/fixture.json [--run id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *runID, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, runID, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	if runID == "" {
		runID, err = logging.LatestRunID(st.DB())
		if err != nil {
			return err
		}
	}

	entries, err := logging.ReadDecisions(st.DB(), runID, "")
	if err != nil {
		return err
	}
	fmt.Printf("Found %d journal rows for run %s\n", len(entries), runID)

	fixture, err := replay.FromDecisions(entries)
	if err != nil {
		return err
	}

	if err := replay.WriteFixture(outPath, fixture); err != nil {
		return err
	}

	days := 0
	for _, g := range fixture.Games {
		days += len(g.Days)
	}
	fmt.Printf("Wrote fixture to %s (%d games, %d days)\n", outPath, len(fixture.Games), days)
	return nil
}

// #endregion extract
