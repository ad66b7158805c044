package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zachw1/AdX-Stencil-2025/internal/bidservice"
	"github.com/zachw1/AdX-Stencil-2025/internal/config"
	"github.com/zachw1/AdX-Stencil-2025/internal/learner"
	"github.com/zachw1/AdX-Stencil-2025/internal/logging"
	"github.com/zachw1/AdX-Stencil-2025/internal/metrics"
	"github.com/zachw1/AdX-Stencil-2025/internal/qtable"
	"github.com/zachw1/AdX-Stencil-2025/internal/store"
	"github.com/zachw1/AdX-Stencil-2025/internal/strategy"
	"gonum.org/v1/gonum/floats"
	"google.golang.org/grpc"
	"k8s.io/klog/v2"
)

// #region main
func main() {
	klog.InitFlags(nil)
	configPath := flag.String("config", envOr("ADX_CONFIG", ""), "path to YAML config (optional)")
	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err, "Failed to load configuration")
	}
	cfg.Log()
	metrics.Init()

	// Open the store only when something needs it
	var st *store.Store
	if cfg.Store.Persist || cfg.Store.Journal {
		st, err = store.NewStore(cfg.Store.Path)
		if err != nil {
			fatal(err, "Failed to open store", "path", cfg.Store.Path)
		}
		defer st.Close()
	}

	var restored restoredState
	if cfg.Store.Persist {
		restored, err = restore(st, cfg.Learner)
		if err != nil {
			fatal(err, "Failed to restore Q-table")
		}
	}

	l, err := learner.New(cfg.Learner, restored.table, rand.New(rand.NewSource(seed(cfg.Seed))))
	if err != nil {
		fatal(err, "Failed to build learner")
	}
	if restored.table != nil {
		l.Restore(restored.epsilon, restored.games)
	}
	metrics.Epsilon.Set(l.Epsilon())

	var journal *logging.Journal
	if cfg.Store.Journal {
		journal = logging.NewJournal(st.DB(), uuid.New().String())
		klog.InfoS("Decision journal enabled", "run", journal.RunID())
	}

	var persistTo *store.Store
	if cfg.Store.Persist {
		persistTo = st
	}
	checks := bidservice.Checks{Gate: cfg.Gate, Eval: cfg.Eval}
	srv := bidservice.NewServer(strategy.New(l, cfg.Strategy, journal), persistTo, checks, restored.versionID)

	// gRPC
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		fatal(err, "Failed to listen", "addr", cfg.Server.GRPCAddr)
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(bidservice.UnaryInterceptor))
	bidservice.Register(gs, srv)

	// Metrics
	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				klog.ErrorS(err, "Metrics server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := gs.Serve(lis); err != nil {
			klog.ErrorS(err, "gRPC server stopped")
			stop()
		}
	}()
	klog.InfoS("Bid server ready", "grpc", cfg.Server.GRPCAddr, "metrics", cfg.Server.MetricsAddr,
		"scheme", cfg.Learner.Scheme, "persist", cfg.Store.Persist, "restored", restored.versionID)

	<-ctx.Done()
	klog.InfoS("Shutting down")
	gs.GracefulStop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		metricsServer.Shutdown(shutdownCtx)
		cancel()
	}

	if cfg.Store.Persist {
		info, err := srv.Persist()
		if err != nil {
			klog.ErrorS(err, "Failed to persist Q-table on shutdown")
		} else {
			klog.InfoS("Final snapshot", "committed", info.Committed, "version", info.VersionID, "reason", info.Reason)
		}
	}
}

// #endregion main

// #region restore
type restoredState struct {
	table     *qtable.Table
	versionID string
	epsilon   float64
	games     int
}

// restore loads the active snapshot when it matches cfg, and otherwise
// starts a fresh lineage with a zeroed table.
func restore(st *store.Store, cfg learner.Config) (restoredState, error) {
	grid := cfg.ActionGrid()
	states := cfg.Scheme.NumStates()

	cur, err := st.GetCurrent()
	switch {
	case err != nil:
		klog.InfoS("No active Q-table found, creating initial version")
	case cur.Scheme != string(cfg.Scheme) || cur.Table.States() != states ||
		len(cur.Grid) != len(grid) || !floats.EqualApprox(cur.Grid, grid, 1e-12):
		klog.InfoS("Active Q-table does not match configuration, starting a new lineage",
			"version", cur.VersionID, "scheme", cur.Scheme, "actions", len(cur.Grid))
	default:
		klog.InfoS("Restored Q-table", "version", cur.VersionID, "games", cur.Games, "epsilon", cur.Epsilon)
		return restoredState{table: cur.Table, versionID: cur.VersionID, epsilon: cur.Epsilon, games: cur.Games}, nil
	}

	initial, err := st.CreateInitial(string(cfg.Scheme), states, grid, cfg.Epsilon)
	if err != nil {
		return restoredState{}, err
	}
	return restoredState{table: initial.Table, versionID: initial.VersionID, epsilon: initial.Epsilon}, nil
}

// #endregion restore

// #region helpers
func seed(s int64) int64 {
	if s != 0 {
		return s
	}
	return time.Now().UnixNano()
}

func fatal(err error, msg string, kv ...interface{}) {
	klog.ErrorS(err, msg, kv...)
	klog.FlushAndExit(klog.ExitFlushTimeout, 1)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
