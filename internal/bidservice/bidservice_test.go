package bidservice

import (
	"context"
	"math/rand"
	"net"
	"path/filepath"
	"testing"

	"github.com/zachw1/AdX-Stencil-2025/internal/learner"
	"github.com/zachw1/AdX-Stencil-2025/internal/replay"
	"github.com/zachw1/AdX-Stencil-2025/internal/store"
	"github.com/zachw1/AdX-Stencil-2025/internal/strategy"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region helpers
func newStrategy(t *testing.T) *strategy.Strategy {
	t.Helper()
	cfg := learner.DefaultConfig()
	cfg.Epsilon = 0
	cfg.EpsilonMin = 0
	l, err := learner.New(cfg, nil, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("learner.New: %v", err)
	}
	return strategy.New(l, strategy.DefaultConfig(), nil)
}

// startServer serves srv on an in-memory listener and returns a client.
func startServer(t *testing.T, srv *Server) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.UnaryInterceptor(UnaryInterceptor))
	Register(gs, srv)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func budget(v float64) *float64 { return &v }

func day(d int, won int, cost float64) replay.Day {
	return replay.Day{
		Day: d,
		Campaigns: []replay.CampaignObservation{
			{UID: 1, Reach: 1000, Budget: budget(500), StartDay: 1, EndDay: 3, Segment: "Male_Young",
				CumulativeReach: won, CumulativeCost: cost},
			{UID: 2, Reach: 400, Budget: nil, StartDay: 1, EndDay: 3},
		},
	}
}

// #endregion helpers

// #region rpc-tests
func TestDailyBidsRoundTrip(t *testing.T) {
	client := startServer(t, NewServer(newStrategy(t), nil, DefaultChecks(), ""))
	ctx := context.Background()

	if _, err := client.NewGame(ctx); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	res, err := client.DailyBids(ctx, day(1, 0, 0))
	if err != nil {
		t.Fatalf("DailyBids: %v", err)
	}
	if res.Day != 1 || len(res.Bids) != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	b := res.Bids[0]
	if b.CampaignUID != 1 || b.Segment != "Male_Young" || b.Limit != 500 || b.PricePerItem <= 0 {
		t.Fatalf("unexpected bid: %+v", b)
	}

	res, err = client.DailyBids(ctx, day(2, 200, 40))
	if err != nil {
		t.Fatalf("DailyBids: %v", err)
	}
	if res.Updated != 1 || res.Bids[0].Limit != 460 {
		t.Fatalf("expected yesterday settled and limit 460, got %+v", res)
	}
}

func TestUpdateFromRewardRPC(t *testing.T) {
	strat := newStrategy(t)
	client := startServer(t, NewServer(strat, nil, DefaultChecks(), ""))
	ctx := context.Background()

	client.NewGame(ctx)
	if _, err := client.DailyBids(ctx, day(1, 0, 0)); err != nil {
		t.Fatalf("DailyBids: %v", err)
	}

	applied, err := client.UpdateFromReward(ctx, 1, 5)
	if err != nil {
		t.Fatalf("UpdateFromReward: %v", err)
	}
	if !applied {
		t.Fatal("expected reward to be applied")
	}
	applied, _ = client.UpdateFromReward(ctx, 1, 5)
	if applied {
		t.Fatal("expected nothing pending on second reward")
	}
}

func TestNewGameAdvances(t *testing.T) {
	client := startServer(t, NewServer(newStrategy(t), nil, DefaultChecks(), ""))
	ctx := context.Background()

	first, err := client.NewGame(ctx)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	second, _ := client.NewGame(ctx)
	if first.Game != 1 || second.Game != 2 || first.GameID == second.GameID {
		t.Fatalf("unexpected games: %+v then %+v", first, second)
	}
	if second.Snapshot != nil {
		t.Fatal("expected no snapshot without a store")
	}
}

func TestSnapshotWithoutStore(t *testing.T) {
	client := startServer(t, NewServer(newStrategy(t), nil, DefaultChecks(), ""))

	_, err := client.Snapshot(context.Background())
	if status.Code(unwrap(err)) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestSnapshotCommitsAndChains(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "adx.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	client := startServer(t, NewServer(newStrategy(t), st, DefaultChecks(), ""))
	ctx := context.Background()

	client.NewGame(ctx)
	client.DailyBids(ctx, day(1, 0, 0))
	client.DailyBids(ctx, day(2, 200, 40))

	snap, err := client.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.Committed || snap.VersionID == "" || snap.Games != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	next, err := client.NewGame(ctx)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if next.Snapshot == nil || !next.Snapshot.Committed {
		t.Fatalf("expected NewGame to persist the finished game: %+v", next)
	}

	cur, err := st.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != next.Snapshot.VersionID || cur.ParentID != snap.VersionID {
		t.Fatalf("expected chained versions, got %s <- %s", cur.ParentID, cur.VersionID)
	}
	if cur.MetricsJSON == "" {
		t.Fatal("expected eval metrics stored with the snapshot")
	}
}

func TestSnapshotRejectedByEval(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "adx.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	strat := newStrategy(t)
	strat.Learner().Table().Set(0, 0, 1e9)
	srv := NewServer(strat, st, DefaultChecks(), "")

	info, err := srv.Persist()
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if info.Committed || info.VersionID != "" {
		t.Fatalf("expected rejection, got %+v", info)
	}
	if _, err := st.GetCurrent(); err == nil {
		t.Fatal("rejected snapshot must not become active")
	}
}

func TestSnapshotVetoedByGate(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "adx.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	strat := newStrategy(t)
	l := strat.Learner()
	initial, err := st.CreateInitial(string(l.Config().Scheme), l.Table().States(), l.Grid(), l.Epsilon())
	if err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}

	checks := DefaultChecks()
	checks.Gate.MaxDeltaNorm = 1
	l.Table().Set(4, 2, 3)
	srv := NewServer(strat, st, checks, initial.VersionID)

	info, err := srv.Persist()
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if info.Committed {
		t.Fatalf("expected gate veto, got %+v", info)
	}
	cur, _ := st.GetCurrent()
	if cur.VersionID != initial.VersionID {
		t.Fatal("vetoed snapshot must not become active")
	}
}

func TestSmallChangeCommitsAfterVeto(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "adx.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	strat := newStrategy(t)
	l := strat.Learner()
	initial, err := st.CreateInitial(string(l.Config().Scheme), l.Table().States(), l.Grid(), l.Epsilon())
	if err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}

	checks := DefaultChecks()
	checks.Gate.MaxDeltaNorm = 1
	srv := NewServer(strat, st, checks, initial.VersionID)

	l.Table().Set(4, 2, 3)
	vetoed, err := srv.Persist()
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if vetoed.Committed || !vetoed.Reverted {
		t.Fatalf("expected a veto with revert, got %+v", vetoed)
	}
	if got := l.Table().Value(4, 2); got != 0 {
		t.Fatalf("expected the parent's value back after the veto, got %g", got)
	}

	for i := 1; i <= 3; i++ {
		l.Table().Set(0, 1, l.Table().Value(0, 1)+0.1)
		info, err := srv.Persist()
		if err != nil {
			t.Fatalf("Persist %d: %v", i, err)
		}
		if !info.Committed {
			t.Fatalf("persist %d: expected a small change to commit, got %+v", i, info)
		}
	}

	cur, err := st.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.Table.Value(4, 2) != 0 || cur.Table.Value(0, 1) < 0.29 {
		t.Fatalf("unexpected committed table: Q[4,2]=%g Q[0,1]=%g", cur.Table.Value(4, 2), cur.Table.Value(0, 1))
	}
}

func TestEvalRejectionRevertsToZeros(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "adx.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	strat := newStrategy(t)
	strat.Learner().Table().Set(0, 0, 1e9)
	srv := NewServer(strat, st, DefaultChecks(), "")

	info, err := srv.Persist()
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if info.Committed || !info.Reverted {
		t.Fatalf("expected rejection with revert, got %+v", info)
	}
	if got := strat.Learner().Table().Value(0, 0); got != 0 {
		t.Fatalf("expected zeroed table, got %g", got)
	}

	info, err = srv.Persist()
	if err != nil || !info.Committed {
		t.Fatalf("expected the reverted table to commit, got %+v, %v", info, err)
	}
}

func TestDailyBidsRejectsMalformedRequest(t *testing.T) {
	srv := NewServer(newStrategy(t), nil, DefaultChecks(), "")
	bad, _ := structpb.NewStruct(map[string]interface{}{"day": "tuesday"})

	_, err := srv.DailyBids(context.Background(), bad)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

// #endregion rpc-tests

// unwrap returns the innermost error so status.Code can see the gRPC status.
func unwrap(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}
