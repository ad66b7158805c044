package bidservice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zachw1/AdX-Stencil-2025/internal/eval"
	"github.com/zachw1/AdX-Stencil-2025/internal/gate"
	"github.com/zachw1/AdX-Stencil-2025/internal/metrics"
	"github.com/zachw1/AdX-Stencil-2025/internal/replay"
	"github.com/zachw1/AdX-Stencil-2025/internal/store"
	"github.com/zachw1/AdX-Stencil-2025/internal/strategy"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/klog/v2"
)

// #region server-struct
// Server exposes a Strategy over gRPC. The strategy and its learner are
// single-threaded, so every call holds mu.
type Server struct {
	mu       sync.Mutex
	strategy *strategy.Strategy
	store    *store.Store
	gate     *gate.Gate
	harness  *eval.EvalHarness
	parentID string
}

// Checks are the validations a snapshot must pass before it is committed.
type Checks struct {
	Gate gate.GateConfig
	Eval eval.EvalConfig
}

// DefaultChecks returns the default gate and eval thresholds.
func DefaultChecks() Checks {
	return Checks{Gate: gate.DefaultGateConfig(), Eval: eval.DefaultEvalConfig()}
}

// NewServer wraps s. st may be nil to disable persistence; parentID is the
// version the learner's table was restored from, if any.
func NewServer(s *strategy.Strategy, st *store.Store, checks Checks, parentID string) *Server {
	return &Server{
		strategy: s,
		store:    st,
		gate:     gate.NewGate(checks.Gate),
		harness:  eval.NewEvalHarness(checks.Eval),
		parentID: parentID,
	}
}

// #endregion server-struct

// #region rpcs
// DailyBids plays one day from the pushed campaign observations.
func (s *Server) DailyBids(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var day replay.Day
	if err := fromStruct(in, &day); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "daily bids: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	s.mu.Lock()
	res := s.strategy.PlayDay(day.Environment())
	s.mu.Unlock()

	return reply(res)
}

// UpdateFromReward credits a reward to a campaign's pending action.
func (s *Server) UpdateFromReward(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RewardRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "update from reward: %v", err)
	}

	s.mu.Lock()
	applied := s.strategy.UpdateFromReward(req.CampaignUID, req.Reward)
	s.mu.Unlock()

	return reply(RewardResponse{Applied: applied})
}

// NewGame persists the finished game's table, when there was one, and starts
// the next game.
func (s *Server) NewGame(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var info GameInfo
	if s.store != nil && s.strategy.Game() > 0 {
		snap, err := s.persistLocked()
		if err != nil {
			return nil, status.Errorf(codes.Internal, "new game: %v", err)
		}
		info.Snapshot = &snap
	}

	s.strategy.OnNewGame()
	info.Game = s.strategy.Game()
	info.GameID = s.strategy.GameID()
	info.Epsilon = s.strategy.Learner().Epsilon()
	return reply(info)
}

// Snapshot persists the learner's table now.
func (s *Server) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "snapshot: persistence is disabled")
	}
	snap, err := s.Persist()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "snapshot: %v", err)
	}
	return reply(snap)
}

// #endregion rpcs

// #region persist
// Persist runs the learner's table through the gate against its parent and
// through eval, then commits it as a new version. A table failing either is
// not committed and the learner falls back to the parent's values; that is
// reported, not returned as an error.
func (s *Server) Persist() (SnapshotInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Server) persistLocked() (SnapshotInfo, error) {
	if s.store == nil {
		return SnapshotInfo{}, fmt.Errorf("persistence is disabled")
	}
	l := s.strategy.Learner()
	snap := store.NewSnapshot(s.parentID, string(l.Config().Scheme), l.Grid(), l.Table(), l.Epsilon(), l.Games())

	info := SnapshotInfo{Games: snap.Games, Epsilon: snap.Epsilon}

	// 1. Gate against the parent
	var parent *store.Snapshot
	if s.parentID != "" {
		p, err := s.store.GetVersion(s.parentID)
		if err != nil {
			return SnapshotInfo{}, fmt.Errorf("load parent: %w", err)
		}
		parent = &p
		decision := s.gate.Evaluate(p, snap)
		if decision.Vetoed {
			metrics.SnapshotsTotal.WithLabelValues("rejected").Inc()
			klog.InfoS("Snapshot vetoed", "reason", decision.Reason, "parent", s.parentID)
			info.Reason = decision.Reason
			info.Reverted = s.revertLocked(parent)
			return info, nil
		}
		klog.V(2).InfoS("Snapshot passed gate", "deltaNorm", decision.DeltaNorm, "policyStability", decision.PolicyStability)
	}

	// 2. Eval
	result := s.harness.Run(snap)
	info.Reason = result.Reason
	if !result.Passed {
		metrics.SnapshotsTotal.WithLabelValues("rejected").Inc()
		klog.InfoS("Snapshot rejected", "reason", result.Reason, "games", snap.Games)
		info.Reverted = s.revertLocked(parent)
		return info, nil
	}

	if data, err := json.Marshal(result.Metrics); err == nil {
		snap.MetricsJSON = string(data)
	}
	if err := s.store.Commit(snap); err != nil {
		return SnapshotInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}
	metrics.SnapshotsTotal.WithLabelValues("committed").Inc()
	s.parentID = snap.VersionID

	info.VersionID = snap.VersionID
	info.Committed = true
	klog.InfoS("Snapshot committed", "version", snap.VersionID, "games", snap.Games, "epsilon", snap.Epsilon)
	return info, nil
}

// revertLocked puts the last committed values back into the learner's table,
// so the next persist is measured against a parent it actually descends
// from. With no parent the table goes back to zeros. Exploration state and
// pending actions are kept.
func (s *Server) revertLocked(parent *store.Snapshot) bool {
	table := s.strategy.Learner().Table()
	if parent == nil {
		table.Reset()
		klog.InfoS("Reverted Q-table to zeros")
		return true
	}
	if err := table.CopyFrom(parent.Table); err != nil {
		klog.ErrorS(err, "Failed to revert Q-table", "parent", parent.VersionID)
		return false
	}
	klog.InfoS("Reverted Q-table to parent", "parent", parent.VersionID)
	return true
}

// #endregion persist

func reply(v interface{}) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
