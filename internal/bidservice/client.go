package bidservice

import (
	"context"
	"fmt"

	"github.com/zachw1/AdX-Stencil-2025/internal/replay"
	"github.com/zachw1/AdX-Stencil-2025/internal/strategy"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client calls a remote adx.BidShading service.
type Client struct {
	conn *grpc.ClientConn
}

// #endregion client-struct

// #region constructor
// NewClient connects to addr. Without options the connection is insecure.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// #endregion constructor

// #region daily-bids
// DailyBids pushes one day of observations and returns the bids.
func (c *Client) DailyBids(ctx context.Context, day replay.Day) (strategy.DayResult, error) {
	var out strategy.DayResult
	if err := c.call(ctx, DailyBidsMethod, day, &out); err != nil {
		return strategy.DayResult{}, fmt.Errorf("daily bids rpc: %w", err)
	}
	return out, nil
}

// #endregion daily-bids

// #region update-from-reward
// UpdateFromReward credits reward to the campaign's pending action.
func (c *Client) UpdateFromReward(ctx context.Context, uid int, reward float64) (bool, error) {
	var out RewardResponse
	if err := c.call(ctx, UpdateFromRewardMethod, RewardRequest{CampaignUID: uid, Reward: reward}, &out); err != nil {
		return false, fmt.Errorf("update from reward rpc: %w", err)
	}
	return out.Applied, nil
}

// #endregion update-from-reward

// #region new-game
// NewGame starts the next game.
func (c *Client) NewGame(ctx context.Context) (GameInfo, error) {
	var out GameInfo
	if err := c.callEmpty(ctx, NewGameMethod, &out); err != nil {
		return GameInfo{}, fmt.Errorf("new game rpc: %w", err)
	}
	return out, nil
}

// #endregion new-game

// #region snapshot
// Snapshot asks the server to persist its table.
func (c *Client) Snapshot(ctx context.Context) (SnapshotInfo, error) {
	var out SnapshotInfo
	if err := c.callEmpty(ctx, SnapshotMethod, &out); err != nil {
		return SnapshotInfo{}, fmt.Errorf("snapshot rpc: %w", err)
	}
	return out, nil
}

// #endregion snapshot

// #region helpers
func (c *Client) call(ctx context.Context, method string, req, resp interface{}) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return err
	}
	return fromStruct(out, resp)
}

func (c *Client) callEmpty(ctx context.Context, method string, resp interface{}) error {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, &emptypb.Empty{}, out); err != nil {
		return err
	}
	return fromStruct(out, resp)
}

// #endregion helpers
