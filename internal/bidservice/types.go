package bidservice

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region messages
// Request and response bodies travel as google.protobuf.Struct; these are
// their Go shapes. DailyBids takes a replay.Day and returns a
// strategy.DayResult.

// RewardRequest credits an externally computed reward to one campaign.
type RewardRequest struct {
	CampaignUID int     `json:"campaign_uid"`
	Reward      float64 `json:"reward"`
}

// RewardResponse reports whether a pending action was found.
type RewardResponse struct {
	Applied bool `json:"applied"`
}

// GameInfo describes the game started by NewGame.
type GameInfo struct {
	Game    int     `json:"game"`
	GameID  string  `json:"game_id"`
	Epsilon float64 `json:"epsilon"`

	// Snapshot of the game that just ended, when persistence is on.
	Snapshot *SnapshotInfo `json:"snapshot,omitempty"`
}

// SnapshotInfo is the outcome of persisting the learner's table.
type SnapshotInfo struct {
	VersionID string  `json:"version_id,omitempty"`
	Games     int     `json:"games"`
	Epsilon   float64 `json:"epsilon"`
	Committed bool    `json:"committed"`
	// Reverted is set when a refused table was replaced in memory by the
	// last committed one.
	Reverted bool   `json:"reverted"`
	Reason   string `json:"reason"`
}

// #endregion messages

// #region struct-codec
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("to struct %T: %w", v, err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v interface{}) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("from struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// #endregion struct-codec
