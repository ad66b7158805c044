package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/zachw1/AdX-Stencil-2025/internal/qtable"
)

// #region snapshot
// Snapshot is a versioned copy of a learner's Q-table together with the
// exploration state needed to resume it.
type Snapshot struct {
	VersionID   string
	ParentID    string
	Scheme      string
	Grid        []float64 // shading multiplier per action
	Table       *qtable.Table
	Epsilon     float64
	Games       int
	CreatedAt   time.Time
	MetricsJSON string
}

// NewSnapshot builds a child of parentID holding a copy of table.
func NewSnapshot(parentID, scheme string, grid []float64, table *qtable.Table, epsilon float64, games int) Snapshot {
	g := make([]float64, len(grid))
	copy(g, grid)
	return Snapshot{
		VersionID: uuid.New().String(),
		ParentID:  parentID,
		Scheme:    scheme,
		Grid:      g,
		Table:     table.Clone(),
		Epsilon:   epsilon,
		Games:     games,
		CreatedAt: time.Now().UTC(),
	}
}

// #endregion snapshot
