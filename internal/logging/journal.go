package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a decision entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var budget interface{}
	if entry.BudgetKnown {
		budget = entry.Budget
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (run_id, game, day, kind, campaign_uid, reach, budget, start_day, end_day,
		   segment, cumulative_reach, cumulative_cost, state_index, action_index, beta, price, reward, q_after,
		   reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Game,
		entry.Day,
		entry.Kind,
		entry.CampaignUID,
		entry.Reach,
		budget,
		entry.StartDay,
		entry.EndDay,
		nullIfEmpty(entry.Segment),
		entry.CumulativeReach,
		entry.CumulativeCost,
		entry.State,
		entry.Action,
		entry.Beta,
		entry.Price,
		entry.Reward,
		entry.QAfter,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region journal
// Journal binds LogDecision to one database and run.
type Journal struct {
	db    *sql.DB
	runID string
}

// NewJournal returns a journal writing rows tagged with runID.
func NewJournal(db *sql.DB, runID string) *Journal {
	return &Journal{db: db, runID: runID}
}

// RunID is the identifier stamped on every row.
func (j *Journal) RunID() string { return j.runID }

// Record stamps the run id and writes the entry.
func (j *Journal) Record(entry DecisionEntry) error {
	entry.RunID = j.runID
	return LogDecision(j.db, entry)
}

// #endregion journal

// #region read
// LatestRunID returns the run with the most recent decision row.
func LatestRunID(db *sql.DB) (string, error) {
	var runID string
	err := db.QueryRow(`SELECT run_id FROM decision_log ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return runID, nil
}

// ReadDecisions returns every row of a run in insertion order, optionally
// filtered to one kind.
func ReadDecisions(db *sql.DB, runID, kind string) ([]DecisionEntry, error) {
	query := `SELECT run_id, game, day, kind, campaign_uid, reach, budget, start_day, end_day, segment,
		cumulative_reach, cumulative_cost, state_index, action_index, beta, price, reward, q_after, reason, created_at
		FROM decision_log WHERE run_id = ?`
	args := []interface{}{runID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("read decisions: %w", err)
	}
	defer rows.Close()

	var entries []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var budget sql.NullFloat64
		var segment, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Game, &e.Day, &e.Kind, &e.CampaignUID, &e.Reach, &budget,
			&e.StartDay, &e.EndDay, &segment, &e.CumulativeReach, &e.CumulativeCost, &e.State, &e.Action,
			&e.Beta, &e.Price, &e.Reward, &e.QAfter, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if budget.Valid {
			e.Budget = budget.Float64
			e.BudgetKnown = true
		}
		e.Segment = segment.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion read

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
