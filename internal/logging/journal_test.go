package logging

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// A single connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE decision_log (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id           TEXT NOT NULL,
		game             INTEGER NOT NULL,
		day              INTEGER NOT NULL,
		kind             TEXT NOT NULL,
		campaign_uid     INTEGER NOT NULL,
		reach            INTEGER NOT NULL,
		budget           REAL,
		start_day        INTEGER NOT NULL,
		end_day          INTEGER NOT NULL,
		segment          TEXT,
		cumulative_reach INTEGER NOT NULL,
		cumulative_cost  REAL NOT NULL,
		state_index      INTEGER NOT NULL,
		action_index     INTEGER NOT NULL,
		beta             REAL NOT NULL,
		price            REAL NOT NULL,
		reward           REAL NOT NULL,
		q_after          REAL NOT NULL,
		reason           TEXT,
		created_at       TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func bidEntry(day, uid int) DecisionEntry {
	return DecisionEntry{
		Game:            1,
		Day:             day,
		Kind:            KindBid,
		CampaignUID:     uid,
		Reach:           1000,
		Budget:          500,
		BudgetKnown:     true,
		StartDay:        1,
		EndDay:          5,
		Segment:         "Female_Old",
		CumulativeReach: 120,
		CumulativeCost:  14.5,
		State:           7,
		Action:          3,
		Beta:            0.7,
		Price:           0.42,
		CreatedAt:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := bidEntry(2, 11)
	entry.RunID = "run-a"
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM decision_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var kind string
	var price float64
	db.QueryRow("SELECT kind, price FROM decision_log").Scan(&kind, &price)
	if kind != KindBid {
		t.Errorf("expected kind 'bid', got %q", kind)
	}
	if price != 0.42 {
		t.Errorf("expected price 0.42, got %f", price)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := bidEntry(1, 1)
	entry.RunID = "run-a"
	entry.CreatedAt = time.Time{}

	before := time.Now().UTC()
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM decision_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_UnknownBudgetAndEmptyFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := DecisionEntry{
		RunID:       "run-b",
		Day:         3,
		Kind:        KindSkip,
		CampaignUID: 4,
		State:       -1,
		Action:      -1,
	}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var budget sql.NullFloat64
	var segment, reason sql.NullString
	db.QueryRow("SELECT budget, segment, reason FROM decision_log").Scan(&budget, &segment, &reason)
	if budget.Valid {
		t.Error("expected NULL budget for unknown budget")
	}
	if segment.Valid {
		t.Error("expected NULL segment for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogDecision(db, bidEntry(1, 1)); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region journal-tests
func TestJournalRoundTrip(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	other := NewJournal(db, "run-old")
	if err := other.Record(bidEntry(1, 99)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	j := NewJournal(db, "run-new")
	for day := 1; day <= 3; day++ {
		if err := j.Record(bidEntry(day, 11)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	upd := bidEntry(2, 11)
	upd.Kind = KindUpdate
	upd.Reward = -1.25
	if err := j.Record(upd); err != nil {
		t.Fatalf("Record: %v", err)
	}

	latest, err := LatestRunID(db)
	if err != nil {
		t.Fatalf("LatestRunID: %v", err)
	}
	if latest != "run-new" {
		t.Fatalf("expected run-new, got %s", latest)
	}

	bids, err := ReadDecisions(db, "run-new", KindBid)
	if err != nil {
		t.Fatalf("ReadDecisions: %v", err)
	}
	if len(bids) != 3 {
		t.Fatalf("expected 3 bids, got %d", len(bids))
	}
	for i, e := range bids {
		if e.Day != i+1 {
			t.Errorf("row %d: expected day %d, got %d", i, i+1, e.Day)
		}
		if !e.BudgetKnown || e.Budget != 500 || e.Segment != "Female_Old" {
			t.Errorf("row %d: campaign fields lost: %+v", i, e)
		}
	}

	all, err := ReadDecisions(db, "run-new", "")
	if err != nil {
		t.Fatalf("ReadDecisions: %v", err)
	}
	if len(all) != 4 || all[3].Reward != -1.25 {
		t.Fatalf("expected 4 rows ending with the update, got %+v", all)
	}
}

func TestLatestRunID_Empty(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if _, err := LatestRunID(db); err == nil {
		t.Fatal("expected error for empty log")
	}
}

// #endregion journal-tests

// #region null-if-empty-tests
func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Error("expected nil for empty string")
	}
	if nullIfEmpty("hello") != "hello" {
		t.Error("expected 'hello'")
	}
}

// #endregion null-if-empty-tests
