package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/zachw1/AdX-Stencil-2025/internal/qtable"
	_ "modernc.org/sqlite"
)

// timeFormat is RFC 3339 with a fixed-width fraction so created_at sorts
// lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS qtable_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	scheme        TEXT NOT NULL,
	num_states    INTEGER NOT NULL,
	num_actions   INTEGER NOT NULL,
	action_grid   BLOB NOT NULL,
	q_values      BLOB NOT NULL,
	epsilon       REAL NOT NULL,
	games         INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES qtable_versions(version_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
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
);

CREATE INDEX IF NOT EXISTS idx_decision_log_run ON decision_log(run_id, id);

CREATE TABLE IF NOT EXISTS active_qtable (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES qtable_versions(version_id)
);
`

// #endregion schema

// #region store-struct
// Store manages versioned Q-table snapshots and the decision log in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region create-initial
// CreateInitial stores a zeroed table as the first, active version.
func (s *Store) CreateInitial(scheme string, states int, grid []float64, epsilon float64) (Snapshot, error) {
	table, err := qtable.New(states, len(grid))
	if err != nil {
		return Snapshot{}, fmt.Errorf("new table: %w", err)
	}

	snap := NewSnapshot("", scheme, grid, table, epsilon, 0)

	tx, err := s.db.Begin()
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, snap); err != nil {
		return Snapshot{}, err
	}

	_, err = tx.Exec(
		`INSERT INTO active_qtable (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		snap.VersionID,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active snapshot.
func (s *Store) GetCurrent() (Snapshot, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_qtable WHERE id = 1`).Scan(&versionID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
const selectVersion = `SELECT version_id, parent_id, scheme, num_states, num_actions, action_grid, q_values,
	epsilon, games, created_at, metrics_json FROM qtable_versions`

// GetVersion retrieves a specific snapshot by ID.
func (s *Store) GetVersion(id string) (Snapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRow(selectVersion+` WHERE version_id = ?`, id))
	if err != nil {
		return Snapshot{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return snap, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var snap Snapshot
	var parentID, metricsJSON sql.NullString
	var states, actions int
	var gridBlob, qBlob []byte
	var createdStr string

	if err := row.Scan(&snap.VersionID, &parentID, &snap.Scheme, &states, &actions, &gridBlob, &qBlob,
		&snap.Epsilon, &snap.Games, &createdStr, &metricsJSON); err != nil {
		return Snapshot{}, err
	}

	table, err := qtable.FromFlat(states, actions, decodeFloats(qBlob))
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode q values: %w", err)
	}
	snap.Table = table
	snap.Grid = decodeFloats(gridBlob)
	snap.ParentID = parentID.String
	snap.MetricsJSON = metricsJSON.String
	snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return snap, nil
}

// #endregion get-version

// #region commit
// Commit inserts a new snapshot and makes it active atomically.
func (s *Store) Commit(snap Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, snap); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO active_qtable (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		snap.VersionID,
	)
	if err != nil {
		return fmt.Errorf("update active: %w", err)
	}

	return tx.Commit()
}

func insertVersion(tx *sql.Tx, snap Snapshot) error {
	if snap.Table == nil {
		return fmt.Errorf("insert version: snapshot %s has no table", snap.VersionID)
	}

	var parentPtr interface{}
	if snap.ParentID != "" {
		parentPtr = snap.ParentID
	}
	var metricsPtr interface{}
	if snap.MetricsJSON != "" {
		metricsPtr = snap.MetricsJSON
	}

	_, err := tx.Exec(
		`INSERT INTO qtable_versions (version_id, parent_id, scheme, num_states, num_actions, action_grid,
		   q_values, epsilon, games, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.VersionID, parentPtr, snap.Scheme, snap.Table.States(), snap.Table.Actions(),
		encodeFloats(snap.Grid), encodeFloats(snap.Table.Flat()), snap.Epsilon, snap.Games,
		snap.CreatedAt.UTC().Format(timeFormat), metricsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// #endregion commit

// #region rollback
// Rollback sets the active pointer to a previous snapshot.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM qtable_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	_, err = s.db.Exec(`UPDATE active_qtable SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent snapshots, newest first.
func (s *Store) ListVersions(limit int) ([]Snapshot, error) {
	rows, err := s.db.Query(selectVersion+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// #endregion list-versions

// #region float-encoding
func encodeFloats(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeFloats(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

// #endregion float-encoding
