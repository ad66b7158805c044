package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zachw1/AdX-Stencil-2025/internal/qtable"
	_ "modernc.org/sqlite"
)

var testGrid = []float64{0.5, 1.0, 1.5}

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateInitialAndGetCurrent(t *testing.T) {
	s := tempDB(t)

	snap, err := s.CreateInitial("urgency", 3, testGrid, 1.0)
	if err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	if snap.VersionID == "" {
		t.Fatal("expected non-empty version ID")
	}
	if snap.ParentID != "" {
		t.Fatalf("expected empty parent, got %s", snap.ParentID)
	}
	for i, v := range snap.Table.Flat() {
		if v != 0 {
			t.Fatalf("expected zero at index %d, got %f", i, v)
		}
	}

	cur, err := s.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != snap.VersionID {
		t.Fatalf("expected %s, got %s", snap.VersionID, cur.VersionID)
	}
	if cur.Table.States() != 3 || cur.Table.Actions() != 3 {
		t.Fatalf("expected 3x3 table, got %dx%d", cur.Table.States(), cur.Table.Actions())
	}
	if cur.Scheme != "urgency" || cur.Epsilon != 1.0 {
		t.Fatalf("metadata lost: scheme=%s epsilon=%g", cur.Scheme, cur.Epsilon)
	}
	if len(cur.Grid) != 3 || cur.Grid[2] != 1.5 {
		t.Fatalf("grid lost: %v", cur.Grid)
	}
}

func TestCreateInitialRejectsBadShape(t *testing.T) {
	s := tempDB(t)
	if _, err := s.CreateInitial("urgency", 0, testGrid, 1); err == nil {
		t.Fatal("expected error for zero states")
	}
}

func TestCommitAndRollback(t *testing.T) {
	s := tempDB(t)

	v1, err := s.CreateInitial("urgency", 3, testGrid, 1.0)
	if err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}

	table := v1.Table.Clone()
	table.Set(2, 1, 1.5)
	v2 := NewSnapshot(v1.VersionID, v1.Scheme, v1.Grid, table, 0.9, 1)

	if err := s.Commit(v2); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cur, _ := s.GetCurrent()
	if cur.VersionID != v2.VersionID {
		t.Fatalf("expected %s, got %s", v2.VersionID, cur.VersionID)
	}
	if cur.Table.Value(2, 1) != 1.5 {
		t.Fatalf("expected 1.5, got %f", cur.Table.Value(2, 1))
	}
	if cur.ParentID != v1.VersionID || cur.Games != 1 || cur.Epsilon != 0.9 {
		t.Fatalf("unexpected lineage: %+v", cur)
	}

	if err := s.Rollback(v1.VersionID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	cur, _ = s.GetCurrent()
	if cur.VersionID != v1.VersionID {
		t.Fatalf("expected %s after rollback, got %s", v1.VersionID, cur.VersionID)
	}
}

func TestNewSnapshotCopiesTable(t *testing.T) {
	table, _ := qtable.New(3, 3)
	snap := NewSnapshot("", "urgency", testGrid, table, 0.5, 2)
	table.Set(0, 0, 9)
	if snap.Table.Value(0, 0) != 0 {
		t.Fatal("snapshot must not share storage with the live table")
	}
	if snap.VersionID == "" || snap.CreatedAt.IsZero() {
		t.Fatal("expected version id and timestamp")
	}
}

func TestCommitWithoutTable(t *testing.T) {
	s := tempDB(t)
	if err := s.Commit(Snapshot{VersionID: "empty", CreatedAt: time.Now()}); err == nil {
		t.Fatal("expected error for snapshot without table")
	}
}

func TestRollbackNonExistent(t *testing.T) {
	s := tempDB(t)
	s.CreateInitial("urgency", 3, testGrid, 1)

	if err := s.Rollback("nonexistent-id"); err == nil {
		t.Fatal("expected error for non-existent version")
	}
}

func TestListVersions(t *testing.T) {
	s := tempDB(t)

	v1, _ := s.CreateInitial("urgency", 3, testGrid, 1)
	v2 := NewSnapshot(v1.VersionID, v1.Scheme, v1.Grid, v1.Table, 1, 1)
	v2.CreatedAt = v1.CreatedAt.Add(time.Second)
	s.Commit(v2)

	versions, err := s.ListVersions(10)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].VersionID != v2.VersionID {
		t.Fatalf("expected newest first, got %s", versions[0].VersionID)
	}

	versions, _ = s.ListVersions(1)
	if len(versions) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(versions))
	}
}

func TestFloatRoundTrip(t *testing.T) {
	original := []float64{0, -1.25, 3.5e-9, 1e12, 0.1}
	decoded := decodeFloats(encodeFloats(original))
	if len(decoded) != len(original) {
		t.Fatalf("expected %d values, got %d", len(original), len(decoded))
	}
	for i := range original {
		if original[i] != decoded[i] {
			t.Fatalf("mismatch at %d: %g != %g", i, original[i], decoded[i])
		}
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestGetVersionNotFound(t *testing.T) {
	s := tempDB(t)
	s.CreateInitial("urgency", 3, testGrid, 1)

	if _, err := s.GetVersion("nonexistent-id"); err == nil {
		t.Fatal("expected error for nonexistent version")
	}
}

func TestGetCurrentNoActiveState(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetCurrent(); err == nil {
		t.Fatal("expected error when no active snapshot exists")
	}
}

func TestCommitWithMetricsJSON(t *testing.T) {
	s := tempDB(t)
	v1, _ := s.CreateInitial("urgency", 3, testGrid, 1)

	v2 := NewSnapshot(v1.VersionID, v1.Scheme, v1.Grid, v1.Table, 1, 1)
	v2.MetricsJSON = `{"max_abs_q":0.5}`
	if err := s.Commit(v2); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.GetVersion(v2.VersionID)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if got.MetricsJSON != v2.MetricsJSON {
		t.Fatalf("MetricsJSON mismatch: got %q, want %q", got.MetricsJSON, v2.MetricsJSON)
	}
}

func TestCreateInitialOnClosedDB(t *testing.T) {
	s := tempDB(t)
	s.Close()

	if _, err := s.CreateInitial("urgency", 3, testGrid, 1); err == nil {
		t.Fatal("expected error on closed db")
	}
}
