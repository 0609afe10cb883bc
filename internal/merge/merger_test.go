package merge_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"raceform/internal/merge"
	"raceform/internal/relation"
)

// ─────────────────────────────────────────────────────────────
// Merger tests — run against real SQLite files in a temp dir
// ─────────────────────────────────────────────────────────────

const formDDL = `CREATE TABLE data (
	race_id TEXT,
	horse TEXT,
	position INTEGER,
	weight REAL
)`

type formRow struct {
	raceID   string
	horse    string
	position int
	weight   float64
}

// newSnapshot creates a SQLite file with the racing form table and rows.
func newSnapshot(t *testing.T, name string, ddl string, rows []formRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	defer db.Close()

	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for _, r := range rows {
		_, err := db.Exec(`INSERT INTO data (race_id, horse, position, weight) VALUES (?, ?, ?, ?)`,
			r.raceID, r.horse, r.position, r.weight)
		if err != nil {
			t.Fatalf("seed row: %v", err)
		}
	}
	return path
}

func readRows(t *testing.T, path string) []formRow {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT race_id, horse, position, weight FROM data ORDER BY race_id, horse`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var out []formRow
	for rows.Next() {
		var r formRow
		if err := rows.Scan(&r.raceID, &r.horse, &r.position, &r.weight); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func sqliteConfig(source, dest string) merge.Config {
	return merge.Config{
		Source:      relation.Config{DSN: source},
		Destination: relation.Config{DSN: dest},
	}
}

func TestMerge_InsertsOnlyMissingRows(t *testing.T) {
	// Destination has Horse A; source has Horse A and Horse B in the same
	// race. Exactly the Horse B row must be imported.
	source := newSnapshot(t, "kaggle.db", formDDL, []formRow{
		{"R1", "Horse A", 1, 58.5},
		{"R1", "Horse B", 2, 57.0},
	})
	dest := newSnapshot(t, "local.db", formDDL, []formRow{
		{"R1", "Horse A", 1, 58.5},
	})

	result, err := merge.New(sqliteConfig(source, dest)).Run(context.Background())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.RowsInserted != 1 {
		t.Fatalf("expected 1 row inserted, got %d", result.RowsInserted)
	}
	if result.RowsScanned != 2 {
		t.Fatalf("expected 2 rows scanned, got %d", result.RowsScanned)
	}

	got := readRows(t, dest)
	want := []formRow{
		{"R1", "Horse A", 1, 58.5},
		{"R1", "Horse B", 2, 57.0},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMerge_DisjointKeySets(t *testing.T) {
	// Disjoint key sets of size 3 and 5 — all 3 source rows land,
	// destination ends with 8.
	source := newSnapshot(t, "kaggle.db", formDDL, []formRow{
		{"R1", "Alpha", 1, 58.0},
		{"R1", "Bravo", 2, 57.0},
		{"R2", "Charlie", 1, 56.5},
	})
	dest := newSnapshot(t, "local.db", formDDL, []formRow{
		{"R3", "Delta", 1, 58.0},
		{"R3", "Echo", 2, 57.0},
		{"R4", "Foxtrot", 1, 56.0},
		{"R4", "Golf", 2, 55.5},
		{"R5", "Hotel", 1, 57.5},
	})

	result, err := merge.New(sqliteConfig(source, dest)).Run(context.Background())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.RowsInserted != 3 {
		t.Fatalf("expected 3 rows inserted, got %d", result.RowsInserted)
	}
	if got := len(readRows(t, dest)); got != 8 {
		t.Fatalf("expected 8 destination rows, got %d", got)
	}
}

func TestMerge_NoOpWhenAllKeysPresent(t *testing.T) {
	rows := []formRow{
		{"R1", "Horse A", 1, 58.5},
		{"R2", "Horse B", 3, 55.0},
	}
	source := newSnapshot(t, "kaggle.db", formDDL, rows)
	dest := newSnapshot(t, "local.db", formDDL, rows)
	before := readRows(t, dest)

	result, err := merge.New(sqliteConfig(source, dest)).Run(context.Background())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.RowsInserted != 0 {
		t.Fatalf("expected 0 rows inserted, got %d", result.RowsInserted)
	}

	after := readRows(t, dest)
	if len(after) != len(before) {
		t.Fatalf("destination changed: %d rows before, %d after", len(before), len(after))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("row %d altered: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestMerge_Idempotent(t *testing.T) {
	source := newSnapshot(t, "kaggle.db", formDDL, []formRow{
		{"R1", "Horse A", 1, 58.5},
		{"R1", "Horse B", 2, 57.0},
	})
	dest := newSnapshot(t, "local.db", formDDL, nil)

	cfg := sqliteConfig(source, dest)

	first, err := merge.New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if first.RowsInserted != 2 {
		t.Fatalf("first merge: expected 2 inserted, got %d", first.RowsInserted)
	}

	second, err := merge.New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if second.RowsInserted != 0 {
		t.Fatalf("second merge: expected 0 inserted, got %d", second.RowsInserted)
	}
}

func TestMerge_DryRunWritesNothing(t *testing.T) {
	source := newSnapshot(t, "kaggle.db", formDDL, []formRow{
		{"R1", "Horse A", 1, 58.5},
	})
	dest := newSnapshot(t, "local.db", formDDL, nil)

	cfg := sqliteConfig(source, dest)
	cfg.DryRun = true

	result, err := merge.New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.RowsInserted != 1 {
		t.Fatalf("dry run should report 1 would-be insert, got %d", result.RowsInserted)
	}
	if got := len(readRows(t, dest)); got != 0 {
		t.Fatalf("dry run wrote %d rows", got)
	}
}

func TestMerge_SchemaMismatch_MissingIdentityColumn(t *testing.T) {
	// Destination lacks the horse column — must fail before any write.
	source := newSnapshot(t, "kaggle.db", formDDL, []formRow{
		{"R1", "Horse A", 1, 58.5},
	})

	destPath := filepath.Join(t.TempDir(), "local.db")
	db, err := sql.Open("sqlite", destPath)
	if err != nil {
		t.Fatalf("open dest: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE data (race_id TEXT, position INTEGER, weight REAL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	db.Close()

	_, err = merge.New(sqliteConfig(source, destPath)).Run(context.Background())
	var mergeErr *merge.Error
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected *merge.Error, got %v", err)
	}
	if mergeErr.Kind != merge.KindSchemaMismatch {
		t.Fatalf("expected schema mismatch, got %s", mergeErr.Kind)
	}
}

func TestMerge_SchemaMismatch_MissingTable(t *testing.T) {
	source := newSnapshot(t, "kaggle.db", formDDL, nil)

	destPath := filepath.Join(t.TempDir(), "local.db")
	db, err := sql.Open("sqlite", destPath)
	if err != nil {
		t.Fatalf("open dest: %v", err)
	}
	// No data table at all.
	if _, err := db.Exec(`CREATE TABLE other (x TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	db.Close()

	_, err = merge.New(sqliteConfig(source, destPath)).Run(context.Background())
	var mergeErr *merge.Error
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected *merge.Error, got %v", err)
	}
	if mergeErr.Kind != merge.KindSchemaMismatch {
		t.Fatalf("expected schema mismatch, got %s", mergeErr.Kind)
	}
}

func TestMerge_WriteError_RollsBackWholeBatch(t *testing.T) {
	// A UNIQUE constraint on horse makes the second new row fail; the whole
	// batch must roll back, leaving the destination untouched.
	uniqueDDL := `CREATE TABLE data (
		race_id TEXT,
		horse TEXT UNIQUE,
		position INTEGER,
		weight REAL
	)`

	source := newSnapshot(t, "kaggle.db", formDDL, []formRow{
		{"R1", "Horse A", 1, 58.5},
		{"R2", "Horse A", 2, 57.0}, // same horse, different race — key differs, UNIQUE trips
	})
	dest := newSnapshot(t, "local.db", uniqueDDL, nil)

	_, err := merge.New(sqliteConfig(source, dest)).Run(context.Background())
	var mergeErr *merge.Error
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected *merge.Error, got %v", err)
	}
	if mergeErr.Kind != merge.KindWrite {
		t.Fatalf("expected write error, got %s", mergeErr.Kind)
	}
	if got := len(readRows(t, dest)); got != 0 {
		t.Fatalf("partial insert persisted: %d rows", got)
	}
}

func TestMerge_ConnectionError(t *testing.T) {
	source := newSnapshot(t, "kaggle.db", formDDL, nil)

	cfg := sqliteConfig(source, "/nonexistent/dir/local.db")
	_, err := merge.New(cfg).Run(context.Background())
	var mergeErr *merge.Error
	if !errors.As(err, &mergeErr) {
		t.Fatalf("expected *merge.Error, got %v", err)
	}
	if mergeErr.Kind != merge.KindConnection {
		t.Fatalf("expected connection error, got %s", mergeErr.Kind)
	}
}

func TestMerge_CustomKeyColumns(t *testing.T) {
	// A single-column key still works.
	source := newSnapshot(t, "kaggle.db", formDDL, []formRow{
		{"R1", "Horse A", 1, 58.5},
		{"R2", "Horse B", 1, 57.0},
	})
	dest := newSnapshot(t, "local.db", formDDL, []formRow{
		{"R1", "Horse Z", 9, 50.0}, // same race_id as a source row
	})

	cfg := sqliteConfig(source, dest)
	cfg.KeyColumns = []string{"race_id"}

	result, err := merge.New(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if result.RowsInserted != 1 {
		t.Fatalf("expected 1 row inserted (R2 only), got %d", result.RowsInserted)
	}
}
