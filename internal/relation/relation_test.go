package relation_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"raceform/internal/relation"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	ddl := `CREATE TABLE data (
		race_id TEXT,
		horse TEXT,
		position INTEGER,
		weight REAL
	)`
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("create table: %v", err)
	}
	seed := [][]any{
		{"R1", "Horse A", 1, 58.5},
		{"R1", "Horse B", 2, 57.0},
		{"R2", "Horse A", 4, 58.0},
	}
	for _, row := range seed {
		if _, err := db.Exec(`INSERT INTO data VALUES (?, ?, ?, ?)`, row...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return path
}

func openTestRelation(t *testing.T, path string) *relation.Relation {
	t.Helper()
	rel, err := relation.Open(context.Background(), relation.Config{DSN: path, Table: "data"})
	if err != nil {
		t.Fatalf("open relation: %v", err)
	}
	t.Cleanup(func() { rel.Close() })
	return rel
}

func TestRelation_ColumnsInSchemaOrder(t *testing.T) {
	rel := openTestRelation(t, newTestDB(t))

	cols, err := rel.Columns(context.Background())
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	want := []string{"race_id", "horse", "position", "weight"}
	if len(cols) != len(want) {
		t.Fatalf("expected %d columns, got %v", len(want), cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d: got %q, want %q", i, cols[i], want[i])
		}
	}
}

func TestRelation_ColumnsOfMissingTable(t *testing.T) {
	path := newTestDB(t)
	rel, err := relation.Open(context.Background(), relation.Config{DSN: path, Table: "nope"})
	if err != nil {
		t.Fatalf("open relation: %v", err)
	}
	defer rel.Close()

	cols, err := rel.Columns(context.Background())
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	if len(cols) != 0 {
		t.Fatalf("expected no columns for missing table, got %v", cols)
	}
}

func TestRelation_Keys(t *testing.T) {
	rel := openTestRelation(t, newTestDB(t))

	keys, err := rel.Keys(context.Background(), []string{"race_id", "horse"}, "-")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	want := []string{"R1-Horse A", "R1-Horse B", "R2-Horse A"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for _, k := range want {
		if _, ok := keys[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
}

func TestRelation_InsertBatchIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "form.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE data (race_id TEXT, horse TEXT UNIQUE)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	db.Close()

	rel := openTestRelation(t, path)
	cols := []string{"race_id", "horse"}

	// Second row violates UNIQUE(horse); neither row may persist.
	batch := [][]any{
		{"R1", "Horse A"},
		{"R2", "Horse A"},
	}
	if err := rel.InsertBatch(context.Background(), cols, batch); err == nil {
		t.Fatal("expected insert to fail")
	}

	count, err := rel.RowCount(context.Background())
	if err != nil {
		t.Fatalf("row count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave 0 rows, got %d", count)
	}

	// A clean batch commits fully.
	ok := [][]any{
		{"R1", "Horse A"},
		{"R2", "Horse B"},
	}
	if err := rel.InsertBatch(context.Background(), cols, ok); err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	count, _ = rel.RowCount(context.Background())
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
}

func TestRelation_SelectAllPreservesColumnOrder(t *testing.T) {
	rel := openTestRelation(t, newTestDB(t))

	rows, err := rel.SelectAll(context.Background(), []string{"horse", "race_id"})
	if err != nil {
		t.Fatalf("select all: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	// Requested order is horse first.
	first := relation.JoinKey(rows[0], "|")
	if first != "Horse A|R1" {
		t.Fatalf("unexpected first row: %q", first)
	}
}

func TestJoinKey_StringifiesDriverTypes(t *testing.T) {
	// Drivers hand back TEXT as []byte or string and integers as int64;
	// all must produce the same key text.
	cases := []struct {
		values []any
		want   string
	}{
		{[]any{"R1", "Horse A"}, "R1-Horse A"},
		{[]any{[]byte("R1"), []byte("Horse A")}, "R1-Horse A"},
		{[]any{int64(42), "Horse A"}, "42-Horse A"},
		{[]any{nil, "Horse A"}, "-Horse A"},
	}
	for _, c := range cases {
		if got := relation.JoinKey(c.values, "-"); got != c.want {
			t.Errorf("JoinKey(%v) = %q, want %q", c.values, got, c.want)
		}
	}
}

func TestOpen_UnreachablePath(t *testing.T) {
	_, err := relation.Open(context.Background(), relation.Config{
		DSN: "/nonexistent/dir/form.db", Table: "data",
	})
	if err == nil {
		t.Fatal("expected open to fail for unreachable path")
	}
}
