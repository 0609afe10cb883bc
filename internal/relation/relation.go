package relation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ── Relation ───────────────────────────────────────────────
// A Relation is a handle to one table in one database. The merge engine
// treats source and destination uniformly through this type; only the
// destination is ever written to.

// Config identifies a relation: driver, location, and table name.
type Config struct {
	Driver string `json:"driver"` // "sqlite" | "mysql" | "postgres"
	DSN    string `json:"dsn"`    // file path for sqlite, full DSN otherwise
	Table  string `json:"table"`
}

// Relation wraps an open database connection scoped to a single table.
type Relation struct {
	driverName string
	table      string
	db         *sql.DB
}

// Open connects to the database described by cfg and verifies the
// connection with a ping. The caller owns the handle and must Close it.
func Open(ctx context.Context, cfg Config) (*Relation, error) {
	driverName := cfg.Driver
	if driverName == "" {
		driverName = "sqlite"
	}

	dsn := cfg.DSN
	if driverName == "sqlite" {
		// WAL + busy timeout so a concurrent reader doesn't trip SQLITE_BUSY.
		dsn = cfg.DSN + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}

	if driverName == "sqlite" {
		// SQLite only supports one writer — a single connection avoids
		// lock contention between the key scan and the batch insert.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(10 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	return &Relation{driverName: driverName, table: cfg.Table, db: db}, nil
}

// Table returns the table name this relation is bound to.
func (r *Relation) Table() string { return r.table }

// Driver returns the driver name ("sqlite", "mysql", "postgres").
func (r *Relation) Driver() string { return r.driverName }

// DB exposes the underlying connection (used by tests and the inspect command).
func (r *Relation) DB() *sql.DB { return r.db }

// Close releases the underlying connection pool.
func (r *Relation) Close() error {
	return r.db.Close()
}

// Columns returns the table's column names in schema order.
// Returns an empty slice if the table does not exist.
func (r *Relation) Columns(ctx context.Context) ([]string, error) {
	switch r.driverName {
	case "sqlite":
		return r.columnsSQLite(ctx)
	default:
		return r.columnsInfoSchema(ctx)
	}
}

func (r *Relation) columnsSQLite(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", r.table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", r.table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (r *Relation) columnsInfoSchema(ctx context.Context) ([]string, error) {
	query := `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
	 WHERE TABLE_NAME = ` + r.placeholder(1) + ` ORDER BY ORDINAL_POSITION`

	rows, err := r.db.QueryContext(ctx, query, r.table)
	if err != nil {
		return nil, fmt.Errorf("information_schema %s: %w", r.table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// RowCount returns the number of rows in the table.
func (r *Relation) RowCount(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}

// Keys returns the set of identity keys present in the table: for each row,
// the values of keyCols joined with sep. Used only for membership tests.
func (r *Relation) Keys(ctx context.Context, keyCols []string, sep string) (map[string]struct{}, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(keyCols, ", "), r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	values := make([]any, len(keyCols))
	ptrs := make([]any, len(keyCols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys[JoinKey(values, sep)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// SelectAll reads every row of the table with columns in the given order.
func (r *Relation) SelectAll(ctx context.Context, cols []string) ([][]any, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select all: %w", err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// InsertBatch writes all rows inside a single transaction, preserving the
// given column order. Either every row commits or none does.
func (r *Relation) InsertBatch(ctx context.Context, cols []string, batch [][]any) error {
	if len(batch) == 0 {
		return nil
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = r.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range batch {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// placeholder returns the parameter marker for the i-th (1-based) argument.
// Postgres uses numbered markers; sqlite and mysql use '?'.
func (r *Relation) placeholder(i int) string {
	if r.driverName == "postgres" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// JoinKey builds an identity key from raw column values. Drivers return TEXT
// as []byte and integers as int64; both must stringify the same way the
// values would render in SQL concatenation.
func JoinKey(values []any, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = stringify(v)
	}
	return strings.Join(parts, sep)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
