package merge

import (
	"context"
	"fmt"
	"log"
	"slices"
	"time"

	"raceform/internal/relation"
)

// ── Merger ─────────────────────────────────────────────────
// Reconciles two same-schema relations: every source row whose identity key
// (race_id + separator + horse by default) is absent from the destination is
// appended there in one transaction. Existing destination rows are never
// touched; the source is never written.

const (
	// DefaultTable is the racing form table both snapshots carry.
	DefaultTable = "data"
	// DefaultSeparator joins the identity columns. It must not occur in a
	// race id; horse names are the trailing component so dashes there are
	// harmless.
	DefaultSeparator = "-"
)

// DefaultKeyColumns identify a row across snapshots.
var DefaultKeyColumns = []string{"race_id", "horse"}

// Config holds everything a Merger needs. Paths come from the caller —
// no globals, no implicit locations.
type Config struct {
	Source      relation.Config `json:"source"`
	Destination relation.Config `json:"destination"`
	KeyColumns  []string        `json:"keyColumns"`
	Separator   string          `json:"separator"`
	DryRun      bool            `json:"dryRun"`
}

// applyDefaults fills the zero fields so a Config with just two paths works.
func (c *Config) applyDefaults() {
	if c.Source.Table == "" {
		c.Source.Table = DefaultTable
	}
	if c.Destination.Table == "" {
		c.Destination.Table = DefaultTable
	}
	if len(c.KeyColumns) == 0 {
		c.KeyColumns = DefaultKeyColumns
	}
	if c.Separator == "" {
		c.Separator = DefaultSeparator
	}
}

// Result is the outcome of one merge run.
type Result struct {
	RowsScanned  int           `json:"rowsScanned"`
	RowsInserted int           `json:"rowsInserted"`
	Duration     time.Duration `json:"duration"`
}

// Merger executes the deduplicated merge described by its Config.
type Merger struct {
	cfg Config
}

// New builds a Merger, filling config defaults.
func New(cfg Config) *Merger {
	cfg.applyDefaults()
	return &Merger{cfg: cfg}
}

// Run opens both relations, finds source rows missing from the destination,
// and appends them in a single all-or-nothing batch. Running twice with an
// unchanged source inserts zero rows the second time.
func (m *Merger) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	src, err := relation.Open(ctx, m.cfg.Source)
	if err != nil {
		return nil, connErr("source", err)
	}
	defer src.Close()

	dst, err := relation.Open(ctx, m.cfg.Destination)
	if err != nil {
		return nil, connErr("destination", err)
	}
	defer dst.Close()

	result, err := m.run(ctx, src, dst)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (m *Merger) run(ctx context.Context, src, dst *relation.Relation) (*Result, error) {
	// 1. Destination schema drives both the key derivation and the insert
	//    shape; read it once up front.
	dstCols, err := dst.Columns(ctx)
	if err != nil {
		return nil, connErr("destination", err)
	}
	srcCols, err := src.Columns(ctx)
	if err != nil {
		return nil, connErr("source", err)
	}
	if err := m.checkSchema(srcCols, dstCols); err != nil {
		return nil, err
	}

	keyIdx, err := m.keyIndexes(dstCols)
	if err != nil {
		return nil, err
	}

	// 2. Identity keys already present in the destination.
	existing, err := dst.Keys(ctx, m.cfg.KeyColumns, m.cfg.Separator)
	if err != nil {
		return nil, connErr("destination", err)
	}

	// 3. Scan the source, keeping rows whose key is absent.
	srcRows, err := src.SelectAll(ctx, dstCols)
	if err != nil {
		return nil, connErr("source", err)
	}

	result := &Result{RowsScanned: len(srcRows)}
	keyVals := make([]any, len(keyIdx))
	var missing [][]any
	for _, row := range srcRows {
		for i, idx := range keyIdx {
			keyVals[i] = row[idx]
		}
		if _, ok := existing[relation.JoinKey(keyVals, m.cfg.Separator)]; ok {
			continue
		}
		missing = append(missing, row)
	}

	// 4. Nothing new — a no-op, not an error.
	if len(missing) == 0 {
		log.Printf("merge: destination already contains all %d source rows", len(srcRows))
		return result, nil
	}

	log.Printf("merge: found %d new row(s) out of %d scanned", len(missing), len(srcRows))

	if m.cfg.DryRun {
		result.RowsInserted = len(missing)
		return result, nil
	}

	// 5. One batch, one transaction.
	if err := dst.InsertBatch(ctx, dstCols, missing); err != nil {
		return nil, writeErr(err)
	}

	result.RowsInserted = len(missing)
	log.Printf("merge: imported %d new row(s) into %s", len(missing), dst.Table())
	return result, nil
}

// checkSchema requires the two relations to expose the same columns in the
// same order and the identity columns to be present. A missing table shows
// up here as an empty column list.
func (m *Merger) checkSchema(srcCols, dstCols []string) error {
	if len(dstCols) == 0 {
		return schemaErr("destination", "table %s has no columns", m.cfg.Destination.Table)
	}
	if len(srcCols) == 0 {
		return schemaErr("source", "table %s has no columns", m.cfg.Source.Table)
	}
	if !slices.Equal(srcCols, dstCols) {
		return schemaErr("destination", "column sets differ: source %v vs destination %v", srcCols, dstCols)
	}
	for _, key := range m.cfg.KeyColumns {
		if !slices.Contains(dstCols, key) {
			return schemaErr("destination", "identity column %q not found in %v", key, dstCols)
		}
	}
	return nil
}

// keyIndexes maps each identity column to its position in the column list.
func (m *Merger) keyIndexes(cols []string) ([]int, error) {
	idx := make([]int, len(m.cfg.KeyColumns))
	for i, key := range m.cfg.KeyColumns {
		pos := slices.Index(cols, key)
		if pos < 0 {
			return nil, schemaErr("destination", "identity column %q not found in %v", key, cols)
		}
		idx[i] = pos
	}
	return idx, nil
}

// Describe returns a one-line human summary of what this merger would do.
func (m *Merger) Describe() string {
	return fmt.Sprintf("%s.%s -> %s.%s (key: %v)",
		m.cfg.Source.DSN, m.cfg.Source.Table,
		m.cfg.Destination.DSN, m.cfg.Destination.Table,
		m.cfg.KeyColumns)
}
