// Package sqlitebt is a pure-Go, single-node implementation of the
// backend.Backend contract on top of modernc.org/sqlite, for local
// development and testing without a Bigtable cluster. Rows are opaque keys;
// column families and qualifiers are encoded as a composite key so that the
// wide-column shape survives unmodified down to a flat SQL table.
package sqlitebt

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/fieldmesh/tscore/internal/backend"
)

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version    INTEGER PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cells (
    row_key   TEXT NOT NULL,
    family    TEXT NOT NULL,
    qualifier TEXT NOT NULL,
    value     BLOB NOT NULL,
    PRIMARY KEY (row_key, family, qualifier)
);
CREATE INDEX IF NOT EXISTS idx_cells_row_key ON cells(row_key);

CREATE TABLE IF NOT EXISTS tables_meta (
    name     TEXT PRIMARY KEY,
    families TEXT NOT NULL DEFAULT ''
);
`,
	},
}

// Backend is a sqlite-backed Backend adapter. One Backend maps to one
// logical table; callers wanting several tables open several Backends
// against distinct files or distinct table-prefixed row keys.
type Backend struct {
	db *sql.DB
}

// Open creates or attaches to the sqlite database at path and applies any
// unapplied migrations.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitebt: open %q: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitebt: enable WAL: %w", err)
	}
	b := &Backend{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate() error {
	_, err := b.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("sqlitebt: create schema_versions: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := b.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("sqlitebt: check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := b.db.Exec(m.sql); err != nil {
			return fmt.Errorf("sqlitebt: apply migration %d: %w", m.version, err)
		}
		if _, err := b.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("sqlitebt: record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) GetRows(ctx context.Context, rowKeys []string, families []string) ([]backend.Row, error) {
	if len(rowKeys) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(rowKeys))
	args := make([]interface{}, 0, len(rowKeys)+len(families))
	for i, k := range rowKeys {
		placeholders[i] = "?"
		args = append(args, k)
	}
	query := fmt.Sprintf(`SELECT row_key, family, qualifier, value FROM cells WHERE row_key IN (%s)`, strings.Join(placeholders, ","))
	query, args = appendFamilyFilter(query, args, families)
	query += " ORDER BY row_key, family, qualifier"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitebt: get rows: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (b *Backend) Scan(ctx context.Context, opts backend.ScanOptions) ([]backend.Row, error) {
	query := `SELECT row_key, family, qualifier, value FROM cells WHERE row_key >= ?`
	args := []interface{}{opts.StartKey}
	query, args = appendFamilyFilter(query, args, opts.Families)
	query += " ORDER BY row_key, family, qualifier"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitebt: scan: %w", err)
	}
	defer rows.Close()
	all, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if opts.RowLimit > 0 && len(all) > opts.RowLimit {
		all = all[:opts.RowLimit]
	}
	return all, nil
}

func appendFamilyFilter(query string, args []interface{}, families []string) (string, []interface{}) {
	if len(families) == 0 {
		return query, args
	}
	placeholders := make([]string, len(families))
	for i, f := range families {
		placeholders[i] = "?"
		args = append(args, f)
	}
	return query + fmt.Sprintf(" AND family IN (%s)", strings.Join(placeholders, ",")), args
}

func scanRows(rows *sql.Rows) ([]backend.Row, error) {
	byKey := make(map[string]*backend.Row)
	var order []string
	for rows.Next() {
		var rowKey, family, qualifier string
		var value []byte
		if err := rows.Scan(&rowKey, &family, &qualifier, &value); err != nil {
			return nil, fmt.Errorf("sqlitebt: scan row: %w", err)
		}
		r, ok := byKey[rowKey]
		if !ok {
			r = &backend.Row{Key: rowKey}
			byKey[rowKey] = r
			order = append(order, rowKey)
		}
		r.Cells = append(r.Cells, backend.Cell{Family: family, Qualifier: qualifier, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(order)
	out := make([]backend.Row, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out, nil
}

func (b *Backend) MutateRows(ctx context.Context, mutations []backend.Mutation) ([]backend.MutationResult, error) {
	results := make([]backend.MutationResult, len(mutations))
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlitebt: begin mutation: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cells(row_key, family, qualifier, value) VALUES(?, ?, ?, ?)
        ON CONFLICT(row_key, family, qualifier) DO UPDATE SET value = excluded.value`)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("sqlitebt: prepare mutation: %w", err)
	}
	defer stmt.Close()

	for i, m := range mutations {
		var rowErr error
		for _, c := range m.Cells {
			if _, err := stmt.ExecContext(ctx, m.RowKey, c.Family, c.Qualifier, c.Value); err != nil {
				rowErr = err
				break
			}
		}
		results[i] = backend.MutationResult{RowKey: m.RowKey, Applied: rowErr == nil, Err: rowErr}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlitebt: commit mutation: %w", err)
	}
	return results, nil
}

func (b *Backend) DeleteColumns(ctx context.Context, deletes []backend.ColumnDelete) ([]backend.MutationResult, error) {
	results := make([]backend.MutationResult, len(deletes))
	for i, d := range deletes {
		query := `DELETE FROM cells WHERE row_key = ?`
		args := []interface{}{d.RowKey}
		query, args = appendFamilyFilter(query, args, d.Families)
		res, err := b.db.ExecContext(ctx, query, args...)
		if err != nil {
			results[i] = backend.MutationResult{RowKey: d.RowKey, Applied: false, Err: err}
			continue
		}
		n, _ := res.RowsAffected()
		results[i] = backend.MutationResult{RowKey: d.RowKey, Applied: n > 0}
	}
	return results, nil
}

func (b *Backend) IncrementCounter(ctx context.Context, rowKey, family, qualifier string, delta int64) (int64, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlitebt: begin increment: %w", err)
	}
	defer tx.Rollback()

	var cur int64
	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT value FROM cells WHERE row_key = ? AND family = ? AND qualifier = ?`, rowKey, family, qualifier).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		cur = 0
	case err != nil:
		return 0, fmt.Errorf("sqlitebt: read counter: %w", err)
	default:
		cur = decodeCounter(raw)
	}
	cur += delta
	encoded := encodeCounter(cur)
	_, err = tx.ExecContext(ctx, `INSERT INTO cells(row_key, family, qualifier, value) VALUES(?, ?, ?, ?)
        ON CONFLICT(row_key, family, qualifier) DO UPDATE SET value = excluded.value`, rowKey, family, qualifier, encoded)
	if err != nil {
		return 0, fmt.Errorf("sqlitebt: write counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlitebt: commit increment: %w", err)
	}
	return cur, nil
}

func (b *Backend) CreateTable(ctx context.Context, name string, families []string) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO tables_meta(name, families) VALUES(?, ?)
        ON CONFLICT(name) DO UPDATE SET families = excluded.families`, name, strings.Join(families, ","))
	if err != nil {
		return fmt.Errorf("sqlitebt: create table %q: %w", name, err)
	}
	return nil
}

func decodeCounter(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return int64(v)
}

func encodeCounter(v int64) []byte {
	u := uint64(v)
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = byte(u & 0xff)
		u >>= 8
	}
	return out
}
