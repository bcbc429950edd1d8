// Package backend defines the capability contract every wide-column store
// adapter must satisfy: opaque row keys, family/qualifier cells, multi-row
// get, forward lexical scan, batched mutation, atomic counters, and
// idempotent admin table creation. Any store that can satisfy this
// interface — Bigtable, HBase, or a local fake — can back the engine.
package backend

import "context"

// Cell is one (family, qualifier) -> value pair within a row. Only the
// latest version is ever visible to readers; the backend is expected to
// garbage-collect older versions, per the "keep latest 1" policy.
type Cell struct {
	Family    string
	Qualifier string
	Value     []byte
}

// Row is one backend row: its key plus every cell a read returned.
type Row struct {
	Key   string
	Cells []Cell
}

// Mutation is a single row's worth of writes, applied atomically within the
// row but with no cross-row atomicity guarantee.
type Mutation struct {
	RowKey string
	Cells  []Cell
}

// MutationResult reports the backend's per-row outcome of a batched
// mutation, mirroring the Bigtable convention of a response code per row
// rather than a single call-wide error.
type MutationResult struct {
	RowKey  string
	Applied bool
	Err     error
}

// ColumnDelete asks for one row's cells restricted to the given families to
// be removed, described as a request so implementations can batch it like a
// Mutation.
type ColumnDelete struct {
	RowKey   string
	Families []string
}

// ScanOptions configures a forward lexical scan.
type ScanOptions struct {
	// StartKey is inclusive.
	StartKey string
	// RowLimit bounds the number of rows returned; 0 means unbounded.
	RowLimit int
	// Families, if non-empty, restricts returned cells to these column
	// families.
	Families []string
}

// Backend is the capability set required of any wide-column store adapter.
// Every method must honor ctx cancellation and surface it promptly; callers
// translate a context error into tserrors.CancelledError.
type Backend interface {
	// GetRows performs a multi-row point get by explicit key list, with an
	// optional column-family filter.
	GetRows(ctx context.Context, rowKeys []string, families []string) ([]Row, error)

	// Scan performs a forward lexical scan starting at opts.StartKey,
	// returning at most opts.RowLimit rows (0 = unbounded), restricted to
	// opts.Families if set. Rows are returned in ascending key order.
	Scan(ctx context.Context, opts ScanOptions) ([]Row, error)

	// MutateRows applies a batch of row mutations, best-effort concurrent,
	// returning one MutationResult per input Mutation in the same order.
	MutateRows(ctx context.Context, mutations []Mutation) ([]MutationResult, error)

	// DeleteColumns removes the named families from each given row. It is
	// whole-row-of-families granularity; no single-cell delete is exposed
	// because the engine never needs it (whole-day delete granularity, per
	// the timeseries/event store contracts).
	DeleteColumns(ctx context.Context, deletes []ColumnDelete) ([]MutationResult, error)

	// IncrementCounter atomically adds delta to the 64-bit big-endian
	// counter at (rowKey, family, qualifier), auto-initializing to 0, and
	// returns the counter's new value.
	IncrementCounter(ctx context.Context, rowKey, family, qualifier string, delta int64) (int64, error)

	// CreateTable idempotently ensures a table exists with the given
	// column families. Calling it again with the same name and an equal or
	// growing family set must succeed silently.
	CreateTable(ctx context.Context, name string, families []string) error
}
