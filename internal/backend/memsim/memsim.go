// Package memsim is an in-memory fake of the backend.Backend contract, used
// to exercise the store layer in tests without a real wide-column cluster.
// It implements the same "keep latest 1 version" and scan-ordering
// semantics a production backend must provide.
package memsim

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fieldmesh/tscore/internal/backend"
)

type cellKey struct {
	family    string
	qualifier string
}

// Backend is a single in-memory table keyed by opaque row key, holding one
// value per (family, qualifier) cell — "keep latest 1" is implicit since
// writes simply replace the map entry.
type Backend struct {
	mu     sync.Mutex
	rows   map[string]map[cellKey][]byte
	tables map[string][]string
}

// New returns an empty simulated backend.
func New() *Backend {
	return &Backend{
		rows:   make(map[string]map[cellKey][]byte),
		tables: make(map[string][]string),
	}
}

func (b *Backend) GetRows(ctx context.Context, rowKeys []string, families []string) ([]backend.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fset := toSet(families)
	var out []backend.Row
	for _, k := range rowKeys {
		cells, ok := b.rows[k]
		if !ok {
			continue
		}
		row := backend.Row{Key: k}
		for ck, v := range cells {
			if len(fset) > 0 && !fset[ck.family] {
				continue
			}
			row.Cells = append(row.Cells, backend.Cell{Family: ck.family, Qualifier: ck.qualifier, Value: v})
		}
		if len(row.Cells) > 0 {
			sortCells(row.Cells)
			out = append(out, row)
		}
	}
	return out, nil
}

func (b *Backend) Scan(ctx context.Context, opts backend.ScanOptions) ([]backend.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.rows))
	for k := range b.rows {
		if k >= opts.StartKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	fset := toSet(opts.Families)
	var out []backend.Row
	for _, k := range keys {
		if opts.RowLimit > 0 && len(out) >= opts.RowLimit {
			break
		}
		row := backend.Row{Key: k}
		for ck, v := range b.rows[k] {
			if len(fset) > 0 && !fset[ck.family] {
				continue
			}
			row.Cells = append(row.Cells, backend.Cell{Family: ck.family, Qualifier: ck.qualifier, Value: v})
		}
		if len(row.Cells) > 0 {
			sortCells(row.Cells)
			out = append(out, row)
		}
	}
	return out, nil
}

func (b *Backend) MutateRows(ctx context.Context, mutations []backend.Mutation) ([]backend.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	results := make([]backend.MutationResult, len(mutations))
	for i, m := range mutations {
		cells, ok := b.rows[m.RowKey]
		if !ok {
			cells = make(map[cellKey][]byte)
			b.rows[m.RowKey] = cells
		}
		for _, c := range m.Cells {
			cells[cellKey{c.Family, c.Qualifier}] = c.Value
		}
		results[i] = backend.MutationResult{RowKey: m.RowKey, Applied: true}
	}
	return results, nil
}

func (b *Backend) DeleteColumns(ctx context.Context, deletes []backend.ColumnDelete) ([]backend.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	results := make([]backend.MutationResult, len(deletes))
	for i, d := range deletes {
		cells, ok := b.rows[d.RowKey]
		if !ok {
			results[i] = backend.MutationResult{RowKey: d.RowKey, Applied: false}
			continue
		}
		fset := toSet(d.Families)
		for ck := range cells {
			if len(fset) == 0 || fset[ck.family] {
				delete(cells, ck)
			}
		}
		results[i] = backend.MutationResult{RowKey: d.RowKey, Applied: true}
	}
	return results, nil
}

func (b *Backend) IncrementCounter(ctx context.Context, rowKey, family, qualifier string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cells, ok := b.rows[rowKey]
	if !ok {
		cells = make(map[cellKey][]byte)
		b.rows[rowKey] = cells
	}
	ck := cellKey{family, qualifier}
	cur := decodeCounter(cells[ck])
	cur += delta
	cells[ck] = encodeCounter(cur)
	return cur, nil
}

func (b *Backend) CreateTable(ctx context.Context, name string, families []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	existing := b.tables[name]
	merged := toSet(existing)
	for _, f := range families {
		if !merged[f] {
			existing = append(existing, f)
			merged[f] = true
		}
	}
	b.tables[name] = existing
	return nil
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func sortCells(cells []backend.Cell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Family != cells[j].Family {
			return cells[i].Family < cells[j].Family
		}
		return cells[i].Qualifier < cells[j].Qualifier
	})
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

// HasRowPrefix is a small test/debug helper mirroring the scan-break check
// stores perform inline; exported so fakes-based tests can assert on it too.
func HasRowPrefix(key, prefix string) bool {
	return strings.HasPrefix(key, prefix)
}
