// Package storage implements the four stores (TimeSeries, Event, Activity,
// MetaData) and the Connection that owns their shared backend pool and
// metric/event registry.
//
// Data flow: caller -> Connection -> Store -> (cellcodec <-> rowkey) ->
// backend.Backend. Reads fan out to row-key lists or scans; cells merge
// back through the codec into series.TimeSeries / series.EventList.
package storage

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/fieldmesh/tscore/internal/backend"
	"github.com/fieldmesh/tscore/internal/metricdef"
	"github.com/fieldmesh/tscore/internal/obslog"
	"github.com/fieldmesh/tscore/internal/tserrors"
)

// Factory creates one backend handle. Connection calls it lazily, once per
// GetInstance call, until PoolSize handles exist.
type Factory func() (backend.Backend, error)

// Options configures a Connection. Staging, when true, coerces ReadOnly to
// true regardless of the caller's setting.
type Options struct {
	TablePrefix string
	PoolSize    int
	ReadOnly    bool
	Staging     bool
	Metrics     []metricdef.Metric
	Events      []metricdef.Event
	Logger      *obslog.Logger
}

// Connection owns the backend handle pool and the metric/event registry.
// Stores hold a non-owning reference to it. Safe for concurrent use.
type Connection struct {
	factory     Factory
	tablePrefix string
	readOnly    bool
	registry    *metricdef.Registry
	log         *obslog.Logger

	mu   sync.Mutex
	pool []backend.Backend
	size int
}

// New builds a Connection. The pool is left empty (UNINITIALIZED); handles
// are created lazily on first use, up to opts.PoolSize.
func New(factory Factory, opts Options) (*Connection, error) {
	if opts.PoolSize < 1 {
		return nil, tserrors.NewArgumentError("pool size must be >= 1, got %d", opts.PoolSize)
	}
	registry, err := metricdef.NewRegistry(opts.Metrics, opts.Events)
	if err != nil {
		return nil, fmt.Errorf("storage: build registry: %w", err)
	}
	readOnly := opts.ReadOnly || opts.Staging
	return &Connection{
		factory:     factory,
		tablePrefix: opts.TablePrefix,
		readOnly:    readOnly,
		registry:    registry,
		log:         opts.Logger,
		size:        opts.PoolSize,
	}, nil
}

// ReadOnly reports whether mutating operations are rejected.
func (c *Connection) ReadOnly() bool { return c.readOnly }

// Registry returns the immutable metric/event registry.
func (c *Connection) Registry() *metricdef.Registry { return c.registry }

// TableName applies the configured prefix to a logical table name.
func (c *Connection) TableName(name string) string {
	if c.tablePrefix == "" {
		return name
	}
	return c.tablePrefix + "_" + name
}

// GetInstance returns a backend handle from the pool, growing the pool
// lazily up to its configured size before falling back to uniform-random
// selection among warmed handles, per the connection's state machine:
// UNINITIALIZED -> (lazy growth) -> STEADY.
func (c *Connection) GetInstance() (backend.Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pool) < c.size {
		h, err := c.factory()
		if err != nil {
			return nil, fmt.Errorf("storage: create backend handle: %w", err)
		}
		c.pool = append(c.pool, h)
		return h, nil
	}
	return c.pool[rand.Intn(len(c.pool))], nil
}

// CreateTables issues idempotent admin table/column-family creation for
// every store's table, using each metric's id as a column family on the
// timeseries table.
func (c *Connection) CreateTables(ctx context.Context) error {
	h, err := c.GetInstance()
	if err != nil {
		return err
	}
	families := make([]string, 0, len(c.registry.All()))
	for _, m := range c.registry.All() {
		families = append(families, m.ID)
	}
	if err := h.CreateTable(ctx, c.TableName("timeseries"), families); err != nil {
		return fmt.Errorf("storage: create timeseries table: %w", err)
	}
	if err := h.CreateTable(ctx, c.TableName("events"), []string{"e"}); err != nil {
		return fmt.Errorf("storage: create events table: %w", err)
	}
	if err := h.CreateTable(ctx, c.TableName("activity"), []string{"c"}); err != nil {
		return fmt.Errorf("storage: create activity table: %w", err)
	}
	if err := h.CreateTable(ctx, c.TableName("metadata"), []string{"m"}); err != nil {
		return fmt.Errorf("storage: create metadata table: %w", err)
	}
	return nil
}

// TimeSeriesStore returns a store handle bound to this Connection.
func (c *Connection) TimeSeriesStore() *TimeSeriesStore { return &TimeSeriesStore{conn: c} }

// EventStore returns a store handle bound to this Connection.
func (c *Connection) EventStore() *EventStore { return &EventStore{conn: c} }

// ActivityStore returns a store handle bound to this Connection.
func (c *Connection) ActivityStore() *ActivityStore { return &ActivityStore{conn: c} }

// MetaDataStore returns a store handle bound to this Connection.
func (c *Connection) MetaDataStore() *MetaDataStore { return &MetaDataStore{conn: c} }

// checkReadOnly is the shared gate every mutating store entry point calls
// first, before any I/O.
func (c *Connection) checkReadOnly(op string) error {
	if c.readOnly {
		return &tserrors.ReadOnlyError{Op: op}
	}
	return nil
}
