package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fieldmesh/tscore/internal/backend"
	"github.com/fieldmesh/tscore/internal/cellcodec"
	"github.com/fieldmesh/tscore/internal/obslog"
	"github.com/fieldmesh/tscore/internal/rowkey"
	"github.com/fieldmesh/tscore/internal/series"
	"github.com/fieldmesh/tscore/internal/storemetrics"
	"github.com/fieldmesh/tscore/internal/tserrors"
	"github.com/fieldmesh/tscore/internal/tstime"
)

// MaxGetSizeTimeSeries bounds the span of a single Get call, in seconds
// (~400 days). GetLastValues is bounded by its maxDays row limit instead.
const MaxGetSizeTimeSeries = 400 * 24 * 3600

// TimeSeriesStore reads and writes Float-variant series under the "{entityKey}#{reverseDate}" row family.
type TimeSeriesStore struct {
	conn *Connection
}

// Insert writes every point of ts, grouped into one backend row per UTC day.
// Returns the number of points written.
func (s *TimeSeriesStore) Insert(ctx context.Context, entityKey string, ts *series.TimeSeries) (int, error) {
	start := time.Now()
	n, err := s.insert(ctx, entityKey, ts)
	s.record(ctx, obslog.OpInsert, entityKey, n, start, err)
	return n, err
}

func (s *TimeSeriesStore) insert(ctx context.Context, entityKey string, ts *series.TimeSeries) (int, error) {
	if err := s.conn.checkReadOnly("TimeSeriesStore.Insert"); err != nil {
		return 0, err
	}
	if ts == nil || ts.Len() == 0 {
		return 0, tserrors.NewArgumentError("series must be non-empty")
	}
	metric, err := s.conn.Registry().Lookup(ts.Metric)
	if err != nil {
		return 0, &tserrors.UnknownMetricError{Metric: ts.Metric}
	}

	buckets := ts.DailyStorageBuckets()
	mutations := make([]backend.Mutation, 0, len(buckets))
	for day, pts := range buckets {
		cells := make([]backend.Cell, 0, len(pts))
		for _, p := range pts {
			cells = append(cells, backend.Cell{
				Family:    metric.ID,
				Qualifier: rowkey.TimeSeriesColumn(metric.ID, p.TS),
				Value:     cellcodec.EncodeFloat(p.Value, p.Offset),
			})
		}
		mutations = append(mutations, backend.Mutation{RowKey: rowkey.TimeSeries(entityKey, day), Cells: cells})
	}

	h, err := s.conn.GetInstance()
	if err != nil {
		return 0, err
	}
	results, err := h.MutateRows(ctx, mutations)
	if err != nil {
		return 0, wrapBackendErr("TimeSeriesStore.Insert", err)
	}
	written := 0
	for i, r := range results {
		if !r.Applied {
			return written, &tserrors.BackendError{Op: "TimeSeriesStore.Insert", Message: "mutation not applied", Cause: r.Err}
		}
		written += len(mutations[i].Cells)
	}
	storemetrics.PointsWrittenTotal.WithLabelValues("timeseries", ts.Metric).Add(float64(written))
	return written, nil
}

// Get reads each requested metric over [fromTs, toTs], returning one
// TimeSeries per metric in the order requested.
func (s *TimeSeriesStore) Get(ctx context.Context, entityKey string, metricNames []string, fromTs, toTs int64) ([]*series.TimeSeries, error) {
	start := time.Now()
	out, err := s.get(ctx, entityKey, metricNames, fromTs, toTs)
	n := 0
	for _, t := range out {
		n += t.Len()
	}
	s.record(ctx, obslog.OpGet, entityKey, n, start, err)
	return out, err
}

func (s *TimeSeriesStore) get(ctx context.Context, entityKey string, metricNames []string, fromTs, toTs int64) ([]*series.TimeSeries, error) {
	if fromTs > toTs {
		return nil, tserrors.NewArgumentError("fromTs must be <= toTs")
	}
	if toTs-fromTs > MaxGetSizeTimeSeries {
		return nil, tserrors.NewArgumentError("requested span exceeds MAX_GET_SIZE_TIMESERIES")
	}

	metrics, err := s.resolveMetrics(metricNames)
	if err != nil {
		return nil, err
	}

	days := tstime.DailyTimestamps(fromTs, toTs)
	rowKeys := make([]string, len(days))
	for i, d := range days {
		rowKeys[i] = rowkey.TimeSeries(entityKey, d)
	}
	families := metricIDs(metrics)

	h, err := s.conn.GetInstance()
	if err != nil {
		return nil, err
	}
	rows, err := h.GetRows(ctx, rowKeys, families)
	if err != nil {
		return nil, wrapBackendErr("TimeSeriesStore.Get", err)
	}

	result := newSeriesByID(entityKey, metrics)
	if err := mergeRows(rows, result.byID); err != nil {
		return nil, err
	}

	out := make([]*series.TimeSeries, len(metrics))
	for i, m := range metrics {
		ts := result.byID[m.ID]
		ts.Trim(fromTs, toTs)
		out[i] = ts
	}
	return out, nil
}

// GetLastValues scans newest-day-first from maxTs and returns the most
// recent count points per requested metric.
func (s *TimeSeriesStore) GetLastValues(ctx context.Context, entityKey string, metricNames []string, count, maxDays int, maxTs int64) ([]*series.TimeSeries, error) {
	start := time.Now()
	out, err := s.getLastValues(ctx, entityKey, metricNames, count, maxDays, maxTs)
	n := 0
	for _, t := range out {
		n += t.Len()
	}
	s.record(ctx, obslog.OpScan, entityKey, n, start, err)
	return out, err
}

func (s *TimeSeriesStore) getLastValues(ctx context.Context, entityKey string, metricNames []string, count, maxDays int, maxTs int64) ([]*series.TimeSeries, error) {
	if count <= 0 {
		count = 1
	}
	if maxDays <= 0 {
		maxDays = 365
	}
	if maxTs == 0 {
		maxTs = time.Now().Add(24 * time.Hour).Unix()
	}

	metrics, err := s.resolveMetrics(metricNames)
	if err != nil {
		return nil, err
	}
	families := metricIDs(metrics)

	h, err := s.conn.GetInstance()
	if err != nil {
		return nil, err
	}
	rows, err := h.Scan(ctx, backend.ScanOptions{
		StartKey: rowkey.TimeSeriesScanStart(entityKey, maxTs),
		RowLimit: maxDays,
		Families: families,
	})
	if err != nil {
		return nil, wrapBackendErr("TimeSeriesStore.GetLastValues", err)
	}

	result := newSeriesByID(entityKey, metrics)
	for _, row := range rows {
		if !rowkey.HasPrefix(row.Key, entityKey) {
			break
		}
		if err := mergeRow(row, result.byID); err != nil {
			return nil, err
		}
		if allSatisfied(result.byID, count) {
			break
		}
	}

	out := make([]*series.TimeSeries, len(metrics))
	for i, m := range metrics {
		ts := result.byID[m.ID]
		ts.TrimCountNewest(count)
		out[i] = ts
	}
	return out, nil
}

// Delete removes the requested metrics' cells for every day in
// [fromTs, toTs], at whole-day granularity. Returns the number of day-rows
// touched.
func (s *TimeSeriesStore) Delete(ctx context.Context, entityKey string, metricNames []string, fromTs, toTs int64) (int, error) {
	start := time.Now()
	n, err := s.delete(ctx, entityKey, metricNames, fromTs, toTs)
	s.record(ctx, obslog.OpDelete, entityKey, n, start, err)
	return n, err
}

func (s *TimeSeriesStore) delete(ctx context.Context, entityKey string, metricNames []string, fromTs, toTs int64) (int, error) {
	if err := s.conn.checkReadOnly("TimeSeriesStore.Delete"); err != nil {
		return 0, err
	}
	metrics, err := s.resolveMetrics(metricNames)
	if err != nil {
		return 0, err
	}
	for _, m := range metrics {
		if !m.DeletePossible {
			return 0, &tserrors.DeleteForbiddenError{Metric: m.Name}
		}
	}

	days := tstime.DailyTimestamps(fromTs, toTs)
	families := metricIDs(metrics)
	deletes := make([]backend.ColumnDelete, len(days))
	for i, d := range days {
		deletes[i] = backend.ColumnDelete{RowKey: rowkey.TimeSeries(entityKey, d), Families: families}
	}

	h, err := s.conn.GetInstance()
	if err != nil {
		return 0, err
	}
	results, err := h.DeleteColumns(ctx, deletes)
	if err != nil {
		return 0, wrapBackendErr("TimeSeriesStore.Delete", err)
	}
	touched := 0
	for _, r := range results {
		if r.Applied {
			touched++
		}
	}
	return touched, nil
}

func (s *TimeSeriesStore) resolveMetrics(names []string) ([]metricLike, error) {
	out := make([]metricLike, len(names))
	for i, n := range names {
		m, err := s.conn.Registry().Lookup(n)
		if err != nil {
			return nil, &tserrors.UnknownMetricError{Metric: n}
		}
		out[i] = metricLike{Name: m.Name, ID: m.ID, DeletePossible: m.DeletePossible}
	}
	return out, nil
}

func (s *TimeSeriesStore) record(ctx context.Context, op obslog.Op, key string, n int, start time.Time, err error) {
	if s.conn.log != nil {
		s.conn.log.Record(ctx, op, "timeseries", key, n, time.Since(start), err)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storemetrics.OperationsTotal.WithLabelValues("timeseries", string(op), outcome).Inc()
	storemetrics.OperationDuration.WithLabelValues("timeseries", string(op)).Observe(time.Since(start).Seconds())
}

// metricLike is the subset of metricdef.Metric fields the store layer uses,
// copied out of the registry's struct when metric names are resolved.
type metricLike struct {
	Name           string
	ID             string
	DeletePossible bool
}

func metricIDs(metrics []metricLike) []string {
	ids := make([]string, len(metrics))
	for i, m := range metrics {
		ids[i] = m.ID
	}
	return ids
}

type seriesByID struct {
	byID map[string]*series.TimeSeries
}

func newSeriesByID(entityKey string, metrics []metricLike) seriesByID {
	m := make(map[string]*series.TimeSeries, len(metrics))
	for _, met := range metrics {
		m[met.ID] = series.New(entityKey, met.Name)
	}
	return seriesByID{byID: m}
}

// mergeRows decodes every cell of every row into the matching result
// series, identified by the cell's column family.
func mergeRows(rows []backend.Row, byID map[string]*series.TimeSeries) error {
	for _, row := range rows {
		if err := mergeRow(row, byID); err != nil {
			return err
		}
	}
	return nil
}

func mergeRow(row backend.Row, byID map[string]*series.TimeSeries) error {
	for _, cell := range row.Cells {
		ts, ok := byID[cell.Family]
		if !ok {
			continue
		}
		parsedTs, err := parseQualifierTs(cell.Qualifier)
		if err != nil {
			return err
		}
		if err := ts.InsertStorageItem(parsedTs, cell.Value, true); err != nil {
			return err
		}
	}
	return nil
}

// parseQualifierTs extracts the unix timestamp from a "{metricId}:{ts}"
// column qualifier.
func parseQualifierTs(qualifier string) (int64, error) {
	idx := strings.LastIndexByte(qualifier, ':')
	if idx < 0 {
		return 0, tserrors.NewInvariantViolation("malformed column qualifier %q", qualifier)
	}
	ts, err := strconv.ParseInt(qualifier[idx+1:], 10, 64)
	if err != nil {
		return 0, tserrors.NewInvariantViolation("malformed column qualifier %q: %v", qualifier, err)
	}
	return ts, nil
}

func allSatisfied(byID map[string]*series.TimeSeries, count int) bool {
	for _, ts := range byID {
		if ts.Len() < count {
			return false
		}
	}
	return true
}

func wrapBackendErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &tserrors.CancelledError{Cause: err}
	}
	return &tserrors.BackendError{Op: op, Message: err.Error(), Cause: err}
}
