package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fieldmesh/tscore/internal/backend"
	"github.com/fieldmesh/tscore/internal/obslog"
	"github.com/fieldmesh/tscore/internal/rowkey"
	"github.com/fieldmesh/tscore/internal/storemetrics"
	"github.com/fieldmesh/tscore/internal/tserrors"
	"github.com/fieldmesh/tscore/internal/tstime"
)

// MaxGetSizeActivity bounds the span of a single getActivityForReader call,
// in seconds (~90 days).
const MaxGetSizeActivity = 90 * 24 * 3600

// ActivityStore is the high-fan-in atomic counter index: one logical
// increment becomes a write to a "total" row plus up to three per-parent
// rows.
type ActivityStore struct {
	conn *Connection
}

// IncrActivity increments the (hour, deviceID) counter on the reader's total
// row and on every parent row, returning the total row's new value.
func (s *ActivityStore) IncrActivity(ctx context.Context, readerID string, parents []string, deviceID string, ts int64, delta int64) (int64, error) {
	start := time.Now()
	v, err := s.incrActivity(ctx, readerID, parents, deviceID, ts, delta)
	s.record(ctx, obslog.OpIncr, readerID, 1, start, err)
	return v, err
}

func (s *ActivityStore) incrActivity(ctx context.Context, readerID string, parents []string, deviceID string, ts int64, delta int64) (int64, error) {
	if err := s.conn.checkReadOnly("ActivityStore.IncrActivity"); err != nil {
		return 0, err
	}
	if len(readerID) < 3 || len(readerID) > 32 {
		return 0, tserrors.NewArgumentError("readerId must be 3-32 chars, got %d", len(readerID))
	}
	if len(parents) < 1 || len(parents) > 3 {
		return 0, tserrors.NewArgumentError("must have 1-3 parents, got %d", len(parents))
	}
	for _, p := range parents {
		if len(p) < 3 || len(p) > 32 {
			return 0, tserrors.NewArgumentError("parentId must be 3-32 chars, got %d", len(p))
		}
	}

	day := tstime.DailyLeft(ts)
	hour := int((ts - day) / 3600)
	column := rowkey.ActivityColumn(hour, deviceID)

	h, err := s.conn.GetInstance()
	if err != nil {
		return 0, err
	}

	total, err := h.IncrementCounter(ctx, rowkey.ActivityTotalRow(readerID, day), "c", column, delta)
	if err != nil {
		return 0, wrapBackendErr("ActivityStore.IncrActivity", err)
	}
	storemetrics.ActivityIncrementsTotal.WithLabelValues("total").Inc()

	for _, p := range parents {
		if _, err := h.IncrementCounter(ctx, rowkey.ActivityParentRow(p, readerID, day), "c", column, delta); err != nil {
			return total, wrapBackendErr("ActivityStore.IncrActivity", err)
		}
		storemetrics.ActivityIncrementsTotal.WithLabelValues("parent").Inc()
	}
	return total, nil
}

// dayHourCounters is {dayHour: {deviceId: [counters...]}}.
type dayHourCounters map[string]map[string][]int64

// GetTotalActivityForDay scans the total-row prefix for dayTs.
func (s *ActivityStore) GetTotalActivityForDay(ctx context.Context, dayTs int64) (dayHourCounters, error) {
	start := time.Now()
	prefix := "t" + "#" + tstime.ReverseDateKey(dayTs)
	out, err := s.scanPrefix(ctx, prefix)
	s.record(ctx, obslog.OpScan, prefix, len(out), start, err)
	return out, err
}

// GetActivityForDay scans one parent's row prefix for dayTs.
func (s *ActivityStore) GetActivityForDay(ctx context.Context, parentID string, dayTs int64) (dayHourCounters, error) {
	start := time.Now()
	prefix := parentID + "#" + tstime.ReverseDateKey(dayTs)
	out, err := s.scanPrefix(ctx, prefix)
	s.record(ctx, obslog.OpScan, prefix, len(out), start, err)
	return out, err
}

func (s *ActivityStore) scanPrefix(ctx context.Context, prefix string) (dayHourCounters, error) {
	h, err := s.conn.GetInstance()
	if err != nil {
		return nil, err
	}
	rows, err := h.Scan(ctx, backend.ScanOptions{StartKey: prefix, Families: []string{"c"}})
	if err != nil {
		return nil, wrapBackendErr("ActivityStore.scanPrefix", err)
	}

	dayKey, err := forwardDayKey(dayKeyFromPrefix(prefix))
	if err != nil {
		return nil, err
	}

	out := make(dayHourCounters)
	for _, row := range rows {
		if !strings.HasPrefix(row.Key, prefix) {
			break
		}
		for _, cell := range row.Cells {
			hour, deviceID, err := parseActivityColumn(cell.Qualifier)
			if err != nil {
				return nil, err
			}
			dayHour := fmt.Sprintf("%s%02d", dayKey, hour)
			if out[dayHour] == nil {
				out[dayHour] = make(map[string][]int64)
			}
			out[dayHour][deviceID] = append(out[dayHour][deviceID], decodeBE64(cell.Value))
		}
	}
	return out, nil
}

// GetActivityForReader returns a sorted-by-dayHour sequence of nested
// counters across every day covered by [fromTs, toTs].
func (s *ActivityStore) GetActivityForReader(ctx context.Context, readerID string, fromTs, toTs int64) ([]ReaderActivityEntry, error) {
	start := time.Now()
	out, err := s.getActivityForReader(ctx, readerID, fromTs, toTs)
	s.record(ctx, obslog.OpGet, readerID, len(out), start, err)
	return out, err
}

// ReaderActivityEntry is one dayHour's worth of per-device counters.
type ReaderActivityEntry struct {
	DayHour  string
	Counters map[string][]int64
}

func (s *ActivityStore) getActivityForReader(ctx context.Context, readerID string, fromTs, toTs int64) ([]ReaderActivityEntry, error) {
	if fromTs > toTs {
		return nil, tserrors.NewArgumentError("fromTs must be <= toTs")
	}
	if toTs-fromTs > MaxGetSizeActivity {
		return nil, tserrors.NewArgumentError("requested span exceeds MAX_GET_SIZE_ACTIVITY")
	}

	days := tstime.DailyTimestamps(fromTs, toTs)
	rowKeys := make([]string, len(days))
	for i, d := range days {
		rowKeys[i] = rowkey.ActivityTotalRow(readerID, d)
	}

	h, err := s.conn.GetInstance()
	if err != nil {
		return nil, err
	}
	rows, err := h.GetRows(ctx, rowKeys, []string{"c"})
	if err != nil {
		return nil, wrapBackendErr("ActivityStore.GetActivityForReader", err)
	}

	merged := make(map[string]map[string][]int64)
	for _, row := range rows {
		dayKey, err := forwardDayKey(dayKeyFromRow(row.Key))
		if err != nil {
			return nil, err
		}
		for _, cell := range row.Cells {
			hour, deviceID, err := parseActivityColumn(cell.Qualifier)
			if err != nil {
				return nil, err
			}
			dayHour := fmt.Sprintf("%s%02d", dayKey, hour)
			if merged[dayHour] == nil {
				merged[dayHour] = make(map[string][]int64)
			}
			merged[dayHour][deviceID] = append(merged[dayHour][deviceID], decodeBE64(cell.Value))
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ReaderActivityEntry, len(keys))
	for i, k := range keys {
		out[i] = ReaderActivityEntry{DayHour: k, Counters: merged[k]}
	}
	return out, nil
}

// dayKeyFromRow extracts the reverse-date segment from a "t#RYRMRD#readerId" row key.
func dayKeyFromRow(key string) string {
	parts := strings.SplitN(key, "#", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func dayKeyFromPrefix(prefix string) string {
	parts := strings.SplitN(prefix, "#", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// forwardDayKey converts a reverse-date row-key segment back into the
// calendar-ascending "YYYYMMDD" form the dayHour keys are reported in.
func forwardDayKey(reverseSegment string) (string, error) {
	dayTs, err := tstime.ParseReverseDateKey(reverseSegment)
	if err != nil {
		return "", tserrors.NewInvariantViolation("malformed activity row day segment %q: %v", reverseSegment, err)
	}
	return time.Unix(dayTs, 0).UTC().Format("20060102"), nil
}

// parseActivityColumn parses a "c:HH.deviceId" qualifier.
func parseActivityColumn(qualifier string) (hour int, deviceID string, err error) {
	rest := strings.TrimPrefix(qualifier, "c:")
	idx := strings.IndexByte(rest, '.')
	if idx < 0 {
		return 0, "", tserrors.NewInvariantViolation("malformed activity qualifier %q", qualifier)
	}
	h, err := strconv.Atoi(rest[:idx])
	if err != nil {
		return 0, "", tserrors.NewInvariantViolation("malformed activity hour in %q: %v", qualifier, err)
	}
	return h, rest[idx+1:], nil
}

func decodeBE64(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return int64(v)
}

func (s *ActivityStore) record(ctx context.Context, op obslog.Op, key string, n int, start time.Time, err error) {
	if s.conn.log != nil {
		s.conn.log.Record(ctx, op, "activity", key, n, time.Since(start), err)
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storemetrics.OperationsTotal.WithLabelValues("activity", string(op), outcome).Inc()
	storemetrics.OperationDuration.WithLabelValues("activity", string(op)).Observe(time.Since(start).Seconds())
}
