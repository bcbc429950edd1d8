// Package rowkey builds the backend row keys and column qualifiers used by
// every store, per the reverse-date schema: lexical ascending scan order on
// a `{prefix}#{RYRMRD}` key equals chronological descending order, which is
// what lets "last N" queries run as a bounded forward scan instead of a
// secondary index.
package rowkey

import (
	"fmt"

	"github.com/fieldmesh/tscore/internal/tstime"
)

const sep = "#"

// TimeSeries builds the write/read row key for one entity on one day.
func TimeSeries(entityKey string, dayTs int64) string {
	return entityKey + sep + tstime.ReverseDateKey(dayTs)
}

// TimeSeriesScanStart builds the start key for a forward "last N" scan:
// the row for the day containing maxTs, which is the lexically smallest
// (i.e. most recent) row at or before maxTs.
func TimeSeriesScanStart(entityKey string, maxTs int64) string {
	return TimeSeries(entityKey, maxTs)
}

// TimeSeriesColumn builds the column qualifier for one metric cell.
func TimeSeriesColumn(metricID string, ts int64) string {
	return fmt.Sprintf("%s:%d", metricID, ts)
}

// Event builds the write/read row key for one entity/event-name on one day.
func Event(entityKey, name string, dayTs int64) string {
	return entityKey + sep + name + sep + tstime.ReverseDateKey(dayTs)
}

// EventColumn builds the column qualifier for one event cell.
func EventColumn(ts int64) string {
	return fmt.Sprintf("e:%d", ts)
}

// ActivityTotalRow builds the row key for the fan-in "total" activity row.
func ActivityTotalRow(readerID string, dayTs int64) string {
	return "t" + sep + tstime.ReverseDateKey(dayTs) + sep + readerID
}

// ActivityParentRow builds the row key for one per-parent activity row.
func ActivityParentRow(parentID, readerID string, dayTs int64) string {
	return parentID + sep + tstime.ReverseDateKey(dayTs) + sep + readerID
}

// ActivityColumn builds the column qualifier for one hour/device counter cell.
func ActivityColumn(hour int, deviceID string) string {
	return fmt.Sprintf("c:%02d.%s", hour, deviceID)
}

// InsertKeys returns every physical row key a single activity increment must
// touch: the total row, plus one row per parent (parents is capped at 3 by
// the caller's validation, per spec).
func InsertKeys(readerID string, parents []string, dayTs int64) []string {
	keys := make([]string, 0, 1+len(parents))
	keys = append(keys, ActivityTotalRow(readerID, dayTs))
	for _, p := range parents {
		keys = append(keys, ActivityParentRow(p, readerID, dayTs))
	}
	return keys
}

// MetadataRow builds the stable per-object row key metadata lives under.
func MetadataRow(objectName, objectKey string) string {
	return objectName + sep + objectKey
}

// HasPrefix reports whether key belongs to the given entity/row prefix,
// using the `#` separator so that a prefix of "abc" does not match a row for
// entity "abcd". Scans must stop the moment this goes false, since the
// reverse-date scheme places the next, unrelated prefix lexically adjacent
// to the final row of the current one.
func HasPrefix(key, prefix string) bool {
	if len(key) < len(prefix)+1 {
		return false
	}
	return key[:len(prefix)] == prefix && key[len(prefix)] == '#'
}
