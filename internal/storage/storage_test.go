package storage

import (
	"context"
	"testing"
	"time"

	"github.com/fieldmesh/tscore/internal/backend"
	"github.com/fieldmesh/tscore/internal/backend/memsim"
	"github.com/fieldmesh/tscore/internal/metricdef"
	"github.com/fieldmesh/tscore/internal/series"
)

func newTestConnection(t *testing.T, readOnly bool) *Connection {
	t.Helper()
	shared := memsim.New()
	factory := func() (backend.Backend, error) { return shared, nil }
	conn, err := New(factory, Options{
		TablePrefix: "test",
		PoolSize:    1,
		ReadOnly:    readOnly,
		Metrics: []metricdef.Metric{
			{Name: "power", ID: "p", DeletePossible: true},
			{Name: "temp", ID: "t", DeletePossible: false},
		},
	})
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}
	return conn
}

func unixUTC(y int, m time.Month, d, h, min, sec int) int64 {
	return time.Date(y, m, d, h, min, sec, 0, time.UTC).Unix()
}

// reproduces the S1/test_simple scenario from the property-test corpus: 502
// points at 600s spacing starting at epoch, all read back over
// [0, 501*600], and daily-mean aggregation on the round-tripped series.
func TestTimeSeriesInsertAndGet(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.TimeSeriesStore()
	ctx := context.Background()

	ts := series.New("dev1", "power")
	pts := make([]series.Point, 0, 502)
	for i := int64(0); i < 502; i++ {
		pts = append(pts, series.Point{TS: i * 600, Value: float32(i)})
	}
	ts.Insert(pts, false)

	n, err := store.Insert(ctx, "dev1", ts)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 502 {
		t.Fatalf("expected 502 written, got %d", n)
	}

	got, err := store.Get(ctx, "dev1", []string{"power"}, 0, 501*600)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].Len() != 502 {
		t.Fatalf("expected 1 series of 502 points, got %+v", got)
	}

	buckets, err := got[0].Aggregation("daily", "mean")
	if err != nil {
		t.Fatalf("aggregation: %v", err)
	}
	if len(buckets) != 4 {
		t.Fatalf("expected 4 daily buckets, got %d", len(buckets))
	}
}

// reproduces the literal S2/test_delete scenario: 144 points/day across 5
// days, a single-day delete returns 1 touched row, and a subsequent get
// returns 144*4 remaining points.
func TestTimeSeriesDeleteWholeDayGranularity(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.TimeSeriesStore()
	ctx := context.Background()

	ts := series.New("dev1", "power")
	day0 := unixUTC(2023, time.January, 1, 0, 0, 0)
	for d := int64(0); d < 5; d++ {
		for i := int64(0); i < 144; i++ {
			ts.InsertPoint(series.Point{TS: day0 + d*86400 + i*600, Value: float32(i)}, false)
		}
	}
	if _, err := store.Insert(ctx, "dev1", ts); err != nil {
		t.Fatalf("insert: %v", err)
	}

	touched, err := store.Delete(ctx, "dev1", []string{"power"}, day0, day0+86400-1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if touched != 1 {
		t.Fatalf("expected 1 row touched, got %d", touched)
	}

	got, err := store.Get(ctx, "dev1", []string{"power"}, day0, day0+5*86400-1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[0].Len() != 144*4 {
		t.Fatalf("expected %d remaining points, got %d", 144*4, got[0].Len())
	}
}

func TestTimeSeriesDeleteForbidden(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.TimeSeriesStore()
	ctx := context.Background()
	_, err := store.Delete(ctx, "dev1", []string{"temp"}, 0, 86400)
	if err == nil {
		t.Fatal("expected DeleteForbidden for metric without deletePossible")
	}
}

func TestTimeSeriesReadOnlyRejectsInsert(t *testing.T) {
	conn := newTestConnection(t, true)
	store := conn.TimeSeriesStore()
	ctx := context.Background()
	ts := series.New("dev1", "power")
	ts.InsertPoint(series.Point{TS: 0, Value: 1}, false)
	if _, err := store.Insert(ctx, "dev1", ts); err == nil {
		t.Fatal("expected ReadOnly error")
	}
}

func TestTimeSeriesUnknownMetric(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.TimeSeriesStore()
	ctx := context.Background()
	ts := series.New("dev1", "bogus")
	ts.InsertPoint(series.Point{TS: 0, Value: 1}, false)
	if _, err := store.Insert(ctx, "dev1", ts); err == nil {
		t.Fatal("expected UnknownMetric error")
	}
}

// reproduces the S6-style reverse-date ordering check through GetLastValues:
// scanning newest day first returns the most recent points.
func TestTimeSeriesGetLastValues(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.TimeSeriesStore()
	ctx := context.Background()

	ts := series.New("dev1", "power")
	base := unixUTC(2023, time.June, 1, 0, 0, 0)
	for d := int64(0); d < 10; d++ {
		ts.InsertPoint(series.Point{TS: base + d*86400, Value: float32(d)}, false)
	}
	if _, err := store.Insert(ctx, "dev1", ts); err != nil {
		t.Fatalf("insert: %v", err)
	}

	maxTs := base + 10*86400
	got, err := store.GetLastValues(ctx, "dev1", []string{"power"}, 3, 30, maxTs)
	if err != nil {
		t.Fatalf("get last values: %v", err)
	}
	if got[0].Len() != 3 {
		t.Fatalf("expected 3 points, got %d", got[0].Len())
	}
	last := got[0].All()
	if last[2].Value != 9 {
		t.Fatalf("expected newest value 9, got %v", last[2].Value)
	}
}

func TestEventStoreInsertAndGet(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.EventStore()
	ctx := context.Background()

	evs := series.NewEventList("dev1", "door")
	evs.InsertEvent(series.Event{TS: 100, Value: map[string]interface{}{"state": "open"}})
	evs.InsertEvent(series.Event{TS: 200, Value: map[string]interface{}{"state": "closed"}})

	n, err := store.InsertEvents(ctx, "dev1", evs)
	if err != nil {
		t.Fatalf("insert events: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 written, got %d", n)
	}

	got, err := store.GetEvents(ctx, "dev1", "door", 100, 200)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", got.Len())
	}
}

func TestEventStoreBatchSizeLimit(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.EventStore()
	ctx := context.Background()
	empty := series.NewEventList("dev1", "door")
	if _, err := store.InsertEvents(ctx, "dev1", empty); err == nil {
		t.Fatal("expected ArgumentError for empty batch")
	}
}

func TestActivityStoreIncrAndQuery(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.ActivityStore()
	ctx := context.Background()

	ts := unixUTC(2023, time.June, 15, 7, 30, 0)
	total, err := store.IncrActivity(ctx, "reader01", []string{"parentA"}, "device1", ts, 1)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected total 1, got %d", total)
	}
	total, err = store.IncrActivity(ctx, "reader01", []string{"parentA"}, "device1", ts, 1)
	if err != nil {
		t.Fatalf("incr2: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected total 2, got %d", total)
	}

	entries, err := store.GetActivityForReader(ctx, "reader01", unixUTC(2023, time.June, 15, 0, 0, 0), unixUTC(2023, time.June, 15, 23, 59, 59))
	if err != nil {
		t.Fatalf("get activity for reader: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 dayHour entry, got %d", len(entries))
	}
	if entries[0].Counters["device1"][0] != 2 {
		t.Fatalf("expected counter 2, got %v", entries[0].Counters["device1"])
	}
}

func TestActivityStoreValidation(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.ActivityStore()
	ctx := context.Background()
	if _, err := store.IncrActivity(ctx, "ab", []string{"parentA"}, "d1", 0, 1); err == nil {
		t.Fatal("expected ArgumentError for too-short readerId")
	}
	if _, err := store.IncrActivity(ctx, "reader01", nil, "d1", 0, 1); err == nil {
		t.Fatal("expected ArgumentError for zero parents")
	}
	if _, err := store.IncrActivity(ctx, "reader01", []string{"a", "b", "c", "d"}, "d1", 0, 1); err == nil {
		t.Fatal("expected ArgumentError for too many parents")
	}
}

func TestMetaDataStorePutAndGet(t *testing.T) {
	conn := newTestConnection(t, false)
	store := conn.MetaDataStore()
	ctx := context.Background()

	if err := store.Put(ctx, "device", "dev1", "config", map[string]interface{}{"threshold": float64(10)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "device", "dev1", "location", map[string]interface{}{"site": "a"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	all, err := store.Get(ctx, "device", "dev1", nil)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 namespaces, got %d", len(all))
	}

	one, err := store.Get(ctx, "device", "dev1", []string{"config"})
	if err != nil {
		t.Fatalf("get filtered: %v", err)
	}
	if len(one) != 1 || one["config"]["threshold"] != float64(10) {
		t.Fatalf("unexpected filtered result: %+v", one)
	}
}
