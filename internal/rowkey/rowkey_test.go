package rowkey

import (
	"testing"
	"time"
)

func unixUTC(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func TestTimeSeriesRowKey(t *testing.T) {
	day := unixUTC(2023, time.June, 15)
	key := TimeSeries("dev1", day)
	if key != "dev1#29774435" {
		t.Fatalf("unexpected row key: %s", key)
	}
}

func TestTimeSeriesColumn(t *testing.T) {
	col := TimeSeriesColumn("temp", 123456)
	if col != "temp:123456" {
		t.Fatalf("unexpected column: %s", col)
	}
}

func TestEventRowKeyAndColumn(t *testing.T) {
	day := unixUTC(2023, time.June, 15)
	key := Event("dev1", "door", day)
	if key != "dev1#door#29774435" {
		t.Fatalf("unexpected event row key: %s", key)
	}
	if EventColumn(42) != "e:42" {
		t.Fatalf("unexpected event column")
	}
}

func TestActivityRows(t *testing.T) {
	day := unixUTC(2023, time.June, 15)
	total := ActivityTotalRow("reader01", day)
	if total != "t#29774435#reader01" {
		t.Fatalf("unexpected total row: %s", total)
	}
	parent := ActivityParentRow("parentA", "reader01", day)
	if parent != "parentA#29774435#reader01" {
		t.Fatalf("unexpected parent row: %s", parent)
	}
	if ActivityColumn(7, "devX") != "c:07.devX" {
		t.Fatalf("unexpected activity column")
	}
}

func TestInsertKeys(t *testing.T) {
	day := unixUTC(2023, time.June, 15)
	keys := InsertKeys("reader01", []string{"p1", "p2"}, day)
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys (total + 2 parents), got %d", len(keys))
	}
	if keys[0] != ActivityTotalRow("reader01", day) {
		t.Fatalf("expected first key to be the total row")
	}
}

func TestMetadataRow(t *testing.T) {
	if MetadataRow("device", "dev1") != "device#dev1" {
		t.Fatalf("unexpected metadata row key")
	}
}

func TestHasPrefix(t *testing.T) {
	day := unixUTC(2023, time.June, 15)
	row := TimeSeries("dev1", day)
	if !HasPrefix(row, "dev1") {
		t.Fatalf("expected prefix match")
	}
	if HasPrefix(row, "dev") {
		t.Fatalf("expected no match for non-separator-bounded prefix")
	}
	if HasPrefix(row, "dev12") {
		t.Fatalf("expected no match for longer non-matching prefix")
	}
}
