package series

import "testing"

func TestEventListInsertKeepsOrderAndDuplicates(t *testing.T) {
	l := NewEventList("k1", "door")
	l.Insert([]Event{
		{TS: 100, Value: map[string]interface{}{"state": "open"}},
		{TS: 50, Value: map[string]interface{}{"state": "closed"}},
		{TS: 100, Value: map[string]interface{}{"state": "ajar"}},
	})
	if l.Len() != 3 {
		t.Fatalf("expected 3 events, got %d", l.Len())
	}
	if l.Items[0].TS != 50 {
		t.Fatalf("expected first event at ts 50, got %d", l.Items[0].TS)
	}
	// same-timestamp events preserve relative insertion order
	if l.Items[1].Value["state"] != "open" || l.Items[2].Value["state"] != "ajar" {
		t.Fatalf("unexpected same-timestamp ordering: %+v", l.Items[1:])
	}
}

func TestEventListYieldRangeInclusive(t *testing.T) {
	l := NewEventList("k1", "door")
	for i := int64(0); i < 5; i++ {
		l.InsertEvent(Event{TS: i * 10, Value: map[string]interface{}{"i": i}})
	}
	got := l.YieldRange(10, 30)
	if len(got) != 3 {
		t.Fatalf("expected 3 events in [10,30], got %d", len(got))
	}
	if got[0].TS != 10 || got[len(got)-1].TS != 30 {
		t.Fatalf("unexpected boundaries: %+v", got)
	}
}

func TestEventListStorageRoundTrip(t *testing.T) {
	l := NewEventList("k1", "door")
	l.InsertEvent(Event{TS: 5, Offset: 3600, Value: map[string]interface{}{"state": "open"}})
	raw, err := l.EncodeStorageItem(0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	l2 := NewEventList("k1", "door")
	if err := l2.InsertStorageItem(5, raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if l2.Items[0].Value["state"] != "open" {
		t.Fatalf("unexpected round-tripped value: %+v", l2.Items[0].Value)
	}
	if l2.Items[0].Offset != 3600 {
		t.Fatalf("unexpected round-tripped offset: %d", l2.Items[0].Offset)
	}
}
