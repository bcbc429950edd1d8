package series

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fieldmesh/tscore/internal/cellcodec"
	"github.com/fieldmesh/tscore/internal/tserrors"
)

// Event is a single timestamped dict sample. Unlike Point, duplicate
// timestamps are never merged: EventList keeps every event at a given
// instant. The event store writes one cell per timestamp (column "e:{ts}"),
// so events sharing a second overwrite each other once stored.
type Event struct {
	TS     int64
	Offset int32
	Value  map[string]interface{}
}

// EventList is a sorted-by-timestamp run of Events for one key/event-type
// pair. Unlike TimeSeries it tolerates duplicate timestamps, since distinct
// events can legitimately occur in the same second.
type EventList struct {
	Key   string
	Event string
	Items []Event
}

// NewEventList returns an empty EventList for key/event.
func NewEventList(key, event string) *EventList {
	return &EventList{Key: key, Event: event}
}

// InsertEvent inserts ev in sorted position, after any existing events with
// the same timestamp, so insertion order among same-instant events is
// preserved.
func (l *EventList) InsertEvent(ev Event) {
	i := sort.Search(len(l.Items), func(i int) bool { return l.Items[i].TS > ev.TS })
	l.Items = append(l.Items, Event{})
	copy(l.Items[i+1:], l.Items[i:])
	l.Items[i] = ev
}

// Insert inserts many events, in the order given.
func (l *EventList) Insert(evs []Event) {
	for _, ev := range evs {
		l.InsertEvent(ev)
	}
}

// InsertStorageItem decodes a raw dict cell and inserts it in sorted
// position, as InsertEvent does.
func (l *EventList) InsertStorageItem(ts int64, raw []byte) error {
	dec, err := cellcodec.Decode(raw, cellcodec.Dict)
	if err != nil {
		var mismatch *cellcodec.MismatchError
		if errors.As(err, &mismatch) {
			return tserrors.NewCodecMismatch(fmt.Sprintf("event %s.%s at ts %d", l.Key, l.Event, ts), err)
		}
		return err
	}
	l.InsertEvent(Event{TS: ts, Offset: dec.OffsetSecond, Value: dec.DictValue})
	return nil
}

// EncodeStorageItem encodes the event at index i for writing back to the
// backend.
func (l *EventList) EncodeStorageItem(i int) ([]byte, error) {
	ev := l.Items[i]
	return cellcodec.EncodeDict(ev.Value, ev.Offset)
}

// Len reports the number of events.
func (l *EventList) Len() int { return len(l.Items) }

// All returns every event, oldest first.
func (l *EventList) All() []Event { return l.Items }

// YieldRange returns the events with from <= TS <= to, both inclusive.
func (l *EventList) YieldRange(from, to int64) []Event {
	lo := sort.Search(len(l.Items), func(i int) bool { return l.Items[i].TS >= from })
	hi := sort.Search(len(l.Items), func(i int) bool { return l.Items[i].TS > to })
	if lo >= hi {
		return nil
	}
	return l.Items[lo:hi]
}
