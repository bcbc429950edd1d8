// Package series implements the in-memory TimeSeries and EventList
// containers: sorted point storage with bisect-left insertion, trimming,
// bucketed iteration, streaming aggregation, and a stable content hash.
// Containers are not safe for concurrent mutation; callers own one copy per
// goroutine, consistent with how the store layer above builds and discards
// them per request.
package series

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/fieldmesh/tscore/internal/cellcodec"
	"github.com/fieldmesh/tscore/internal/tserrors"
	"github.com/fieldmesh/tscore/internal/tstime"
)

// Point is a single timestamped float sample with its original UTC offset.
// Offset is informational only: all comparisons and storage use TS, which is
// always a UTC unix second.
type Point struct {
	TS     int64
	Offset int32
	Value  float32
}

// TimeSeries is a sorted-by-timestamp, deduplicated run of Points for one
// key/metric pair.
type TimeSeries struct {
	Key    string
	Metric string
	Points []Point
}

// New returns an empty TimeSeries for key/metric.
func New(key, metric string) *TimeSeries {
	return &TimeSeries{Key: key, Metric: metric}
}

// NewWithPoints builds a TimeSeries from an already-sorted, deduplicated
// slice of points, taking ownership of it. Out-of-order or duplicate
// timestamps are reported as an explicit invariant error rather than a panic.
func NewWithPoints(key, metric string, points []Point) (*TimeSeries, error) {
	for i := 1; i < len(points); i++ {
		if points[i].TS <= points[i-1].TS {
			return nil, tserrors.NewInvariantViolation("series %s.%s: points not strictly increasing at index %d", key, metric, i)
		}
	}
	return &TimeSeries{Key: key, Metric: metric, Points: points}, nil
}

// lowerBound returns the first index i such that Points[i].TS >= ts
// (bisect-left over the TS field).
func (t *TimeSeries) lowerBound(ts int64) int {
	return sort.Search(len(t.Points), func(i int) bool { return t.Points[i].TS >= ts })
}

// InsertPoint inserts a single point in sorted position. If a point with the
// same timestamp already exists, it is replaced when overwrite is true and
// left untouched otherwise. Returns the number of points actually written
// (0 or 1), mirroring the original's insert-count convention used to report
// how many of a batch were new.
func (t *TimeSeries) InsertPoint(p Point, overwrite bool) int {
	i := t.lowerBound(p.TS)
	switch {
	case i == len(t.Points):
		t.Points = append(t.Points, p)
		return 1
	case t.Points[i].TS == p.TS:
		if !overwrite {
			return 0
		}
		t.Points[i] = p
		return 1
	default:
		t.Points = append(t.Points, Point{})
		copy(t.Points[i+1:], t.Points[i:])
		t.Points[i] = p
		return 1
	}
}

// Insert inserts many points, returning the total number written. Points
// need not be pre-sorted.
func (t *TimeSeries) Insert(points []Point, overwrite bool) int {
	n := 0
	for _, p := range points {
		n += t.InsertPoint(p, overwrite)
	}
	return n
}

// InsertStorageItem decodes a raw cell and merges the resulting point into
// the series. It is the entry point used when hydrating a series from
// backend rows, one cell at a time.
func (t *TimeSeries) InsertStorageItem(ts int64, raw []byte, overwrite bool) error {
	dec, err := cellcodec.Decode(raw, cellcodec.Float)
	if err != nil {
		var mismatch *cellcodec.MismatchError
		if errors.As(err, &mismatch) {
			return tserrors.NewCodecMismatch(fmt.Sprintf("series %s.%s at ts %d", t.Key, t.Metric, ts), err)
		}
		return err
	}
	t.InsertPoint(Point{TS: ts, Offset: dec.OffsetSecond, Value: dec.FloatValue}, overwrite)
	return nil
}

// EncodeStorageItem encodes the point at index i for writing back to the
// backend.
func (t *TimeSeries) EncodeStorageItem(i int) []byte {
	p := t.Points[i]
	return cellcodec.EncodeFloat(p.Value, p.Offset)
}

// Len reports the number of points.
func (t *TimeSeries) Len() int { return len(t.Points) }

// All returns every point, oldest first.
func (t *TimeSeries) All() []Point { return t.Points }

// YieldRange returns the points with from <= TS <= to, both inclusive.
func (t *TimeSeries) YieldRange(from, to int64) []Point {
	lo := t.lowerBound(from)
	hi := sort.Search(len(t.Points), func(i int) bool { return t.Points[i].TS > to })
	if lo >= hi {
		return nil
	}
	return t.Points[lo:hi]
}

// Trim discards points outside [from, to], in place.
func (t *TimeSeries) Trim(from, to int64) {
	t.Points = append([]Point(nil), t.YieldRange(from, to)...)
}

// TrimCountNewest keeps at most the n newest points.
func (t *TimeSeries) TrimCountNewest(n int) {
	if n < 0 || len(t.Points) <= n {
		return
	}
	t.Points = append([]Point(nil), t.Points[len(t.Points)-n:]...)
}

// TrimCountOldest keeps at most the n oldest points.
func (t *TimeSeries) TrimCountOldest(n int) {
	if n < 0 || len(t.Points) <= n {
		return
	}
	t.Points = append([]Point(nil), t.Points[:n]...)
}

// Bucket is one grouped span of an aggregation result. TS is the bucket's
// left boundary (not the first contributing point's timestamp), and Offset
// is inherited from the bucket's first point, matching how the original
// reports a representative UTC offset per bucket.
type Bucket struct {
	TS     int64
	Offset int32
	Value  float32
	Count  int
}

// daily/hourly bucketing shares one implementation parameterized by the
// bucket-boundary function.
func (t *TimeSeries) bucketed(left func(int64) int64) [][]Point {
	var out [][]Point
	var cur []Point
	var curLeft int64
	for _, p := range t.Points {
		l := left(p.TS)
		if cur == nil || l != curLeft {
			if cur != nil {
				out = append(out, cur)
			}
			cur = nil
			curLeft = l
		}
		cur = append(cur, p)
	}
	if cur != nil {
		out = append(out, cur)
	}
	return out
}

// Daily groups points into day-aligned buckets, in chronological order.
func (t *TimeSeries) Daily() [][]Point {
	return t.bucketed(tstime.DailyLeft)
}

// Hourly groups points into hour-aligned buckets, in chronological order.
func (t *TimeSeries) Hourly() [][]Point {
	return t.bucketed(tstime.HourlyLeft)
}

// DailyStorageBuckets groups points by the day they belong to, keyed by that
// day's left boundary, for building one backend row per day on insert.
func (t *TimeSeries) DailyStorageBuckets() map[int64][]Point {
	out := make(map[int64][]Point)
	for _, p := range t.Points {
		d := tstime.DailyLeft(p.TS)
		out[d] = append(out[d], p)
	}
	return out
}

// aggFunc computes one summary value and sample count over a bucket.
type aggFunc func([]Point) (float32, int)

var aggFuncs = map[string]aggFunc{
	"sum": func(pts []Point) (float32, int) {
		var s float32
		for _, p := range pts {
			s += p.Value
		}
		return s, len(pts)
	},
	"count": func(pts []Point) (float32, int) {
		return float32(len(pts)), len(pts)
	},
	"min": func(pts []Point) (float32, int) {
		m := pts[0].Value
		for _, p := range pts[1:] {
			if p.Value < m {
				m = p.Value
			}
		}
		return m, len(pts)
	},
	"max": func(pts []Point) (float32, int) {
		m := pts[0].Value
		for _, p := range pts[1:] {
			if p.Value > m {
				m = p.Value
			}
		}
		return m, len(pts)
	},
	"amp": func(pts []Point) (float32, int) {
		mn, mx := pts[0].Value, pts[0].Value
		for _, p := range pts[1:] {
			if p.Value < mn {
				mn = p.Value
			}
			if p.Value > mx {
				mx = p.Value
			}
		}
		return mx - mn, len(pts)
	},
	"mean": func(pts []Point) (float32, int) {
		var s float32
		for _, p := range pts {
			s += p.Value
		}
		return s / float32(len(pts)), len(pts)
	},
}

// Aggregation groups the series by group ("daily" or "hourly") and reduces
// each bucket with function (one of sum/count/min/max/amp/mean).
func (t *TimeSeries) Aggregation(group, function string) ([]Bucket, error) {
	fn, ok := aggFuncs[function]
	if !ok {
		return nil, tserrors.NewArgumentError("unknown aggregation function %q", function)
	}
	var buckets [][]Point
	var left func(int64) int64
	switch group {
	case "daily":
		buckets = t.Daily()
		left = tstime.DailyLeft
	case "hourly":
		buckets = t.Hourly()
		left = tstime.HourlyLeft
	default:
		return nil, tserrors.NewArgumentError("unknown aggregation group %q", group)
	}
	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		v, n := fn(b)
		out = append(out, Bucket{TS: left(b[0].TS), Offset: b[0].Offset, Value: v, Count: n})
	}
	return out, nil
}

// ToHash returns a stable content hash over the key, metric, length, and
// timestamp span, suitable for cheap equality checks without comparing every
// point.
func (t *TimeSeries) ToHash() string {
	var tsMin, tsMax int64
	if len(t.Points) > 0 {
		tsMin = t.Points[0].TS
		tsMax = t.Points[len(t.Points)-1].TS
	}
	s := fmt.Sprintf("%s.%s.%d.%d.%d", t.Key, t.Metric, len(t.Points), tsMin, tsMax)
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
