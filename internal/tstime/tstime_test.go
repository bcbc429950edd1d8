package tstime

import (
	"testing"
	"time"
)

func unixUTC(y int, m time.Month, d, h, min, s int) int64 {
	return time.Date(y, m, d, h, min, s, 0, time.UTC).Unix()
}

func TestReverseDateKeyOrdering(t *testing.T) {
	d1 := unixUTC(2023, time.June, 15, 12, 0, 0)
	d2 := unixUTC(2024, time.January, 2, 0, 0, 0)

	k1 := ReverseDateKey(d1)
	k2 := ReverseDateKey(d2)

	if k1 != "29774435" {
		t.Fatalf("expected 29774435, got %s", k1)
	}
	if k2 != "29764948" {
		t.Fatalf("expected 29764948, got %s", k2)
	}
	if !(k1 > k2) {
		t.Fatalf("expected reverse(d1) > reverse(d2) lexically, got %s <= %s", k1, k2)
	}
}

func TestReverseDateKeyRoundTrip(t *testing.T) {
	ts := unixUTC(2021, time.March, 9, 18, 30, 0)
	key := ReverseDateKey(ts)
	parsed, err := ParseReverseDateKey(key)
	if err != nil {
		t.Fatalf("ParseReverseDateKey: %v", err)
	}
	if parsed != DailyLeft(ts) {
		t.Fatalf("expected %d, got %d", DailyLeft(ts), parsed)
	}
}

func TestDailyLeftRight(t *testing.T) {
	ts := unixUTC(2022, time.May, 4, 13, 45, 30)
	left := DailyLeft(ts)
	right := DailyRight(ts)
	if left != unixUTC(2022, time.May, 4, 0, 0, 0) {
		t.Fatalf("unexpected daily left: %d", left)
	}
	if right != left+24*3600-1 {
		t.Fatalf("unexpected daily right: %d", right)
	}
}

func TestHourlyLeftRight(t *testing.T) {
	ts := unixUTC(2022, time.May, 4, 13, 45, 30)
	left := HourlyLeft(ts)
	right := HourlyRight(ts)
	if left != unixUTC(2022, time.May, 4, 13, 0, 0) {
		t.Fatalf("unexpected hourly left: %d", left)
	}
	if right != left+3600-1 {
		t.Fatalf("unexpected hourly right: %d", right)
	}
}

func TestWeeklyLeftIsMonday(t *testing.T) {
	// Thursday
	ts := unixUTC(2023, time.August, 10, 9, 0, 0)
	left := WeeklyLeft(ts)
	lt := time.Unix(left, 0).UTC()
	if lt.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", lt.Weekday())
	}
	if lt.Day() != 7 || lt.Month() != time.August {
		t.Fatalf("expected Aug 7, got %s", lt)
	}
}

func TestMonthlyLeftRight(t *testing.T) {
	ts := unixUTC(2022, time.February, 20, 0, 0, 0)
	left := MonthlyLeft(ts)
	right := MonthlyRight(ts)
	if left != unixUTC(2022, time.February, 1, 0, 0, 0) {
		t.Fatalf("unexpected month left: %d", left)
	}
	if right != unixUTC(2022, time.March, 1, 0, 0, 0)-1 {
		t.Fatalf("unexpected month right: %d", right)
	}
}

func TestDailyTimestamps(t *testing.T) {
	from := unixUTC(2022, time.January, 1, 23, 0, 0)
	to := unixUTC(2022, time.January, 3, 1, 0, 0)
	days := DailyTimestamps(from, to)
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	for i, d := range days {
		expect := DailyLeft(from) + int64(i)*24*3600
		if d != expect {
			t.Fatalf("day %d: expected %d, got %d", i, expect, d)
		}
	}
}

func TestDailyTimestampsInvalidRange(t *testing.T) {
	if got := DailyTimestamps(100, 50); got != nil {
		t.Fatalf("expected nil for from > to, got %v", got)
	}
}

func TestParseReverseDateKeyInvalid(t *testing.T) {
	if _, err := ParseReverseDateKey("short"); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := ParseReverseDateKey("abcdefgh"); err == nil {
		t.Fatal("expected error for non-numeric key")
	}
}
