package util

import (
	"testing"
	"time"
)

func TestWeekBounds(t *testing.T) {
	tests := []struct {
		name   string
		ref    string
		sunday string
	}{
		{"sunday itself", "2025-03-09", "2025-03-09"},
		{"midweek", "2025-03-12", "2025-03-09"},
		{"saturday", "2025-03-15", "2025-03-09"},
		{"month boundary", "2025-04-02", "2025-03-30"},
	}

	for _, tc := range tests {
		ref, err := time.Parse("2006-01-02", tc.ref)
		if err != nil {
			t.Fatal(err)
		}
		from, to := WeekBounds(ref)
		if got := from.Format("2006-01-02"); got != tc.sunday {
			t.Fatalf("%s: expected week start %s, got %s", tc.name, tc.sunday, got)
		}
		if from.Weekday() != time.Sunday {
			t.Fatalf("%s: week start is %s, want Sunday", tc.name, from.Weekday())
		}
		if to.Sub(from) != 6*24*time.Hour+23*time.Hour+59*time.Minute+59*time.Second {
			t.Fatalf("%s: unexpected span %s", tc.name, to.Sub(from))
		}
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, 3, 9, 0, 1, 0, 0, time.UTC)
	c := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Fatal("expected same day")
	}
	if SameDay(a, c) {
		t.Fatal("expected different days")
	}
}
