package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// WeekBounds returns the Sunday 00:00:00 and Saturday 23:59:59 enclosing t.
// The week always starts on Sunday regardless of t's weekday.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	sunday := StartOfDay(t.AddDate(0, 0, -int(t.Weekday())))
	saturday := EndOfDay(sunday.AddDate(0, 0, 6))
	return sunday, saturday
}

// SameDay reports whether a and b fall on the same calendar day of a's location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
