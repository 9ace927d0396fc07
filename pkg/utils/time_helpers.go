package utils

import "time"

// IntervalsOverlap reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// MinuteOfDay returns t's wall clock as minutes since midnight, in t's own
// location. Callers normalize t first when a specific zone is required.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
