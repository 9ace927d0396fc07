package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestIntervalsOverlap(t *testing.T) {
	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"disjoint", at(8, 0), at(10, 0), at(11, 0), at(12, 0), false},
		{"touching end to start", at(8, 0), at(10, 0), at(10, 0), at(12, 0), false},
		{"touching start to end", at(10, 0), at(12, 0), at(8, 0), at(10, 0), false},
		{"one minute overlap", at(8, 0), at(10, 1), at(10, 0), at(12, 0), true},
		{"contained", at(9, 0), at(10, 0), at(8, 0), at(12, 0), true},
		{"containing", at(8, 0), at(12, 0), at(9, 0), at(10, 0), true},
		{"identical", at(8, 0), at(10, 0), at(8, 0), at(10, 0), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IntervalsOverlap(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
		})
	}
}

func TestMinuteOfDay(t *testing.T) {
	assert.Equal(t, 0, MinuteOfDay(at(0, 0)))
	assert.Equal(t, 6*60, MinuteOfDay(at(6, 0)))
	assert.Equal(t, 20*60, MinuteOfDay(at(20, 0)))
	assert.Equal(t, 23*60+59, MinuteOfDay(at(23, 59)))
}
