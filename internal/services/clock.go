package services

import "time"

// Clock is injected into time-driven logic (overdue recomputation, window
// policy) so it can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func NewSystemClock() Clock { return systemClock{} }
