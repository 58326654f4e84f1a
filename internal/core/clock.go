package core

import "time"

// Clock is the wall-clock source used by every time-dependent operation.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in Location (local time when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
