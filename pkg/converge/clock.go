package converge

import "time"

// Clock is the time source for the poll loop. Tests substitute a fake so
// timeout behavior can be exercised without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
