package scheduler

import "time"

// Clock is the loop's time source. Tests swap in a fake to step ticks by
// hand.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is backed by the time package.
var RealClock Clock = realClock{}
