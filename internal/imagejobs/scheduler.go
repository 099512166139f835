package imagejobs

import "time"

// Scheduler abstracts delayed execution so the polling loop can be driven
// deterministically in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) CancelTimer
}

// CancelTimer stops a pending callback.
type CancelTimer interface {
	Stop() bool
}

type realScheduler struct{}

// NewScheduler returns the wall-clock scheduler.
func NewScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, fn func()) CancelTimer {
	return time.AfterFunc(d, fn)
}
