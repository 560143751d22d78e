package engine

import "time"

// CancelFunc stops a scheduled callback. Calling it after the callback has
// fired (or a second time) is a no-op.
type CancelFunc func()

// Scheduler arms one-shot callbacks. The engine never sleeps; every delay
// (countdown ticks, the feedback pause before advancing) is a scheduled,
// cancellable callback so a restart or teardown can revoke it.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) CancelFunc
}

// realScheduler wraps time.AfterFunc.
type realScheduler struct{}

// NewScheduler returns the production scheduler.
func NewScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) CancelFunc {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}
