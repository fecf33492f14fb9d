package registry

import (
	"sync"
	"time"
)

// Scheduler runs a function repeatedly until the returned cancel func is called.
// Implementations must not call fn before ScheduleRepeating returns, and cancel
// must not wait for a run in progress. A run that began before cancel may still
// finish; the registry drops ticks from a cancelled schedule itself.
type Scheduler interface {
	ScheduleRepeating(fn func(), interval time.Duration) (cancel func())
}

// TickerScheduler runs fn on a time.Ticker in its own goroutine.
// Runs never overlap; a tick that arrives during a run is dropped.
type TickerScheduler struct{}

func (TickerScheduler) ScheduleRepeating(fn func(), interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	var (
		mu      sync.Mutex
		stopped bool
	)
	isStopped := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return stopped
	}

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if isStopped() {
					return
				}
				fn()
			}
		}
	}()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			stopped = true
			close(done)
		}
	}
}
