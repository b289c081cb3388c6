package view

import (
	"sync"
	"time"
)

// Debouncer delays a call until no new value has arrived for the interval.
// Only the last value submitted before the quiet period is delivered.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	gen      uint64
	fn       func(string)
}

// NewDebouncer creates a debouncer that invokes fn after interval of quiet
func NewDebouncer(interval time.Duration, fn func(string)) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Submit resets the timer with a new value
func (d *Debouncer) Submit(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		current := gen == d.gen
		d.mu.Unlock()
		// a timer that already fired past Stop must not deliver a stale value
		if current {
			d.fn(value)
		}
	})
}

// Cancel drops any pending call
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
