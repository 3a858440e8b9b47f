// Package ratelimit throttles repetitive log lines: the first event in each
// interval may be logged, and the rest are counted so the next line can say
// how many were skipped.
package ratelimit

import (
	"sync"
	"time"
)

// Counter is safe for concurrent use. The zero value never throttles.
type Counter struct {
	interval time.Duration

	mu      sync.Mutex
	lastLog time.Time
	total   uint64
	skipped uint64
}

// NewCounter allows one log per interval. A non-positive interval disables
// throttling.
func NewCounter(interval time.Duration) *Counter {
	return &Counter{interval: interval}
}

// Inc records one event at now. When logging is allowed it returns the number
// of events skipped since the previous allowed one.
func (c *Counter) Inc(now time.Time) (skipped uint64, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if c.interval > 0 && !c.lastLog.IsZero() && now.Sub(c.lastLog) < c.interval {
		c.skipped++
		return 0, false
	}
	c.lastLog = now
	skipped, c.skipped = c.skipped, 0
	return skipped, true
}

// Total returns every event counted so far.
func (c *Counter) Total() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
