package ratelimit

import (
	"testing"
	"time"
)

func TestCounterThrottles(t *testing.T) {
	c := NewCounter(time.Minute)
	start := time.Date(2016, time.May, 13, 20, 32, 0, 0, time.UTC)

	if skipped, ok := c.Inc(start); !ok || skipped != 0 {
		t.Fatalf("first event should log, got %d %v", skipped, ok)
	}
	for i := 1; i <= 3; i++ {
		if _, ok := c.Inc(start.Add(time.Duration(i) * time.Second)); ok {
			t.Fatalf("event %d inside the interval should be throttled", i)
		}
	}
	skipped, ok := c.Inc(start.Add(time.Minute))
	if !ok || skipped != 3 {
		t.Fatalf("expected to log with 3 skipped, got %d %v", skipped, ok)
	}
	if c.Total() != 5 {
		t.Fatalf("expected 5 events, got %d", c.Total())
	}
}

func TestCounterWithoutInterval(t *testing.T) {
	c := NewCounter(0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, ok := c.Inc(now); !ok {
			t.Fatalf("a counter without interval must always allow")
		}
	}
}
