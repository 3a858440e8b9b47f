// Package stats counts decoded contacts by band and by what the filter did with
// them, for the periodic and final summaries.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Outcome is what happened to a decoded contact.
type Outcome string

const (
	Surfaced   Outcome = "surfaced"
	Suppressed Outcome = "suppressed"
	Failed     Outcome = "failed"
)

// Tracker tracks contact statistics
type Tracker struct {
	// counters live in sync.Map + atomic.Uint64 so the tail goroutine never
	// waits on a summary reader
	bandCounts    sync.Map // band -> *atomic.Uint64
	outcomeCounts sync.Map // outcome -> *atomic.Uint64
	start         atomic.Int64
	recorded      atomic.Uint64
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// Observe counts one contact heard on band with the given outcome.
func (t *Tracker) Observe(band string, outcome Outcome) {
	incrementCounter(&t.bandCounts, band)
	incrementCounter(&t.outcomeCounts, string(outcome))
}

// IncrementRecorded counts one disposition written to the store.
func (t *Tracker) IncrementRecorded() {
	t.recorded.Add(1)
}

// Recorded returns the number of dispositions written.
func (t *Tracker) Recorded() uint64 {
	return t.recorded.Load()
}

// Count returns the number of contacts with the given outcome.
func (t *Tracker) Count(outcome Outcome) uint64 {
	if value, ok := t.outcomeCounts.Load(string(outcome)); ok {
		return value.(*atomic.Uint64).Load()
	}
	return 0
}

// GetBandCounts returns a copy of band counts
func (t *Tracker) GetBandCounts() map[string]uint64 {
	counts := make(map[string]uint64)
	t.bandCounts.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

// GetTotal returns the total count across all bands
func (t *Tracker) GetTotal() uint64 {
	var total uint64
	t.bandCounts.Range(func(_, value any) bool {
		total += value.(*atomic.Uint64).Load()
		return true
	})
	return total
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	return []string{
		fmt.Sprintf("Contacts: %s decoded, %s surfaced, %s suppressed, %s failed lookups, %s recorded",
			humanize.Comma(int64(t.GetTotal())),
			humanize.Comma(int64(t.Count(Surfaced))),
			humanize.Comma(int64(t.Count(Suppressed))),
			humanize.Comma(int64(t.Count(Failed))),
			humanize.Comma(int64(t.Recorded()))),
		formatMapCounts("Contacts by band", &t.bandCounts),
	}
}

// formatMapCounts renders counts in key order so successive lines line up.
func formatMapCounts(label string, counts *sync.Map) string {
	var keys []string
	values := map[string]uint64{}
	counts.Range(func(key, value any) bool {
		keys = append(keys, key.(string))
		values[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	if len(keys) == 0 {
		builder.WriteString("(none)")
	}
	for i, key := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%s", key, humanize.Comma(int64(values[key])))
	}
	return builder.String()
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
