// Package persistence remembers what the operator decided about each callsign
// and uses it to keep already-handled stations out of the incoming list.
package persistence

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	lev "github.com/agnivade/levenshtein"

	"wsjtxassist/callsign"
	"wsjtxassist/logparse"
)

var (
	errEmptyCall   = errors.New("persistence: callsign is empty")
	errStoreClosed = errors.New("persistence: store is closed")
)

// Record is the stored association of a callsign's latest contact and state.
type Record struct {
	Contact logparse.Contact
	State   State
}

// Backend is the narrow row-store contract a Filter needs: one record per
// normalized callsign, replaced wholesale by Upsert.
type Backend interface {
	// Get returns (nil, nil) when no record exists.
	Get(call string) (*Record, error)
	Upsert(rec Record) error
	Callsigns() ([]string, error)
	Close() error
}

// Filter sits between the tailer and the presentation layer. It is safe for
// concurrent use when its backend is, which both bundled backends are.
type Filter struct {
	backend Backend

	mu        sync.Mutex
	publisher logparse.Handler

	closeOnce sync.Once
}

// New wraps an opened backend.
func New(backend Backend) *Filter {
	return &Filter{backend: backend}
}

// Publish sets the callback Incoming forwards unsuppressed contacts to,
// replacing any previous one. A nil publisher discards them.
func (f *Filter) Publish(publisher logparse.Handler) {
	f.mu.Lock()
	f.publisher = publisher
	f.mu.Unlock()
}

// Incoming forwards c to the publisher unless its callsign has a stored state
// that suppresses it. A lookup failure suppresses delivery and is returned.
func (f *Filter) Incoming(c logparse.Contact) (bool, error) {
	rec, err := f.lookup(c.Callsign)
	if err != nil {
		return false, err
	}
	if rec != nil && rec.State.Suppresses() {
		return false, nil
	}
	f.mu.Lock()
	publisher := f.publisher
	f.mu.Unlock()
	if publisher == nil {
		return false, nil
	}
	publisher(c)
	return true, nil
}

// Record stores c and s for c's callsign, replacing any earlier record.
func (f *Filter) Record(c logparse.Contact, s State) error {
	call := callsign.Normalize(c.Callsign)
	if call == "" {
		return errEmptyCall
	}
	if _, ok := stateNames[s]; !ok {
		return fmt.Errorf("persistence: cannot record invalid state %d", int(s))
	}
	log.Printf("Store: recording %s as %s", call, s)
	c.Callsign = call
	return f.backend.Upsert(Record{Contact: c, State: s})
}

// RecordExists reports whether call has a stored record.
func (f *Filter) RecordExists(call string) (bool, error) {
	rec, err := f.lookup(call)
	return rec != nil, err
}

// StoredState returns the stored state for call, if any.
func (f *Filter) StoredState(call string) (State, bool, error) {
	rec, err := f.lookup(call)
	if err != nil || rec == nil {
		return 0, false, err
	}
	return rec.State, true, nil
}

// StoredContact returns the contact snapshot stored for call, if any.
func (f *Filter) StoredContact(call string) (logparse.Contact, bool, error) {
	rec, err := f.lookup(call)
	if err != nil || rec == nil {
		return logparse.Contact{}, false, err
	}
	return rec.Contact, true, nil
}

// Match is a stored callsign close to a queried one.
type Match struct {
	Callsign string
	Distance int
}

// Similar lists stored callsigns within maxDistance edits of call, nearest
// first. An exact match is not included.
func (f *Filter) Similar(call string, maxDistance int) ([]Match, error) {
	target := callsign.Normalize(call)
	if target == "" {
		return nil, errEmptyCall
	}
	calls, err := f.backend.Callsigns()
	if err != nil {
		return nil, err
	}
	var matches []Match
	for _, stored := range calls {
		if stored == target {
			continue
		}
		if d := lev.ComputeDistance(target, stored); d <= maxDistance {
			matches = append(matches, Match{Callsign: stored, Distance: d})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Callsign < matches[j].Callsign
	})
	return matches, nil
}

// Close releases the backend. Failures are logged, never returned.
func (f *Filter) Close() {
	f.closeOnce.Do(func() {
		log.Printf("Store: closing")
		if err := f.backend.Close(); err != nil {
			log.Printf("Store: warning: failed to close: %v", err)
		}
	})
}

func (f *Filter) lookup(call string) (*Record, error) {
	normalized := callsign.Normalize(call)
	if normalized == "" {
		return nil, errEmptyCall
	}
	rec, err := f.backend.Get(normalized)
	if err != nil {
		return nil, fmt.Errorf("persistence: lookup %s: %w", normalized, err)
	}
	return rec, nil
}
