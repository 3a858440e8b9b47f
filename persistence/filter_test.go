package persistence

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"wsjtxassist/band"
	"wsjtxassist/logparse"
)

var backendKinds = []string{BackendSQLite, BackendPebble}

func openTestFilter(t *testing.T, kind string) (*Filter, Options) {
	t.Helper()
	name := "contacts.db"
	if kind == BackendPebble {
		name = "contacts-pebble"
	}
	opts := Options{Kind: kind, Path: filepath.Join(t.TempDir(), name)}
	f, err := Open(opts)
	if err != nil {
		t.Fatalf("open %s: %v", kind, err)
	}
	return f, opts
}

func testContact(call string, minute int) logparse.Contact {
	return logparse.Contact{
		Time:       logparse.MustUTCTime(time.Date(2016, time.May, 13, 20, minute, 0, 0, time.UTC)),
		Power:      -15,
		Offset:     838,
		Mode:       logparse.ModeJT9,
		Band:       band.Band20m,
		Callsign:   call,
		DXCallsign: "CQ",
		Grid:       "EM82",
	}
}

type publishLog struct {
	calls []string
}

func (p *publishLog) publish(c logparse.Contact) {
	p.calls = append(p.calls, c.Callsign)
}

func TestRecordThenQuery(t *testing.T) {
	for _, kind := range backendKinds {
		t.Run(kind, func(t *testing.T) {
			f, _ := openTestFilter(t, kind)
			defer f.Close()

			c := testContact("WA4RG", 33)
			if err := f.Record(c, WorkedAlready); err != nil {
				t.Fatalf("Record: %v", err)
			}
			exists, err := f.RecordExists("WA4RG")
			if err != nil || !exists {
				t.Fatalf("RecordExists = %v, %v", exists, err)
			}
			state, ok, err := f.StoredState("wa4rg")
			if err != nil || !ok || state != WorkedAlready {
				t.Fatalf("StoredState = %v, %v, %v", state, ok, err)
			}
			got, ok, err := f.StoredContact("WA4RG")
			if err != nil || !ok {
				t.Fatalf("StoredContact = %v, %v", ok, err)
			}
			if !reflect.DeepEqual(got, c) {
				t.Fatalf("stored contact = %+v, want %+v", got, c)
			}
		})
	}
}

func TestUpsertReplacesRecord(t *testing.T) {
	for _, kind := range backendKinds {
		t.Run(kind, func(t *testing.T) {
			f, _ := openTestFilter(t, kind)
			defer f.Close()

			first := testContact("K1RI", 40)
			second := testContact("K1RI", 45)
			second.Band = band.Band40m
			second.Mode = logparse.ModeJT65
			if err := f.Record(first, DoesNotConfirm); err != nil {
				t.Fatalf("Record first: %v", err)
			}
			if err := f.Record(second, ConfirmViaEQSL); err != nil {
				t.Fatalf("Record second: %v", err)
			}
			state, _, err := f.StoredState("K1RI")
			if err != nil || state != ConfirmViaEQSL {
				t.Fatalf("expected the later state, got %v (%v)", state, err)
			}
			got, _, _ := f.StoredContact("K1RI")
			if !got.Time.Equal(second.Time) || got.Band != band.Band40m || got.Mode != logparse.ModeJT65 {
				t.Fatalf("expected the later contact, got %s", got)
			}
			calls, err := f.backend.Callsigns()
			if err != nil || len(calls) != 1 {
				t.Fatalf("expected one stored callsign, got %v (%v)", calls, err)
			}
		})
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	f, _ := openTestFilter(t, BackendSQLite)
	defer f.Close()
	c := testContact("AE4DR", 34)
	for i := 0; i < 3; i++ {
		if err := f.Record(c, IgnoreForNow); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}
	got, _, _ := f.StoredContact("AE4DR")
	if !reflect.DeepEqual(got, c) {
		t.Fatalf("stored contact changed after repeats: %+v", got)
	}
}

func TestAbsentLookups(t *testing.T) {
	for _, kind := range backendKinds {
		t.Run(kind, func(t *testing.T) {
			f, _ := openTestFilter(t, kind)
			defer f.Close()
			if exists, err := f.RecordExists("N0CALL"); err != nil || exists {
				t.Fatalf("RecordExists = %v, %v", exists, err)
			}
			if _, ok, err := f.StoredState("N0CALL"); err != nil || ok {
				t.Fatalf("StoredState ok=%v err=%v", ok, err)
			}
			if _, ok, err := f.StoredContact("N0CALL"); err != nil || ok {
				t.Fatalf("StoredContact ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestIncomingSuppression(t *testing.T) {
	cases := []struct {
		state     State
		delivered bool
	}{
		{DoesNotConfirm, false},
		{WorkedAlready, false},
		{IgnoreForNow, false},
		{ConfirmViaBureau, true},
		{ConfirmViaEQSL, true},
	}
	for _, kind := range backendKinds {
		t.Run(kind, func(t *testing.T) {
			f, _ := openTestFilter(t, kind)
			defer f.Close()
			var got publishLog
			f.Publish(got.publish)

			for _, tc := range cases {
				c := testContact("RN6MG", 35)
				if err := f.Record(c, tc.state); err != nil {
					t.Fatalf("Record: %v", err)
				}
				delivered, err := f.Incoming(c)
				if err != nil {
					t.Fatalf("Incoming: %v", err)
				}
				if delivered != tc.delivered || tc.state.Suppresses() == tc.delivered {
					t.Fatalf("state %s: delivered=%v, want %v", tc.state, delivered, tc.delivered)
				}
			}
			if len(got.calls) != 2 {
				t.Fatalf("expected two deliveries, got %v", got.calls)
			}
		})
	}
}

func TestIncomingUnknownCallIsDelivered(t *testing.T) {
	f, _ := openTestFilter(t, BackendSQLite)
	defer f.Close()
	var got publishLog
	f.Publish(got.publish)
	if delivered, err := f.Incoming(testContact("LZ1UBO", 32)); err != nil || !delivered {
		t.Fatalf("Incoming = %v, %v", delivered, err)
	}
	if !reflect.DeepEqual(got.calls, []string{"LZ1UBO"}) {
		t.Fatalf("unexpected deliveries %v", got.calls)
	}
}

func TestIncomingWithoutPublisher(t *testing.T) {
	f, _ := openTestFilter(t, BackendSQLite)
	defer f.Close()
	if delivered, err := f.Incoming(testContact("LZ1UBO", 32)); err != nil || delivered {
		t.Fatalf("Incoming without publisher = %v, %v", delivered, err)
	}
}

func TestPublishReplacesPrevious(t *testing.T) {
	f, _ := openTestFilter(t, BackendSQLite)
	defer f.Close()
	var first, second publishLog
	f.Publish(first.publish)
	f.Publish(second.publish)
	if _, err := f.Incoming(testContact("G3XMR", 30)); err != nil {
		t.Fatalf("Incoming: %v", err)
	}
	if len(first.calls) != 0 || len(second.calls) != 1 {
		t.Fatalf("first=%v second=%v", first.calls, second.calls)
	}
}

func TestRecordRejectsBadInput(t *testing.T) {
	f, _ := openTestFilter(t, BackendSQLite)
	defer f.Close()
	if err := f.Record(testContact("", 30), WorkedAlready); err == nil {
		t.Fatalf("expected an error for an empty callsign")
	}
	if err := f.Record(testContact("K1RI", 30), State(42)); err == nil {
		t.Fatalf("expected an error for an invalid state")
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	for _, kind := range backendKinds {
		t.Run(kind, func(t *testing.T) {
			f, opts := openTestFilter(t, kind)
			if err := f.Record(testContact("KW4PL", 36), ConfirmViaBureau); err != nil {
				t.Fatalf("Record: %v", err)
			}
			f.Close()
			f.Close() // second close is a no-op

			reopened, err := Open(opts)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer reopened.Close()
			state, ok, err := reopened.StoredState("KW4PL")
			if err != nil || !ok || state != ConfirmViaBureau {
				t.Fatalf("after reopen: %v, %v, %v", state, ok, err)
			}
		})
	}
}

func TestClosedStoreFailsLookups(t *testing.T) {
	for _, kind := range backendKinds {
		t.Run(kind, func(t *testing.T) {
			f, _ := openTestFilter(t, kind)
			f.Close()
			if _, err := f.RecordExists("K1RI"); err == nil {
				t.Fatalf("expected an error after close")
			}
			var got publishLog
			f.Publish(got.publish)
			if delivered, err := f.Incoming(testContact("K1RI", 30)); err == nil || delivered {
				t.Fatalf("Incoming after close = %v, %v", delivered, err)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	f, _ := openTestFilter(t, BackendPebble)
	defer f.Close()
	for _, call := range []string{"K1RI", "K1RJ", "K2RJ", "WA4RG", "K1ABC"} {
		if err := f.Record(testContact(call, 30), WorkedAlready); err != nil {
			t.Fatalf("Record %s: %v", call, err)
		}
	}
	matches, err := f.Similar("k1ri", 2)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	want := []Match{{"K1RJ", 1}, {"K2RJ", 2}}
	if !reflect.DeepEqual(matches, want) {
		t.Fatalf("Similar = %v, want %v", matches, want)
	}
	if _, err := f.Similar(" ", 1); err == nil {
		t.Fatalf("expected an error for an empty query")
	}
}

func TestOpenBackendUnknownKind(t *testing.T) {
	if _, err := OpenBackend(Options{Kind: "h2", Path: t.TempDir()}); err == nil {
		t.Fatalf("expected an error for an unknown backend")
	}
}

type failingBackend struct{}

var errBackend = errors.New("disk on fire")

func (failingBackend) Get(string) (*Record, error) { return nil, errBackend }
func (failingBackend) Upsert(Record) error          { return errBackend }
func (failingBackend) Callsigns() ([]string, error) { return nil, errBackend }
func (failingBackend) Close() error                 { return errBackend }

func TestLookupErrorSuppressesDelivery(t *testing.T) {
	f := New(failingBackend{})
	var got publishLog
	f.Publish(got.publish)
	delivered, err := f.Incoming(testContact("K1RI", 30))
	if !errors.Is(err, errBackend) || delivered {
		t.Fatalf("Incoming = %v, %v", delivered, err)
	}
	if len(got.calls) != 0 {
		t.Fatalf("nothing should be published on a lookup error")
	}
	f.Close() // logged, not returned
}
