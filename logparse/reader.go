package logparse

import (
	"time"

	"wsjtxassist/band"
)

// Handler receives each contact a Reader emits.
type Handler func(Contact)

// Reader turns a sequence of log lines into contacts. It remembers the date and
// band announced by the most recent change line and applies them to the decode
// lines that follow. A Reader belongs to exactly one line source and is not safe
// for concurrent use.
type Reader struct {
	selector band.Selector
	handler  Handler

	date      time.Time
	dateKnown bool
	band      band.Band
	bandKnown bool
}

// NewReader returns a Reader with no date or band established yet.
func NewReader(selector band.Selector, handler Handler) *Reader {
	return &Reader{selector: selector, handler: handler}
}

// Process consumes one line. A change line updates the date and band; a decode
// line is delivered to the handler when a date is known, the band is resolved,
// and the band passes the selector. Every other line is ignored. The only error
// is an unparseable change-line date.
func (r *Reader) Process(line string) error {
	debugf("line [%s]", line)
	parsed, err := Classify(line)
	if err != nil {
		return err
	}
	switch parsed.Kind {
	case LineDateBandChange:
		r.applyChange(parsed.Change)
	case LineReport:
		r.emit(parsed.Report)
	}
	return nil
}

// State returns the current date and band, each with a flag saying whether it
// has been established.
func (r *Reader) State() (date time.Time, dateKnown bool, b band.Band, bandKnown bool) {
	return r.date, r.dateKnown, r.band, r.bandKnown
}

func (r *Reader) applyChange(change DateBandChange) {
	r.date = change.Date
	r.dateKnown = true
	r.band = change.Band
	r.bandKnown = change.BandKnown
	if change.BandKnown {
		debugf("detected changed date %s and band %s", change.Date.Format(isoDateLayout), change.Band)
		return
	}
	debugf("detected changed date %s; no band for %s MHz, holding contacts until the next change",
		change.Date.Format(isoDateLayout), change.Frequency)
}

func (r *Reader) emit(rep Report) {
	if !r.dateKnown || !r.bandKnown {
		return
	}
	if !r.selector.Matches(r.band) {
		return
	}
	year, month, day := r.date.Date()
	ts := MustUTCTime(time.Date(year, month, day, rep.Hour, rep.Minute, 0, 0, time.UTC))
	c := Contact{
		Time:       ts,
		Power:      rep.Power,
		Offset:     rep.Offset,
		Mode:       rep.Mode,
		Band:       r.band,
		Callsign:   rep.Callsign,
		DXCallsign: rep.DXCallsign,
		Grid:       rep.Grid,
	}
	debugf("contact %s", c)
	if r.handler != nil {
		r.handler(c)
	}
}
