package logparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"wsjtxassist/band"
	"wsjtxassist/callsign"
)

// Band/date change lines are written at startup, on mode or band change and at
// midnight UTC. Older WSJT-X versions name the month, newer ones use ISO dates:
//
//	2015-Apr-15 20:13  14.076 MHz  JT9
//	2015-04-15 20:13  14.076 MHz  JT9
var dateChangeRE = regexp.MustCompile(`^(\d{4}-\S{2,3}-\d{1,2}) \d{2}:\d{2}\s+(\d+\.\d+) MHz\s+\S+\s*$`)

// Decode lines carry time, report, DT, audio offset, mode marker and the message:
//
//	0001  -8  0.2  560 # KC0EFQ WA3ETR FN10
var reportRE = regexp.MustCompile(`^(\d{4})\s+([-+]?\d{1,3})\s+[-\d.]+\s+(\d{1,4})\s+(\S)\s+([A-Za-z0-9/]+)\s+([A-Za-z0-9/]+)\s+([A-Z]{2}\d{2})\s*$`)

const (
	namedMonthLayout = "2006-Jan-2"
	isoDateLayout    = "2006-01-02"
)

// ErrBadDate marks a band/date change line whose date matches neither format.
var ErrBadDate = errors.New("logparse: unparseable date")

// DateError reports the offending date text of a malformed change line.
type DateError struct {
	Text string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("logparse: could not parse %q as a date in either supported form", e.Text)
}

func (e *DateError) Unwrap() error { return ErrBadDate }

// LineKind tags the result of classifying one log line.
type LineKind int

const (
	LineOther LineKind = iota
	LineDateBandChange
	LineReport
)

func (k LineKind) String() string {
	switch k {
	case LineDateBandChange:
		return "date/band change"
	case LineReport:
		return "report"
	default:
		return "other"
	}
}

// DateBandChange is the state carried by a band/date change line.
type DateBandChange struct {
	Date      time.Time // midnight UTC of the logged day
	Frequency string    // dial frequency exactly as logged, MHz
	Band      band.Band
	BandKnown bool // false when Frequency is not in the band table
}

// Report is a decode line before it is anchored to a date and band.
type Report struct {
	Hour       int
	Minute     int
	Power      int
	Offset     int
	Mode       Mode
	DXCallsign string
	Callsign   string
	Grid       string
}

// Line is the tagged outcome of Classify. Only the field named by Kind is set.
type Line struct {
	Kind   LineKind
	Change DateBandChange
	Report Report
}

// Classify decides what a single log line is. Lines of neither significant
// shape come back as LineOther with a nil error; a change line whose date
// cannot be parsed is an error wrapping ErrBadDate.
func Classify(line string) (Line, error) {
	change, ok, err := ParseDateBandChange(line)
	if err != nil {
		return Line{}, err
	}
	if ok {
		return Line{Kind: LineDateBandChange, Change: change}, nil
	}
	if report, ok := ParseReport(line); ok {
		return Line{Kind: LineReport, Report: report}, nil
	}
	return Line{Kind: LineOther}, nil
}

// ParseDateBandChange extracts the date and band from a change line. The time
// and mode columns of the line are ignored.
func ParseDateBandChange(line string) (DateBandChange, bool, error) {
	m := dateChangeRE.FindStringSubmatch(line)
	if m == nil {
		return DateBandChange{}, false, nil
	}
	date, err := parseDate(m[1])
	if err != nil {
		return DateBandChange{}, false, err
	}
	freq := m[2]
	b, known := band.ForFrequency(freq)
	return DateBandChange{
		Date:      date,
		Frequency: freq,
		Band:      b,
		BandKnown: known,
	}, true, nil
}

// parseDate tries the named-month form first, then ISO.
func parseDate(text string) (time.Time, error) {
	if t, err := time.ParseInLocation(namedMonthLayout, text, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(isoDateLayout, text, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, &DateError{Text: text}
}

// ParseReport extracts the fields of a decode line. Lines whose station call
// has no digit, whose time is not a valid HHMM, or whose mode marker is unknown
// are rejected.
func ParseReport(line string) (Report, bool) {
	m := reportRE.FindStringSubmatch(line)
	if m == nil {
		return Report{}, false
	}
	station := m[6]
	if !callsign.HasDigit(station) {
		return Report{}, false
	}
	hour, _ := strconv.Atoi(m[1][:2])
	minute, _ := strconv.Atoi(m[1][2:])
	if hour > 23 || minute > 59 {
		return Report{}, false
	}
	mode, ok := modeForMarker(m[4][0])
	if !ok {
		return Report{}, false
	}
	power, err := strconv.Atoi(m[2])
	if err != nil {
		return Report{}, false
	}
	offset, err := strconv.Atoi(m[3])
	if err != nil {
		return Report{}, false
	}
	return Report{
		Hour:       hour,
		Minute:     minute,
		Power:      power,
		Offset:     offset,
		Mode:       mode,
		DXCallsign: m[5],
		Callsign:   station,
		Grid:       m[7],
	}, true
}
