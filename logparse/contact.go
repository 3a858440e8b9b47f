package logparse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wsjtxassist/band"
)

// ErrNotUTC is returned when a UTCTime is built from a time in another zone.
var ErrNotUTC = errors.New("logparse: time does not have the UTC zone")

// UTCTime is a timestamp whose location is guaranteed to be UTC.
type UTCTime struct {
	t time.Time
}

// NewUTCTime wraps t, refusing any time whose location is not UTC. Offsets that
// merely equal zero (a fixed "GMT" zone, for example) are still rejected.
func NewUTCTime(t time.Time) (UTCTime, error) {
	if t.Location() != time.UTC {
		return UTCTime{}, fmt.Errorf("%w: %s", ErrNotUTC, t.Format(time.RFC3339))
	}
	return UTCTime{t: t}, nil
}

// MustUTCTime is NewUTCTime for values known to be UTC; it panics otherwise.
func MustUTCTime(t time.Time) UTCTime {
	u, err := NewUTCTime(t)
	if err != nil {
		panic(err)
	}
	return u
}

// Time returns the wrapped time.
func (u UTCTime) Time() time.Time { return u.t }

// IsZero reports whether the timestamp was never set.
func (u UTCTime) IsZero() bool { return u.t.IsZero() }

// Equal reports whether both timestamps are the same instant.
func (u UTCTime) Equal(other UTCTime) bool { return u.t.Equal(other.t) }

func (u UTCTime) String() string {
	return u.t.Format("2006-01-02 15:04:05Z")
}

// Mode is the digital mode a decode was made in.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeJT65
	ModeJT9
	ModeFT8
)

func (m Mode) String() string {
	switch m {
	case ModeJT65:
		return "JT65"
	case ModeJT9:
		return "JT9"
	case ModeFT8:
		return "FT8"
	default:
		return "UNKNOWN"
	}
}

// ParseMode is the inverse of Mode.String. It is case-insensitive.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "JT65":
		return ModeJT65, true
	case "JT9":
		return ModeJT9, true
	case "FT8":
		return ModeFT8, true
	default:
		return ModeUnknown, false
	}
}

// modeForMarker maps the single-character mode marker WSJT-X writes between
// the offset and the message text.
func modeForMarker(marker byte) (Mode, bool) {
	switch marker {
	case '#':
		return ModeJT65, true
	case '@':
		return ModeJT9, true
	case '~':
		return ModeFT8, true
	default:
		return ModeUnknown, false
	}
}

// Contact is one decoded transmission attributed to a station.
type Contact struct {
	Time       UTCTime
	Power      int // signal report, dB
	Offset     int // audio offset, Hz
	Mode       Mode
	Band       band.Band
	Callsign   string // the transmitting station; identity key
	DXCallsign string // who it was calling; "CQ" for a general call
	Grid       string
}

// IsCQ reports whether the station was calling CQ rather than a specific station.
func (c Contact) IsCQ() bool {
	return strings.EqualFold(c.DXCallsign, "CQ")
}

func (c Contact) String() string {
	return fmt.Sprintf("%s %s %s %+d dB %d Hz %s %s %s",
		c.Time, c.Band, c.Mode, c.Power, c.Offset, c.DXCallsign, c.Callsign, c.Grid)
}
