package persistence

import (
	"fmt"
	"strings"
)

// State is the operator's decision about a callsign.
type State int

const (
	DoesNotConfirm State = iota + 1
	WorkedAlready
	IgnoreForNow
	ConfirmViaBureau
	ConfirmViaEQSL
)

// States lists every disposition in menu order.
var States = []State{DoesNotConfirm, WorkedAlready, IgnoreForNow, ConfirmViaBureau, ConfirmViaEQSL}

// Stored names are fixed; existing databases depend on them.
var stateNames = map[State]string{
	DoesNotConfirm:   "DOESNTQSL",
	WorkedAlready:    "WORKEDALREADY",
	IgnoreForNow:     "IGNOREFORNOW",
	ConfirmViaBureau: "QSLVIABURO",
	ConfirmViaEQSL:   "QSLVIAEQSL",
}

var stateAliases = map[string]State{
	"dnq":    DoesNotConfirm,
	"noqsl":  DoesNotConfirm,
	"worked": WorkedAlready,
	"wkd":    WorkedAlready,
	"ignore": IgnoreForNow,
	"ign":    IgnoreForNow,
	"buro":   ConfirmViaBureau,
	"bureau": ConfirmViaBureau,
	"eqsl":   ConfirmViaEQSL,
}

// Suppresses reports whether later sightings of a callsign in this state should
// be hidden from the operator.
func (s State) Suppresses() bool {
	switch s {
	case DoesNotConfirm, WorkedAlready, IgnoreForNow:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Label is the human wording used in listings.
func (s State) Label() string {
	switch s {
	case DoesNotConfirm:
		return "Does not QSL"
	case WorkedAlready:
		return "Worked already"
	case IgnoreForNow:
		return "Ignore for now"
	case ConfirmViaBureau:
		return "QSL via Bureau"
	case ConfirmViaEQSL:
		return "QSL via eQSL.cc"
	default:
		return s.String()
	}
}

// ParseState accepts a stored name or one of the short command aliases.
func ParseState(text string) (State, error) {
	trimmed := strings.TrimSpace(text)
	for s, name := range stateNames {
		if strings.EqualFold(trimmed, name) {
			return s, nil
		}
	}
	if s, ok := stateAliases[strings.ToLower(trimmed)]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("persistence: unknown callsign state %q", text)
}
