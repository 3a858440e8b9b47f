package band

// Selector chooses which bands a log reader delivers. The zero value selects
// every band; Only narrows it to one.
type Selector struct {
	band     Band
	specific bool
}

// AnyBand returns a selector that matches every band.
func AnyBand() Selector {
	return Selector{}
}

// Only returns a selector that matches b alone.
func Only(b Band) Selector {
	return Selector{band: b, specific: true}
}

// ParseSelector turns a configured band label into a selector. Empty, "any" and
// "all" select every band.
func ParseSelector(label string) (Selector, bool) {
	switch Normalize(label) {
	case "", "any", "all":
		return AnyBand(), true
	}
	b, ok := Parse(label)
	if !ok {
		return Selector{}, false
	}
	return Only(b), true
}

// Band returns the selected band and true, or false for AnyBand.
func (s Selector) Band() (Band, bool) {
	return s.band, s.specific
}

// IsAny reports whether the selector matches every band.
func (s Selector) IsAny() bool {
	return !s.specific
}

// Matches reports whether a contact heard on b passes the selector.
func (s Selector) Matches(b Band) bool {
	if !s.specific {
		return true
	}
	return s.band == b
}

func (s Selector) String() string {
	if !s.specific {
		return "any"
	}
	return s.band.String()
}
