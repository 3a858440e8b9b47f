// Package band enumerates the amateur radio bands WSJT-X reports on and maps the
// dial frequencies written to its log onto them.
package band

import "strings"

// Band is a closed enumeration of amateur bands. The zero value is not a band.
type Band int

const (
	Band2200m Band = iota + 1
	Band630m
	Band160m
	Band80m
	Band60m
	Band40m
	Band30m
	Band20m
	Band17m
	Band15m
	Band12m
	Band10m
	Band6m
	Band4m
	Band2m
)

var bandNames = [...]string{
	Band2200m: "2200m",
	Band630m:  "630m",
	Band160m:  "160m",
	Band80m:   "80m",
	Band60m:   "60m",
	Band40m:   "40m",
	Band30m:   "30m",
	Band20m:   "20m",
	Band17m:   "17m",
	Band15m:   "15m",
	Band12m:   "12m",
	Band10m:   "10m",
	Band6m:    "6m",
	Band4m:    "4m",
	Band2m:    "2m",
}

// All lists every band in ascending frequency order.
var All = []Band{
	Band2200m, Band630m, Band160m, Band80m, Band60m, Band40m, Band30m, Band20m,
	Band17m, Band15m, Band12m, Band10m, Band6m, Band4m, Band2m,
}

// Valid reports whether b is one of the enumerated bands.
func (b Band) Valid() bool {
	return b >= Band2200m && b <= Band2m
}

func (b Band) String() string {
	if !b.Valid() {
		return "unknown"
	}
	return bandNames[b]
}

var nameLookup = func() map[string]Band {
	m := make(map[string]Band, len(All))
	for _, b := range All {
		m[bandNames[b]] = b
	}
	return m
}()

// Parse resolves a band label such as "20m", "20 metres" or "20" to a Band.
func Parse(label string) (Band, bool) {
	normalized := Normalize(label)
	if normalized == "" {
		return 0, false
	}
	b, ok := nameLookup[normalized]
	return b, ok
}

// Normalize returns the canonical lowercase band identifier for the given label.
// Meter words collapse to "m", whitespace is removed, and a bare number gets an
// "m" suffix.
func Normalize(label string) string {
	cleaned := strings.ToLower(strings.TrimSpace(label))
	if cleaned == "" {
		return ""
	}
	for _, pair := range []struct{ old, new string }{
		{"meters", "m"},
		{"meter", "m"},
		{"metres", "m"},
		{"metre", "m"},
	} {
		cleaned = strings.ReplaceAll(cleaned, pair.old, pair.new)
	}
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return ""
	}
	last := cleaned[len(cleaned)-1]
	if last >= '0' && last <= '9' {
		cleaned += "m"
	}
	return cleaned
}

// Names returns the canonical names of all bands.
func Names() []string {
	names := make([]string, len(All))
	for i, b := range All {
		names[i] = b.String()
	}
	return names
}
