package band

import "sort"

// frequencyTable maps the dial frequency text WSJT-X prints in its band-change
// lines (MHz, exactly as written) to the band. Each band carries the standard JT
// dial frequency and the +2 kHz variant some configurations use.
var frequencyTable = map[string]Band{
	"144.491": Band2m, // +2
	"144.489": Band2m,
	"70.093":  Band4m, // +2
	"70.091":  Band4m,
	"50.278":  Band6m, // +2
	"50.276":  Band6m,
	"28.078":  Band10m, // +2
	"28.076":  Band10m,
	"24.919":  Band12m, // +2
	"24.917":  Band12m,
	"21.078":  Band15m, // +2
	"21.076":  Band15m,
	"18.104":  Band17m, // +2
	"18.102":  Band17m,
	"14.078":  Band20m, // +2
	"14.076":  Band20m,
	"10.14":   Band30m, // +2
	"10.138":  Band30m,
	"7.078":   Band40m, // +2
	"7.076":   Band40m,
	"5.359":   Band60m, // +2
	"5.357":   Band60m,
	"3.578":   Band80m, // +2
	"3.576":   Band80m,
	"1.84":    Band160m, // +2
	"1.838":   Band160m,
	"0.4762":  Band630m, // +2
	"0.4742":  Band630m,
	"0.13813": Band2200m, // +2
	"0.13613": Band2200m,
}

// ForFrequency looks up the band for a frequency string. Matching is exact text,
// so "14.0760" does not resolve even though "14.076" does.
func ForFrequency(mhz string) (Band, bool) {
	b, ok := frequencyTable[mhz]
	return b, ok
}

// Frequencies returns the frequency strings that resolve to b, sorted.
func Frequencies(b Band) []string {
	var out []string
	for freq, fb := range frequencyTable {
		if fb == b {
			out = append(out, freq)
		}
	}
	sort.Strings(out)
	return out
}
