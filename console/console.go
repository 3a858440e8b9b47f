// Package console is the headless presentation layer: it prints contacts the
// filter lets through and turns operator commands into stored dispositions.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"
	"golang.org/x/term"

	"wsjtxassist/callsign"
	"wsjtxassist/logparse"
)

// Format selects how contacts are rendered.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ResolveFormat maps a configured name to a Format. "auto" picks text when out
// is a terminal and JSON lines otherwise.
func ResolveFormat(name string, out *os.File) Format {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	}
	if out != nil && term.IsTerminal(int(out.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// Options configures a Console.
type Options struct {
	Format Format
	// RepeatWindow hides a callsign seen again on the same band within the
	// window. Zero shows every sighting.
	RepeatWindow time.Duration
	// Now is the clock used for the repeat window; nil means time.Now.
	Now func() time.Time
}

// Console renders contacts to out. Show is safe for concurrent use.
type Console struct {
	out    io.Writer
	format Format
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	seen      map[uint64]time.Time
	recent    map[string]logparse.Contact
	lastPrune time.Time
}

// New builds a Console writing to out.
func New(out io.Writer, opts Options) *Console {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Console{
		out:    out,
		format: opts.Format,
		window: opts.RepeatWindow,
		now:    now,
		seen:   make(map[uint64]time.Time),
		recent: make(map[string]logparse.Contact),
	}
}

// Show prints c unless the same callsign was shown on the same band within
// the repeat window. It reports whether anything was printed. The contact is
// remembered either way so commands can refer to it.
func (c *Console) Show(contact logparse.Contact) bool {
	call := callsign.Normalize(contact.Callsign)
	now := c.now()

	c.mu.Lock()
	c.recent[call] = contact
	if c.window > 0 {
		c.pruneLocked(now)
		key := repeatKey(call, contact)
		if last, ok := c.seen[key]; ok && now.Sub(last) < c.window {
			c.mu.Unlock()
			return false
		}
		c.seen[key] = now
	}
	line, err := c.render(contact)
	if err == nil {
		_, err = io.WriteString(c.out, line)
	}
	c.mu.Unlock()
	return err == nil
}

// Last returns the most recent contact shown or held back for call.
func (c *Console) Last(call string) (logparse.Contact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contact, ok := c.recent[callsign.Normalize(call)]
	return contact, ok
}

// Forget drops call from the recent set once a disposition is recorded.
func (c *Console) Forget(call string) {
	c.mu.Lock()
	delete(c.recent, callsign.Normalize(call))
	c.mu.Unlock()
}

func repeatKey(call string, contact logparse.Contact) uint64 {
	return xxh3.HashString(call + "|" + contact.Band.String())
}

func (c *Console) pruneLocked(now time.Time) {
	if now.Sub(c.lastPrune) < c.window {
		return
	}
	c.lastPrune = now
	for key, at := range c.seen {
		if now.Sub(at) >= c.window {
			delete(c.seen, key)
		}
	}
}

type contactJSON struct {
	Time     string `json:"time"`
	Band     string `json:"band"`
	Mode     string `json:"mode"`
	Power    int    `json:"power_db"`
	Offset   int    `json:"offset_hz"`
	Callsign string `json:"callsign"`
	DX       string `json:"dx_callsign"`
	Grid     string `json:"grid"`
	CQ       bool   `json:"cq"`
}

func (c *Console) render(contact logparse.Contact) (string, error) {
	if c.format == FormatJSON {
		data, err := jsoniter.ConfigFastest.Marshal(contactJSON{
			Time:     contact.Time.Time().Format(time.RFC3339),
			Band:     contact.Band.String(),
			Mode:     contact.Mode.String(),
			Power:    contact.Power,
			Offset:   contact.Offset,
			Callsign: contact.Callsign,
			DX:       contact.DXCallsign,
			Grid:     contact.Grid,
			CQ:       contact.IsCQ(),
		})
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	}
	marker := ""
	if contact.IsCQ() {
		marker = "  CQ"
	}
	return fmt.Sprintf("%s  %-5s %-4s %4d dB %5d Hz  %-10s %s  (to %s)%s\n",
		contact.Time.Time().Format("2006-01-02 15:04Z"),
		contact.Band, contact.Mode, contact.Power, contact.Offset,
		contact.Callsign, contact.Grid, contact.DXCallsign, marker), nil
}
