package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"wsjtxassist/callsign"
	"wsjtxassist/logparse"
	"wsjtxassist/persistence"
)

// Submitter queues a disposition; *persistence.Writer satisfies it.
type Submitter interface {
	Submit(c logparse.Contact, s persistence.State) error
}

const usageText = "<dnq|worked|ignore|buro|eqsl> CALLSIGN"

var errUsage = errors.New("usage: " + usageText)

// ParseCommand splits "<state> <CALLSIGN>" into its parts.
func ParseCommand(line string) (persistence.State, string, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, "", errUsage
	}
	state, err := persistence.ParseState(fields[0])
	if err != nil {
		return 0, "", err
	}
	call := callsign.Normalize(fields[1])
	if !callsign.IsValid(call) {
		return 0, "", fmt.Errorf("%q is not a callsign", fields[1])
	}
	return state, call, nil
}

// RunCommands reads operator commands from in until EOF or ctx is done,
// answering on reply. A command applies to the last contact seen for its
// callsign.
func (c *Console) RunCommands(ctx context.Context, in io.Reader, reply io.Writer, sub Submitter) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "help", "?":
			fmt.Fprintln(reply, usageText)
			for _, s := range persistence.States {
				fmt.Fprintf(reply, "  %-13s %s\n", s, s.Label())
			}
			continue
		case "recent":
			fmt.Fprintln(reply, strings.Join(c.recentCalls(), " "))
			continue
		}
		state, call, err := ParseCommand(line)
		if err != nil {
			fmt.Fprintf(reply, "? %v\n", err)
			continue
		}
		contact, ok := c.Last(call)
		if !ok {
			fmt.Fprintf(reply, "? no recent contact with %s\n", call)
			continue
		}
		if err := sub.Submit(contact, state); err != nil {
			fmt.Fprintf(reply, "? %s not recorded: %v\n", call, err)
			continue
		}
		c.Forget(call)
		fmt.Fprintf(reply, "%s -> %s\n", call, state.Label())
	}
	return scanner.Err()
}

func (c *Console) recentCalls() []string {
	c.mu.Lock()
	calls := make([]string, 0, len(c.recent))
	for call := range c.recent {
		calls = append(calls, call)
	}
	c.mu.Unlock()
	sort.Strings(calls)
	return calls
}
