package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"wsjtxassist/band"
	"wsjtxassist/config"
	"wsjtxassist/console"
	"wsjtxassist/internal/ratelimit"
	"wsjtxassist/logparse"
	"wsjtxassist/persistence"
	"wsjtxassist/stats"
)

const (
	statsInterval     = time.Minute
	lookupLogInterval = 10 * time.Second
	similarDistance   = 2
)

var logFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "WSJT-X ALL.TXT to read (default: log_file, then the WSJT-X data directory)",
	},
	&cli.StringFlag{
		Name:    "band",
		Aliases: []string{"b"},
		Usage:   "only show contacts on this band (20m, 40, any...)",
	},
}

var cmdTail = &cli.Command{
	Name:   "tail",
	Usage:  "Follow the decode log and show stations not yet handled",
	Flags:  logFlags,
	Action: runTail,
}

var cmdImport = &cli.Command{
	Name:  "import",
	Usage: "Read the whole decode log once and list the stations not yet handled",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "list every contact without consulting the store",
		},
	}, logFlags...),
	Action: runImport,
}

var cmdLookup = &cli.Command{
	Name:      "lookup",
	Usage:     "Show what is stored for one or more callsigns",
	ArgsUsage: "CALLSIGN...",
	Action:    runLookup,
}

var cmdBands = &cli.Command{
	Name:   "bands",
	Usage:  "List the bands and the dial frequencies that select them",
	Action: runBands,
}

// resolveLog applies the --file and --band overrides on top of the config.
func resolveLog(cmd *cli.Command, cfg *config.Config) (*logparse.LogFile, band.Selector, error) {
	sel := cfg.Selector()
	if label := cmd.String("band"); label != "" {
		parsed, ok := band.ParseSelector(label)
		if !ok {
			return nil, sel, fmt.Errorf("unknown band %q (known: %s)", label, strings.Join(band.Names(), ", "))
		}
		sel = parsed
	}
	path := cmd.String("file")
	if path == "" {
		resolved, err := cfg.ResolveLogFile()
		if err != nil {
			return nil, sel, err
		}
		path = resolved
	}
	lf, err := logparse.Open(path)
	if err != nil {
		return nil, sel, err
	}
	return lf, sel, nil
}

// Purpose: Follow the decode log until interrupted or the tailer fails.
// Key aspects: Contacts flow tailer -> Filter.Incoming -> console; operator
// commands on stdin go through the async Writer so the tailer never waits on disk.
// Upstream: "tail" command.
// Downstream: logparse.Tailer, persistence.Filter/Writer, console.Console.
func runTail(ctx context.Context, cmd *cli.Command) error {
	cfg, fanout, err := startup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer fanout.Close()

	lf, sel, err := resolveLog(cmd, cfg)
	if err != nil {
		return err
	}
	filter, err := persistence.Open(storeOptions(cfg))
	if err != nil {
		return err
	}
	defer filter.Close()

	tracker := stats.NewTracker()
	writer := persistence.NewWriter(filter, cfg.Writer.Workers, cfg.Writer.QueueDepth)
	writer.OnDone = func(_ logparse.Contact, _ persistence.State, err error) {
		if err == nil {
			tracker.IncrementRecorded()
		}
	}
	defer writer.Close()

	view := console.New(os.Stdout, console.Options{
		Format:       console.ResolveFormat(cfg.Display.Format, os.Stdout),
		RepeatWindow: cfg.RepeatWindow(),
	})
	filter.Publish(func(c logparse.Contact) { view.Show(c) })

	tailer, err := lf.TailSelector(sel, filteredHandler(filter, tracker), logparse.TailOptions{PollInterval: cfg.PollInterval()})
	if err != nil {
		return err
	}
	defer tailer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := view.RunCommands(ctx, os.Stdin, os.Stderr, writer); err != nil {
			log.Printf("Console: command input stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	log.Printf("Following %s (band %s). Type \"help\" for commands, Ctrl+C to stop.", lf.Path(), sel)
	for {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal: %v", sig)
			log.Println("Shutting down gracefully...")
			logSummary(tracker)
			return nil
		case <-tailer.Done():
			logSummary(tracker)
			return fmt.Errorf("stopped following %s: %w", lf.Path(), tailer.Err())
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, line := range tracker.SnapshotLines() {
				fanout.WriteFileOnlyLine("Stats: "+line, now)
			}
		}
	}
}

// filteredHandler passes each contact through the filter and counts the outcome.
func filteredHandler(filter *persistence.Filter, tracker *stats.Tracker) logparse.Handler {
	failures := ratelimit.NewCounter(lookupLogInterval)
	return func(c logparse.Contact) {
		delivered, err := filter.Incoming(c)
		switch {
		case err != nil:
			if skipped, ok := failures.Inc(time.Now()); ok {
				log.Printf("Store: lookup for %s failed: %v (%d more failures not shown)", c.Callsign, err, skipped)
			}
			tracker.Observe(c.Band.String(), stats.Failed)
		case delivered:
			tracker.Observe(c.Band.String(), stats.Surfaced)
		default:
			tracker.Observe(c.Band.String(), stats.Suppressed)
		}
	}
}

func logSummary(tracker *stats.Tracker) {
	for _, line := range tracker.SnapshotLines() {
		log.Printf("Stats: %s", line)
	}
	log.Printf("Stats: uptime %s", tracker.GetUptime().Round(time.Second))
}

// Purpose: Parse the whole decode log once.
// Key aspects: Routes contacts through the filter unless --all; prints a
// humanized summary on stderr so stdout stays machine-readable.
// Upstream: "import" command.
// Downstream: logparse.LogFile.Parse, persistence.Filter.Incoming.
func runImport(ctx context.Context, cmd *cli.Command) error {
	cfg, fanout, err := startup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer fanout.Close()

	lf, sel, err := resolveLog(cmd, cfg)
	if err != nil {
		return err
	}
	view := console.New(os.Stdout, console.Options{
		Format:       console.ResolveFormat(cfg.Display.Format, os.Stdout),
		RepeatWindow: 0,
	})
	tracker := stats.NewTracker()

	var handler logparse.Handler = func(c logparse.Contact) {
		view.Show(c)
		tracker.Observe(c.Band.String(), stats.Surfaced)
	}
	if !cmd.Bool("all") {
		filter, err := persistence.Open(storeOptions(cfg))
		if err != nil {
			return err
		}
		defer filter.Close()
		filter.Publish(func(c logparse.Contact) { view.Show(c) })
		handler = filteredHandler(filter, tracker)
	}

	start := time.Now()
	parsed, err := lf.Parse(ctx, sel, handler)
	log.Printf("Read %s lines (%s) from %s in %s",
		humanize.Comma(int64(parsed.Lines)), humanize.Bytes(uint64(parsed.Bytes)), lf.Path(),
		time.Since(start).Round(time.Millisecond))
	for _, line := range tracker.SnapshotLines() {
		log.Printf("Stats: %s", line)
	}
	if errors.Is(err, logparse.ErrBadDate) {
		return fmt.Errorf("import stopped early: %w", err)
	}
	return err
}

// Purpose: Print the stored disposition and contact for each callsign.
// Key aspects: Falls back to near-match suggestions when a call is unknown.
// Upstream: "lookup" command.
// Downstream: persistence.Filter lookups and Similar.
func runLookup(ctx context.Context, cmd *cli.Command) error {
	calls := cmd.Args().Slice()
	if len(calls) == 0 {
		return errors.New("lookup needs at least one callsign")
	}
	cfg, fanout, err := startup(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer fanout.Close()

	filter, err := persistence.Open(storeOptions(cfg))
	if err != nil {
		return err
	}
	defer filter.Close()

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := describe(filter, call)
		if err != nil {
			return err
		}
		fmt.Println(line)
	}
	return nil
}

func describe(filter *persistence.Filter, call string) (string, error) {
	call = strings.ToUpper(strings.TrimSpace(call))
	state, ok, err := filter.StoredState(call)
	if err != nil {
		return "", err
	}
	if !ok {
		matches, err := filter.Similar(call, similarDistance)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			return fmt.Sprintf("%s: no record", call), nil
		}
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Callsign
		}
		return fmt.Sprintf("%s: no record (similar: %s)", call, strings.Join(names, ", ")), nil
	}
	contact, _, err := filter.StoredContact(call)
	if err != nil {
		return "", err
	}
	heard := contact.Time.Time()
	return fmt.Sprintf("%s: %s (%s); last heard %s (%s) on %s %s from %s, %d dB",
		call, state.Label(), state, heard.Format("2006-01-02 15:04Z"), humanize.Time(heard),
		contact.Band, contact.Mode, contact.Grid, contact.Power), nil
}

func runBands(ctx context.Context, cmd *cli.Command) error {
	for _, b := range band.All {
		fmt.Printf("%-6s %s\n", b, strings.Join(band.Frequencies(b), " "))
	}
	return nil
}
