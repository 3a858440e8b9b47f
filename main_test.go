package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"wsjtxassist/band"
	"wsjtxassist/config"
	"wsjtxassist/logparse"
	"wsjtxassist/persistence"
	"wsjtxassist/stats"
)

func runWithConfigFlag(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var (
		cfg     *config.Config
		loadErr error
	)
	app := &cli.Command{
		Name:  "test",
		Flags: []cli.Flag{&cli.StringFlag{Name: "config"}},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, loadErr = loadConfig(cmd)
			return nil
		},
	}
	if err := app.Run(context.Background(), append([]string{"test"}, args...)); err != nil {
		t.Fatalf("app.Run: %v", err)
	}
	return cfg, loadErr
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := runWithConfigFlag(t)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LoadedFrom != "" || cfg.Store.Backend != "sqlite" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfigExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assist.yaml")
	if err := os.WriteFile(path, []byte("band: 40m\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := runWithConfigFlag(t, "--config", path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if b, ok := cfg.Selector().Band(); !ok || b != band.Band40m {
		t.Fatalf("expected 40m, got %s", cfg.Selector())
	}
	if _, err := runWithConfigFlag(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("an explicit missing config must be an error")
	}
}

func openTestStore(t *testing.T) *persistence.Filter {
	t.Helper()
	f, err := persistence.Open(persistence.Options{Path: filepath.Join(t.TempDir(), "assist.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestDescribe(t *testing.T) {
	f := openTestStore(t)
	contact := logparse.Contact{
		Time:       logparse.MustUTCTime(time.Date(2016, time.May, 14, 0, 1, 0, 0, time.UTC)),
		Power:      -3,
		Offset:     1002,
		Mode:       logparse.ModeJT65,
		Band:       band.Band40m,
		Callsign:   "K1RI",
		DXCallsign: "TF2MSN",
		Grid:       "FN41",
	}
	if err := f.Record(contact, persistence.WorkedAlready); err != nil {
		t.Fatalf("Record: %v", err)
	}

	line, err := describe(f, "k1ri")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	for _, want := range []string{"K1RI: Worked already (WORKEDALREADY)", "2016-05-14 00:01Z", "40m JT65 from FN41", "-3 dB"} {
		if !strings.Contains(line, want) {
			t.Fatalf("%q missing %q", line, want)
		}
	}

	line, err = describe(f, "K1RJ")
	if err != nil || line != "K1RJ: no record (similar: K1RI)" {
		t.Fatalf("describe near miss = %q, %v", line, err)
	}
	line, err = describe(f, "VK9XYZ")
	if err != nil || line != "VK9XYZ: no record" {
		t.Fatalf("describe unknown = %q, %v", line, err)
	}
}

func TestFilteredHandlerCountsOutcomes(t *testing.T) {
	f := openTestStore(t)
	var shown []string
	f.Publish(func(c logparse.Contact) { shown = append(shown, c.Callsign) })

	lf, err := logparse.Open(filepath.Join("logparse", "testdata", "all.txt"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	worked := logparse.Contact{
		Time:     logparse.MustUTCTime(time.Date(2016, time.May, 13, 20, 33, 0, 0, time.UTC)),
		Band:     band.Band20m,
		Callsign: "WA4RG",
	}
	if err := f.Record(worked, persistence.WorkedAlready); err != nil {
		t.Fatalf("Record: %v", err)
	}

	tracker := stats.NewTracker()
	if _, err := lf.Parse(context.Background(), band.Only(band.Band20m), filteredHandler(f, tracker)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if strings.Join(shown, ",") != "LZ1UBO,AE4DR,RN6MG" {
		t.Fatalf("unexpected surfaced calls %v", shown)
	}
	if tracker.Count(stats.Surfaced) != 3 || tracker.Count(stats.Suppressed) != 1 {
		t.Fatalf("unexpected counts: %v", tracker.SnapshotLines())
	}
}
