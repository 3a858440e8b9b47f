package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"wsjtxassist/band"
)

func writeConfigFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Fatalf("expected 250ms poll, got %s", cfg.PollInterval())
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != defaultSQLitePath {
		t.Fatalf("unexpected store defaults %+v", cfg.Store)
	}
	if !cfg.Selector().IsAny() {
		t.Fatalf("expected the default selector to accept every band")
	}
	if cfg.Display.Format != "auto" || cfg.RepeatWindow() != 2*time.Minute {
		t.Fatalf("unexpected display defaults %+v", cfg.Display)
	}
	if cfg.LoadedFrom != "" {
		t.Fatalf("defaults should not claim a source")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "wsjtxassist.yaml", `log_file: /tmp/ALL.TXT
band: 20m
tail:
  poll_interval_ms: 100
store:
  backend: pebble
writer:
  workers: 4
display:
  format: json
  repeat_window_seconds: -1
logging:
  enabled: true
  debug: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LoadedFrom != path {
		t.Fatalf("expected LoadedFrom=%s, got %s", path, cfg.LoadedFrom)
	}
	if b, ok := cfg.Selector().Band(); !ok || b != band.Band20m {
		t.Fatalf("expected a 20m selector, got %s", cfg.Selector())
	}
	if cfg.PollInterval() != 100*time.Millisecond {
		t.Fatalf("unexpected poll interval %s", cfg.PollInterval())
	}
	if cfg.Store.Path != defaultPebblePath {
		t.Fatalf("pebble backend should default its own path, got %s", cfg.Store.Path)
	}
	if cfg.Writer.Workers != 4 || cfg.Writer.QueueDepth != defaultWriterQueueDepth {
		t.Fatalf("unexpected writer config %+v", cfg.Writer)
	}
	if cfg.RepeatWindow() != 0 {
		t.Fatalf("a negative repeat window disables it, got %s", cfg.RepeatWindow())
	}
	if !cfg.Logging.Enabled || !cfg.Logging.Debug || cfg.Logging.RetentionDays != defaultRetentionDays {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
	logFile, err := cfg.ResolveLogFile()
	if err != nil || logFile != "/tmp/ALL.TXT" {
		t.Fatalf("ResolveLogFile = %q, %v", logFile, err)
	}
}

func TestLoadDirectoryMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "app.yaml", `band: 40m
store:
  backend: sqlite
  path: /var/lib/assist.db
`)
	writeConfigFile(t, dir, "override.yml", `store:
  preflight_timeout_ms: 500
display:
  format: text
`)
	writeConfigFile(t, dir, "notes.txt", "not yaml: [")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := filepath.Clean(cfg.LoadedFrom); got != filepath.Clean(dir) {
		t.Fatalf("expected LoadedFrom=%s, got %s", dir, got)
	}
	if cfg.Store.Path != "/var/lib/assist.db" {
		t.Fatalf("expected store.path to survive the merge, got %q", cfg.Store.Path)
	}
	if cfg.PreflightTimeout() != 500*time.Millisecond {
		t.Fatalf("expected store.preflight_timeout_ms from override.yml, got %s", cfg.PreflightTimeout())
	}
	if cfg.Display.Format != "text" || cfg.Band != "40m" {
		t.Fatalf("unexpected merged config %+v", cfg)
	}
}

func TestLoadRejectsEmptyDirectory(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected an error for a directory without YAML files")
	}
}

func TestLoadMissingPathIsNotExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []string{
		"band: 11m\n",
		"store:\n  backend: h2\n",
		"display:\n  format: html\n",
		"band: [\n",
	}
	for _, body := range cases {
		path := writeConfigFile(t, t.TempDir(), "bad.yaml", body)
		if _, err := Load(path); err == nil {
			t.Fatalf("expected %q to be rejected", body)
		}
	}
}

func TestMergeMapsNested(t *testing.T) {
	dst := map[string]any{"a": map[string]any{"x": 1, "y": 2}, "b": 1}
	mergeMaps(dst, map[string]any{"a": map[string]any{"y": 3}, "b": map[string]any{"z": 4}})
	want := map[string]any{"a": map[string]any{"x": 1, "y": 3}, "b": map[string]any{"z": 4}}
	if !reflect.DeepEqual(dst, want) {
		t.Fatalf("mergeMaps = %v, want %v", dst, want)
	}
}

func TestLogFileCandidates(t *testing.T) {
	darwin := logFileCandidates("darwin", "/Users/op", "")
	if len(darwin) != 2 || darwin[0] != "/Users/op/Library/Application Support/WSJT-X/ALL.TXT" || darwin[1] != "/Applications/WSJT-X/ALL.TXT" {
		t.Fatalf("unexpected darwin candidates %v", darwin)
	}
	linux := logFileCandidates("linux", "/home/op", "")
	if len(linux) != 1 || linux[0] != "/home/op/.local/share/WSJT-X/ALL.TXT" {
		t.Fatalf("unexpected linux candidates %v", linux)
	}
	if got := logFileCandidates("windows", "", ""); len(got) != 0 {
		t.Fatalf("expected no windows candidates without LOCALAPPDATA, got %v", got)
	}
}

func TestDefaultLogFileFindsLinuxLog(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if _, err := DefaultLogFile(); err != nil && !errors.Is(err, ErrNoLogFile) {
		t.Fatalf("expected ErrNoLogFile, got %v", err)
	}
	logDir := filepath.Join(home, ".local", "share", "WSJT-X")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeConfigFile(t, logDir, "ALL.TXT", "")
	if got, err := DefaultLogFile(); err == nil && got != filepath.Join(logDir, "ALL.TXT") {
		t.Fatalf("unexpected default log %s", got)
	}
}
