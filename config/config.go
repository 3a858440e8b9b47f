package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"wsjtxassist/band"
)

// Config represents the complete assistant configuration
type Config struct {
	LogFile string        `yaml:"log_file"`
	Band    string        `yaml:"band"`
	Tail    TailConfig    `yaml:"tail"`
	Store   StoreConfig   `yaml:"store"`
	Writer  WriterConfig  `yaml:"writer"`
	Display DisplayConfig `yaml:"display"`
	Logging LoggingConfig `yaml:"logging"`

	// LoadedFrom is the file or directory the config was read from; empty when
	// only defaults apply.
	LoadedFrom string `yaml:"-"`
}

// TailConfig controls how often the followed log is polled
type TailConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Backend            string `yaml:"backend"`
	Path               string `yaml:"path"`
	PreflightTimeoutMS int    `yaml:"preflight_timeout_ms"`
}

// WriterConfig sizes the asynchronous disposition writer
type WriterConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
}

// DisplayConfig contains presentation settings
type DisplayConfig struct {
	Format              string `yaml:"format"`
	RepeatWindowSeconds int    `yaml:"repeat_window_seconds"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
	Debug         bool   `yaml:"debug"`
}

const (
	defaultPollIntervalMS     = 250
	defaultStoreBackend       = "sqlite"
	defaultSQLitePath         = "data/wsjtxassist.db"
	defaultPebblePath         = "data/wsjtxassist-pebble"
	defaultPreflightTimeoutMS = 2000
	defaultWriterWorkers      = 2
	defaultWriterQueueDepth   = 256
	defaultDisplayFormat      = "auto"
	defaultRepeatWindowSecs   = 120
	defaultLogDir             = "data/logs"
	defaultRetentionDays      = 7
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a YAML file or from a directory of YAML files
// merged in lexical order, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	var merged map[string]any
	if info.IsDir() {
		merged, err = loadDir(path)
	} else {
		merged, err = loadFile(path)
	}
	if err != nil {
		return nil, err
	}

	raw, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.LoadedFrom = path
	return &cfg, nil
}

func loadDir(dir string) (map[string]any, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no YAML files in config dir %s", dir)
	}
	sort.Strings(names)
	merged := map[string]any{}
	for _, name := range names {
		doc, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		mergeMaps(merged, doc)
	}
	return merged, nil
}

func loadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return doc, nil
}

// mergeMaps copies src into dst; nested maps merge key by key, anything else
// from src replaces dst.
func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}

func (c *Config) applyDefaults() {
	c.LogFile = strings.TrimSpace(c.LogFile)
	c.Band = strings.TrimSpace(c.Band)
	if c.Tail.PollIntervalMS <= 0 {
		c.Tail.PollIntervalMS = defaultPollIntervalMS
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		if c.Store.Backend == "pebble" {
			c.Store.Path = defaultPebblePath
		} else {
			c.Store.Path = defaultSQLitePath
		}
	}
	if c.Store.PreflightTimeoutMS <= 0 {
		c.Store.PreflightTimeoutMS = defaultPreflightTimeoutMS
	}
	if c.Writer.Workers <= 0 {
		c.Writer.Workers = defaultWriterWorkers
	}
	if c.Writer.QueueDepth <= 0 {
		c.Writer.QueueDepth = defaultWriterQueueDepth
	}
	c.Display.Format = strings.ToLower(strings.TrimSpace(c.Display.Format))
	if c.Display.Format == "" {
		c.Display.Format = defaultDisplayFormat
	}
	if c.Display.RepeatWindowSeconds < 0 {
		c.Display.RepeatWindowSeconds = 0
	} else if c.Display.RepeatWindowSeconds == 0 {
		c.Display.RepeatWindowSeconds = defaultRepeatWindowSecs
	}
	if strings.TrimSpace(c.Logging.Dir) == "" {
		c.Logging.Dir = defaultLogDir
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultRetentionDays
	}
}

// Validate rejects settings the assistant cannot act on.
func (c *Config) Validate() error {
	if _, ok := band.ParseSelector(c.Band); !ok {
		return fmt.Errorf("band %q is not a known band (use one of %s, or \"any\")", c.Band, strings.Join(band.Names(), ", "))
	}
	switch c.Store.Backend {
	case "sqlite", "pebble":
	default:
		return fmt.Errorf("store.backend %q must be sqlite or pebble", c.Store.Backend)
	}
	switch c.Display.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("display.format %q must be auto, text or json", c.Display.Format)
	}
	return nil
}

// Selector returns the band filter named by the band key.
func (c *Config) Selector() band.Selector {
	sel, ok := band.ParseSelector(c.Band)
	if !ok {
		return band.AnyBand()
	}
	return sel
}

// PollInterval returns tail.poll_interval_ms as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tail.PollIntervalMS) * time.Millisecond
}

// PreflightTimeout returns store.preflight_timeout_ms as a duration.
func (c *Config) PreflightTimeout() time.Duration {
	return time.Duration(c.Store.PreflightTimeoutMS) * time.Millisecond
}

// RepeatWindow returns display.repeat_window_seconds as a duration.
func (c *Config) RepeatWindow() time.Duration {
	return time.Duration(c.Display.RepeatWindowSeconds) * time.Second
}

// ResolveLogFile returns log_file when set, otherwise the platform default.
func (c *Config) ResolveLogFile() (string, error) {
	if c.LogFile != "" {
		return c.LogFile, nil
	}
	return DefaultLogFile()
}

// Print displays the configuration
func (c *Config) Print() {
	source := c.LoadedFrom
	if source == "" {
		source = "defaults"
	}
	fmt.Printf("Config: %s\n", source)
	logFile := c.LogFile
	if logFile == "" {
		logFile = "(platform default)"
	}
	fmt.Printf("Log file: %s (band %s, poll %dms)\n", logFile, c.Selector(), c.Tail.PollIntervalMS)
	fmt.Printf("Store: %s at %s\n", c.Store.Backend, c.Store.Path)
	fmt.Printf("Writer: %d workers, queue depth %d\n", c.Writer.Workers, c.Writer.QueueDepth)
	fmt.Printf("Display: %s (repeat window %ds)\n", c.Display.Format, c.Display.RepeatWindowSeconds)
	if c.Logging.Enabled {
		fmt.Printf("Logging: %s (retention %d days)\n", c.Logging.Dir, c.Logging.RetentionDays)
	}
}

// ErrNoLogFile is returned when no WSJT-X log exists in the usual places.
var ErrNoLogFile = errors.New("config: no WSJT-X ALL.TXT found")
