// Command wsjtxassist follows the WSJT-X decode log and shows the operator the
// stations they have not already dealt with.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"wsjtxassist/config"
	"wsjtxassist/logparse"
	"wsjtxassist/persistence"
)

// Version will be set at build time
var Version = "dev"

const (
	defaultConfigPath = "data/config"
	envConfigPath     = "WSJTXA_CONFIG_PATH"
)

func main() {
	app := &cli.Command{
		Name:    "wsjtxassist",
		Usage:   "Filter WSJT-X decodes against the stations you have already handled",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Sources: cli.EnvVars(envConfigPath),
				Usage:   "YAML config file or directory (default " + defaultConfigPath + ")",
			},
		},
		Commands: []*cli.Command{
			cmdTail,
			cmdImport,
			cmdLookup,
			cmdBands,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// Purpose: Load configuration from the flag/env path or the default location.
// Key aspects: A missing default config is not an error; defaults apply.
// Upstream: every command action.
// Downstream: config.Load and config.Default.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := strings.TrimSpace(cmd.String("config"))
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Purpose: Shared startup for commands that touch the log or the store.
// Key aspects: Installs the logging fanout and parser tracing before any work.
// Upstream: tail, import and lookup actions.
// Downstream: setupLogging, log.SetOutput, logparse.SetDebug.
func startup(cmd *cli.Command, console io.Writer) (*config.Config, *logFanout, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	fanout, err := setupLogging(cfg.Logging, console)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging: file sink disabled: %v\n", err)
	}
	log.SetFlags(0)
	log.SetOutput(fanout)
	logparse.SetDebug(cfg.Logging.Debug)
	if cfg.LoadedFrom != "" {
		log.Printf("Loaded configuration from %s", cfg.LoadedFrom)
	}
	return cfg, fanout, nil
}

func storeOptions(cfg *config.Config) persistence.Options {
	return persistence.Options{
		Kind:             cfg.Store.Backend,
		Path:             cfg.Store.Path,
		PreflightTimeout: cfg.PreflightTimeout(),
	}
}
