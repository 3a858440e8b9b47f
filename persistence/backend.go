package persistence

import (
	"fmt"
	"strings"
	"time"
)

const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

// Options selects and tunes a backend.
type Options struct {
	Kind             string
	Path             string
	PreflightTimeout time.Duration
	Pebble           PebbleOptions
}

// OpenBackend opens the backend named by opts.Kind ("sqlite" when empty).
func OpenBackend(opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", BackendSQLite:
		return OpenSQLite(opts.Path, SQLiteOptions{PreflightTimeout: opts.PreflightTimeout})
	case BackendPebble:
		return OpenPebble(opts.Path, opts.Pebble)
	default:
		return nil, fmt.Errorf("persistence: unknown backend %q", opts.Kind)
	}
}

// Open opens a backend and wraps it in a Filter.
func Open(opts Options) (*Filter, error) {
	backend, err := OpenBackend(opts)
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}
