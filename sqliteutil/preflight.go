// Package sqliteutil checks an existing SQLite file before the store opens it,
// moving a damaged database aside so the assistant can start with a fresh one.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultTimeout = 2 * time.Second

// Status summarises what Preflight found.
type Status int

const (
	StatusFresh Status = iota // no database on disk yet
	StatusHealthy
	StatusQuarantined
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusHealthy:
		return "healthy"
	case StatusQuarantined:
		return "quarantined"
	default:
		return "unknown"
	}
}

// Result reports the outcome of a preflight check.
type Result struct {
	Status Status
	// MovedTo is the new name of the main file when Status is StatusQuarantined.
	MovedTo string
	Elapsed time.Duration
	// Cause is the checkpoint or quick_check failure that led to quarantine.
	Cause error
}

var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// Purpose: Verify an existing SQLite database before the main open path.
// Key aspects: Runs a bounded WAL checkpoint and quick_check; a failing file and
// its sidecars are renamed with a ".bad-<timestamp>" suffix. A timeout is
// returned as an error rather than quarantining a file that may just be busy.
// Upstream: persistence.OpenSQLite.
// Downstream: modernc sqlite driver, os.Rename.
func Preflight(path string, timeout time.Duration) (Result, error) {
	var res Result
	if strings.TrimSpace(path) == "" {
		return res, errors.New("sqliteutil: empty database path")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, fmt.Errorf("sqliteutil: stat %s: %w", path, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	start := time.Now()

	cause, err := check(path, timeout)
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}
	if cause == nil {
		res.Status = StatusHealthy
		return res, nil
	}

	movedTo, err := quarantine(path, time.Now().UTC())
	if err != nil {
		return res, fmt.Errorf("sqliteutil: quarantine %s failed: %w (cause: %v)", path, err, cause)
	}
	res.Status = StatusQuarantined
	res.MovedTo = movedTo
	res.Cause = cause
	log.Printf("Store: database %s failed preflight (%v); moved to %s", path, cause, movedTo)
	return res, nil
}

// check returns a non-nil cause when the file is damaged and a non-nil error
// when the check itself could not complete.
func check(path string, timeout time.Duration) (cause error, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqliteutil: open %s: %w", path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("pragma busy_timeout=%d", timeout.Milliseconds())); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sqliteutil: %s timed out after %s", path, timeout)
		}
		return err, nil
	}

	if _, err := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)"); err != nil {
		cause = fmt.Errorf("checkpoint: %w", err)
	} else if err := quickCheck(ctx, db); err != nil {
		cause = fmt.Errorf("quick_check: %w", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("sqliteutil: %s timed out after %s", path, timeout)
	}
	return cause, nil
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("reported %q", status)
		}
	}
	return rows.Err()
}

func quarantine(path string, now time.Time) (string, error) {
	suffix := ".bad-" + now.Format("20060102T150405Z")
	if err := os.Rename(path, path+suffix); err != nil {
		return "", err
	}
	for _, s := range sidecarSuffixes {
		side := path + s
		if err := os.Rename(side, side+suffix); err != nil && !os.IsNotExist(err) {
			return "", err
		}
	}
	return path + suffix, nil
}
