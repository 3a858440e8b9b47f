package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wsjtxassist/band"
	"wsjtxassist/callsign"
	"wsjtxassist/logparse"
	"wsjtxassist/sqliteutil"

	_ "modernc.org/sqlite"
)

// SQLiteOptions tunes the SQLite backend.
type SQLiteOptions struct {
	PreflightTimeout time.Duration
}

// SQLiteStore keeps one row per callsign in the log_entries table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS log_entries (
    callsign TEXT PRIMARY KEY,
    dx_callsign TEXT NOT NULL,
    utc_date_time INTEGER NOT NULL,
    power INTEGER NOT NULL,
    offset_frequency INTEGER NOT NULL,
    mode TEXT NOT NULL,
    band TEXT NOT NULL,
    grid TEXT NOT NULL,
    state TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);`

const sqliteUpsert = `
INSERT INTO log_entries (
    callsign, dx_callsign, utc_date_time, power, offset_frequency,
    mode, band, grid, state, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(callsign) DO UPDATE SET
    dx_callsign = excluded.dx_callsign,
    utc_date_time = excluded.utc_date_time,
    power = excluded.power,
    offset_frequency = excluded.offset_frequency,
    mode = excluded.mode,
    band = excluded.band,
    grid = excluded.grid,
    state = excluded.state,
    updated_at = excluded.updated_at`

// Purpose: Open or create the SQLite contact store.
// Key aspects: Preflights an existing file, serialises access through a single
// connection and ensures the schema exists.
// Upstream: OpenBackend, command startup.
// Downstream: sqliteutil.Preflight, modernc sqlite driver.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("persistence: sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("persistence: ensure dir: %w", err)
	}
	res, err := sqliteutil.Preflight(path, opts.PreflightTimeout)
	if err != nil {
		return nil, fmt.Errorf("persistence: preflight: %w", err)
	}
	if res.Status == sqliteutil.StatusQuarantined {
		log.Printf("Store: starting with an empty database; the damaged one is at %s", res.MovedTo)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("pragma journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: set journal mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: init schema: %w", err)
	}
	log.Printf("Store: opened sqlite database %s (%s)", path, res.Status)
	return &SQLiteStore{db: db, path: path}, nil
}

// Get fetches the record for call. It returns (nil, nil) when none exists.
func (s *SQLiteStore) Get(call string) (*Record, error) {
	if s == nil || s.db == nil {
		return nil, errStoreClosed
	}
	call = callsign.Normalize(call)
	row := s.db.QueryRow(`
SELECT dx_callsign, utc_date_time, power, offset_frequency, mode, band, grid, state
FROM log_entries WHERE callsign = ?`, call)

	var (
		dx, mode, bandName, grid, state string
		unix                            int64
		power, offset                   int
	)
	if err := row.Scan(&dx, &unix, &power, &offset, &mode, &bandName, &grid, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite get %s: %w", call, err)
	}
	return decodeRow(call, storedRow{
		DXCallsign: dx,
		Time:       unix,
		Power:      power,
		Offset:     offset,
		Mode:       mode,
		Band:       bandName,
		Grid:       grid,
		State:      state,
	})
}

// Upsert inserts or replaces the record for rec's callsign in one statement.
func (s *SQLiteStore) Upsert(rec Record) error {
	if s == nil || s.db == nil {
		return errStoreClosed
	}
	row := encodeRow(rec, time.Now().UTC())
	call := callsign.Normalize(rec.Contact.Callsign)
	if _, err := s.db.Exec(sqliteUpsert,
		call, row.DXCallsign, row.Time, row.Power, row.Offset,
		row.Mode, row.Band, row.Grid, row.State, row.UpdatedAt,
	); err != nil {
		return fmt.Errorf("sqlite upsert %s: %w", call, err)
	}
	return nil
}

// Callsigns lists every stored callsign in key order.
func (s *SQLiteStore) Callsigns() ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errStoreClosed
	}
	rows, err := s.db.Query(`SELECT callsign FROM log_entries ORDER BY callsign`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list: %w", err)
	}
	defer rows.Close()
	var calls []string
	for rows.Next() {
		var call string
		if err := rows.Scan(&call); err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// storedRow is the column-level form shared by both backends.
type storedRow struct {
	DXCallsign string `json:"dx"`
	Time       int64  `json:"t"`
	Power      int    `json:"p"`
	Offset     int    `json:"o"`
	Mode       string `json:"m"`
	Band       string `json:"b"`
	Grid       string `json:"g"`
	State      string `json:"s"`
	UpdatedAt  int64  `json:"u"`
}

func encodeRow(rec Record, now time.Time) storedRow {
	c := rec.Contact
	return storedRow{
		DXCallsign: c.DXCallsign,
		Time:       c.Time.Time().Unix(),
		Power:      c.Power,
		Offset:     c.Offset,
		Mode:       c.Mode.String(),
		Band:       c.Band.String(),
		Grid:       c.Grid,
		State:      rec.State.String(),
		UpdatedAt:  now.Unix(),
	}
}

func decodeRow(call string, row storedRow) (*Record, error) {
	state, err := ParseState(row.State)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", call, err)
	}
	mode, _ := logparse.ParseMode(row.Mode)
	b, _ := band.Parse(row.Band)
	return &Record{
		Contact: logparse.Contact{
			Time:       logparse.MustUTCTime(time.Unix(row.Time, 0).UTC()),
			Power:      row.Power,
			Offset:     row.Offset,
			Mode:       mode,
			Band:       b,
			Callsign:   call,
			DXCallsign: row.DXCallsign,
			Grid:       row.Grid,
		},
		State: state,
	}, nil
}
