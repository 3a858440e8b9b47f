package sqliteutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPreflightMissingFileIsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.db")
	res, err := Preflight(path, time.Second)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	if res.Status != StatusFresh {
		t.Fatalf("expected fresh status, got %s", res.Status)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("preflight must not create the database, stat err=%v", err)
	}
}

func TestPreflightHealthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "healthy.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec("create table t (id integer)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	db.Close()

	res, err := Preflight(path, time.Second)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	if res.Status != StatusHealthy || res.MovedTo != "" {
		t.Fatalf("expected healthy preflight, got %+v", res)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected db to remain, stat failed: %v", err)
	}
}

func TestPreflightQuarantinesCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.db")
	if err := os.WriteFile(path, []byte("not a sqlite database"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	res, err := Preflight(path, time.Second)
	if err != nil {
		t.Fatalf("preflight expected quarantine, got error: %v", err)
	}
	if res.Status != StatusQuarantined || res.Cause == nil {
		t.Fatalf("expected quarantine with a cause, got %+v", res)
	}
	if !strings.HasPrefix(res.MovedTo, path+".bad-") {
		t.Fatalf("quarantine path not suffixed as expected: %s", res.MovedTo)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected original db to be renamed, stat err=%v", err)
	}
	if _, err := os.Stat(res.MovedTo); err != nil {
		t.Fatalf("expected quarantined file at %s: %v", res.MovedTo, err)
	}
}

func TestQuarantineMovesSidecars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "side.db")
	for _, name := range []string{path, path + "-wal", path + "-journal"} {
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2016, time.May, 13, 20, 32, 0, 0, time.UTC)
	moved, err := quarantine(path, now)
	if err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	if moved != path+".bad-20160513T203200Z" {
		t.Fatalf("unexpected quarantine name %s", moved)
	}
	for _, name := range []string{path + "-wal.bad-20160513T203200Z", path + "-journal.bad-20160513T203200Z"} {
		if _, err := os.Stat(name); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}
