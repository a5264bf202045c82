package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTable(name string) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		_, err := tx.Exec("CREATE TABLE " + name + " (id INTEGER PRIMARY KEY)")
		return err
	}
}

func tableExists(t *testing.T, s *SQLiteStore, name string) bool {
	t.Helper()
	var n int
	err := s.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n > 0
}

func TestMigrate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	migrations := []Migration{
		{Version: 1, Description: "create a", Up: createTable("a")},
		{Version: 2, Description: "create b", Up: createTable("b")},
	}
	if err := s.Migrate(ctx, "test", migrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, s, "a") || !tableExists(t, s, "b") {
		t.Fatal("expected tables a and b to exist")
	}

	// Re-running is a no-op; re-creating the tables would fail.
	if err := s.Migrate(ctx, "test", migrations); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM _migrations WHERE component = 'test'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("applied migrations = %d, want 2", n)
	}
}

func TestMigrateComponentsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx, "one", []Migration{{Version: 1, Description: "x", Up: createTable("x")}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(ctx, "two", []Migration{{Version: 1, Description: "y", Up: createTable("y")}}); err != nil {
		t.Fatal(err)
	}
	if !tableExists(t, s, "y") {
		t.Error("component two's version 1 should apply independently of component one")
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Migrate(ctx, "test", []Migration{
		{Version: 1, Description: "ok", Up: createTable("ok")},
		{Version: 2, Description: "bad", Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE half (id INTEGER)"); err != nil {
				return err
			}
			return boom
		}},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Migrate() error = %v, want boom", err)
	}
	if !tableExists(t, s, "ok") {
		t.Error("migration 1 should have been applied")
	}
	if tableExists(t, s, "half") {
		t.Error("failed migration should have been rolled back")
	}
}

func TestTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.DB().Exec("CREATE TABLE t (v TEXT)"); err != nil {
		t.Fatal(err)
	}

	err := s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO t (v) VALUES ('kept')")
		return err
	})
	if err != nil {
		t.Fatalf("Tx() error = %v", err)
	}

	_ = s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (v) VALUES ('dropped')"); err != nil {
			return err
		}
		return errors.New("abort")
	})

	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM t").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skillpath.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New(%q) error = %v", path, err)
	}
	defer s.Close()

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}
