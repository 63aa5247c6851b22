package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempDB(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open(%q): %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func tableMigration(version int, table string) Migration {
	return Migration{
		Version:     version,
		Description: "create " + table,
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec("CREATE TABLE " + table + " (id INTEGER PRIMARY KEY)")
			return err
		},
	}
}

func tableExists(t *testing.T, s *SQLiteStore, table string) bool {
	t.Helper()
	var n int
	err := s.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n > 0
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open(context.Background(), "/nonexistent/path/to/db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_WALMode(t *testing.T) {
	s := tempDB(t)
	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestTx_RollbackOnError(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	if _, err := s.DB().ExecContext(ctx, "CREATE TABLE items (name TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	boom := errors.New("boom")
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO items (name) VALUES ('a')"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx error = %v, want boom", err)
	}

	var n int
	if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("rows = %d after rollback, want 0", n)
	}
}

func TestMigrate_AppliesOnce(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	migrations := []Migration{tableMigration(1, "one"), tableMigration(2, "two")}

	if err := s.Migrate(ctx, "definitions", migrations); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := s.Migrate(ctx, "definitions", migrations); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	if !tableExists(t, s, "one") || !tableExists(t, s, "two") {
		t.Error("migrated tables missing")
	}
	var n int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM _migrations WHERE component = 'definitions'").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 2 {
		t.Errorf("recorded migrations = %d, want 2", n)
	}
}

func TestMigrate_ComponentsIsolated(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	if err := s.Migrate(ctx, "a", []Migration{tableMigration(1, "a_table")}); err != nil {
		t.Fatalf("Migrate a: %v", err)
	}
	if err := s.Migrate(ctx, "b", []Migration{tableMigration(1, "b_table")}); err != nil {
		t.Fatalf("Migrate b: %v", err)
	}
	if !tableExists(t, s, "b_table") {
		t.Error("component b migration 1 was skipped")
	}
}

func TestMigrate_FailureKeepsEarlierSteps(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	bad := Migration{
		Version:     2,
		Description: "broken",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE half (id INTEGER)"); err != nil {
				return err
			}
			return errors.New("step failed")
		},
	}

	err := s.Migrate(ctx, "definitions", []Migration{tableMigration(1, "first"), bad})
	if err == nil {
		t.Fatal("Migrate error = nil, want failure")
	}
	if !tableExists(t, s, "first") {
		t.Error("earlier migration was rolled back")
	}
	if tableExists(t, s, "half") {
		t.Error("failed migration was not rolled back")
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		current  string
		wantErr  error
		wantMeta string
	}{
		{"same version", "v1.2.0", "v1.2.0", nil, "v1.2.0"},
		{"newer binary", "v1.2.0", "v1.3.0", nil, "v1.3.0"},
		{"without v prefix", "1.2.0", "1.10.0", nil, "1.10.0"},
		{"older binary rejected", "v2.0.0", "v1.9.9", ErrNewerSchema, "v2.0.0"},
		{"dev binary", "v2.0.0", "dev", nil, "dev"},
		{"dev database", "dev", "v0.1.0", nil, "v0.1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tempDB(t)
			ctx := context.Background()

			if err := s.CheckVersion(ctx, tt.stored); err != nil {
				t.Fatalf("first CheckVersion(%q): %v", tt.stored, err)
			}
			err := s.CheckVersion(ctx, tt.current)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckVersion(%q) error = %v, want %v", tt.current, err, tt.wantErr)
			}

			var got string
			if err := s.DB().QueryRow("SELECT app_version FROM _schema_meta WHERE id = 1").Scan(&got); err != nil {
				t.Fatalf("read version: %v", err)
			}
			if got != tt.wantMeta {
				t.Errorf("stored version = %q, want %q", got, tt.wantMeta)
			}
		})
	}
}
