package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestOpen(t *testing.T) {
	t.Run("creates nested directory and file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "sub", "nested", "graph.db")

		db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
			t.Errorf("database directory was not created: %v", err)
		}
		if _, err := os.Stat(dbPath); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
	})

	t.Run("read-only never creates the file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "missing.db")

		if db, err := Open(context.Background(), Config{Path: dbPath, ReadOnly: true}); err == nil {
			db.Close() //nolint:errcheck // Test cleanup
			t.Fatal("Open() read-only expected error for a missing file")
		}
		if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
			t.Errorf("read-only Open() created %s", dbPath)
		}
	})

	t.Run("read-only rejects writes", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "graph.db")
		rw, err := Open(context.Background(), Config{Path: dbPath})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := rw.Exec("CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		rw.Close() //nolint:errcheck // Test cleanup

		ro, err := Open(context.Background(), Config{Path: dbPath, ReadOnly: true, WALMode: true})
		if err != nil {
			t.Fatalf("Open() read-only error = %v", err)
		}
		defer ro.Close() //nolint:errcheck // Test cleanup

		if _, err := ro.Exec("INSERT INTO t (id) VALUES (1)"); err == nil {
			t.Error("Exec() on read-only connection expected error")
		}
		var mode string
		if err := ro.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("journal_mode query error = %v", err)
		}
		if mode == "wal" {
			t.Error("read-only Open() switched the file to WAL")
		}
	})

	t.Run("rejects empty path", func(t *testing.T) {
		if _, err := Open(context.Background(), Config{}); err == nil {
			t.Error("Open() expected error for empty path")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v, want nil", err)
	}
}

// =============================================================================
// Migration Tests
// =============================================================================

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"m/20260101_000000_first.up.sql":    {Data: []byte("CREATE TABLE first (id INTEGER PRIMARY KEY);")},
		"m/20260101_000000_first.down.sql":  {Data: []byte("DROP TABLE first;")},
		"m/20260102_000000_second.up.sql":   {Data: []byte("CREATE TABLE second (id INTEGER PRIMARY KEY);")},
		"m/README.md":                       {Data: []byte("ignored")},
		"m/20260103_000000_notes.sql":       {Data: []byte("ignored, no direction")},
		"m/nested/20260104_000000_x.up.sql": {Data: []byte("ignored, subdirectory")},
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations(), "m"); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"first", "second"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}

	// Running again must be a no-op.
	if err := db.Migrate(ctx, testMigrations(), "m"); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	n := len(applied)
	if n != 2 {
		t.Errorf("applied migrations = %d, want 2", n)
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"m/20260101_000000_ok.up.sql":  {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"m/20260102_000000_bad.up.sql": {Data: []byte("CREATE TABLE broken (;")},
	}

	if err := db.Migrate(ctx, fsys, "m"); err == nil {
		t.Fatal("Migrate() expected error for invalid SQL")
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	n := len(applied)
	if n != 1 {
		t.Errorf("applied migrations = %d, want 1", n)
	}
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations(testMigrations(), "m")
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("LoadMigrations() returned %d migrations, want 2", len(migrations))
	}
	if migrations[0].Name != "first" || migrations[1].Name != "second" {
		t.Errorf("LoadMigrations() order = %s, %s; want first, second", migrations[0].Name, migrations[1].Name)
	}
	if migrations[0].DownSQL == "" {
		t.Error("first migration DownSQL is empty")
	}

	orphan := fstest.MapFS{"m/20260101_000000_x.down.sql": {Data: []byte("DROP TABLE x;")}}
	if _, err := LoadMigrations(orphan, "m"); err == nil {
		t.Error("LoadMigrations() expected error for down-only migration")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		version  string
		name     string
		up       bool
		ok       bool
	}{
		{"20260301_120000_intent_graph.up.sql", "20260301_120000", "intent_graph", true, true},
		{"20260301_120000_intent_graph.down.sql", "20260301_120000", "intent_graph", false, true},
		{"20260301_120000.up.sql", "20260301_120000", "", true, true},
		{"20260301.up.sql", "", "", false, false},
		{"20260301_120000_x.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
	}

	for _, tt := range tests {
		version, name, up, ok := parseMigrationFilename(tt.filename)
		if version != tt.version || name != tt.name || up != tt.up || ok != tt.ok {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v, %v), want (%q, %q, %v, %v)",
				tt.filename, version, name, up, ok, tt.version, tt.name, tt.up, tt.ok)
		}
	}
}
