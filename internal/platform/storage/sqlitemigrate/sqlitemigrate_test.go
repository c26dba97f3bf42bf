package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyMigrationsAppliesInOrder(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"0001_one.sql": {Data: []byte("CREATE TABLE one (id TEXT PRIMARY KEY);")},
		"0002_two.sql": {Data: []byte("CREATE TABLE two (one_id TEXT REFERENCES one(id));")},
	}
	sqlDB := openTestDB(t)

	if err := ApplyMigrations(sqlDB, fsys); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Fatalf("applied migrations = %d, want 2", count)
	}
	if _, err := sqlDB.Exec("INSERT INTO two (one_id) VALUES ('x')"); err != nil {
		t.Fatalf("expected table two to exist: %v", err)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"0001_one.sql": {Data: []byte("CREATE TABLE one (id TEXT PRIMARY KEY);")},
	}
	sqlDB := openTestDB(t)

	if err := ApplyMigrations(sqlDB, fsys); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplyMigrations(sqlDB, fsys); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("applied migrations = %d, want 1", count)
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	t.Parallel()

	if err := ApplyMigrations(nil, fstest.MapFS{}); err == nil {
		t.Fatal("expected missing db error")
	}
}
