package shared

import (
	"database/sql"
	"errors"
	"slices"
	"strings"
	"testing"
	"testing/fstest"
)

func memoryDatabase(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func appliedCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("failed to count schema_migrations: %v", err)
	}
	return n
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		name      string
		version   int
		label     string
		direction string
		ok        bool
	}{
		{"0000_create_tables_up.sql", 0, "create_tables", "up", true},
		{"0012_add_cover_urls_down.sql", 12, "add_cover_urls", "down", true},
		{"0001_seed.sql", 0, "", "", false},
		{"readme_up.sql", 0, "", "", false},
		{"0002_tracks_up.txt", 0, "", "", false},
		{"0003.sql", 0, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, label, direction, ok := parseMigrationName(tt.name)
			if ok != tt.ok || version != tt.version || label != tt.label || direction != tt.direction {
				t.Errorf("parseMigrationName(%q) = %d, %q, %q, %v", tt.name, version, label, direction, ok)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- tracks
CREATE TABLE a (id INTEGER); -- trailing
-- nothing here;

INSERT INTO a VALUES (1);
`
	got := splitStatements(script)
	want := []string{"CREATE TABLE a (id INTEGER)", "INSERT INTO a VALUES (1)"}
	if !slices.Equal(got, want) {
		t.Errorf("splitStatements() = %q, want %q", got, want)
	}
}

func TestMigrator(t *testing.T) {
	scripts := fstest.MapFS{
		"0000_artists_up.sql":   {Data: []byte("CREATE TABLE artists (id INTEGER PRIMARY KEY);")},
		"0000_artists_down.sql": {Data: []byte("DROP TABLE artists;")},
		"0001_albums_up.sql":    {Data: []byte("CREATE TABLE albums (id INTEGER PRIMARY KEY);\nCREATE INDEX idx_albums ON albums(id);")},
		"0001_albums_down.sql":  {Data: []byte("DROP INDEX idx_albums;\nDROP TABLE albums;")},
		"notes.txt":             {Data: []byte("ignored")},
	}

	t.Run("up applies in version order", func(t *testing.T) {
		db := memoryDatabase(t)
		m := &migrator{db: db, source: scripts}
		if err := m.up(); err != nil {
			t.Fatalf("up failed: %v", err)
		}
		if n := appliedCount(t, db); n != 2 {
			t.Errorf("expected 2 applied migrations, got %d", n)
		}
		if err := m.up(); err != nil {
			t.Fatalf("second up failed: %v", err)
		}
		if n := appliedCount(t, db); n != 2 {
			t.Errorf("up should be idempotent, got %d rows", n)
		}
	})

	t.Run("down reverts only the newest", func(t *testing.T) {
		db := memoryDatabase(t)
		m := &migrator{db: db, source: scripts}
		if err := m.up(); err != nil {
			t.Fatalf("up failed: %v", err)
		}

		version, err := m.down()
		if err != nil || version != 1 {
			t.Fatalf("down() = %d, %v", version, err)
		}
		if _, err := db.Exec("SELECT 1 FROM albums"); err == nil {
			t.Error("albums should be dropped")
		}
		if _, err := db.Exec("SELECT 1 FROM artists"); err != nil {
			t.Errorf("artists should remain: %v", err)
		}

		states, err := m.status()
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if len(states) != 2 || !states[0].Applied || states[1].Applied || states[1].Name != "albums" {
			t.Errorf("unexpected states %+v", states)
		}
	})

	t.Run("down on an empty database", func(t *testing.T) {
		m := &migrator{db: memoryDatabase(t), source: scripts}
		if _, err := m.down(); !errors.Is(err, ErrNoMigrations) {
			t.Errorf("expected ErrNoMigrations, got %v", err)
		}
	})

	t.Run("missing down script", func(t *testing.T) {
		broken := fstest.MapFS{"0000_artists_up.sql": {Data: []byte("CREATE TABLE artists (id INTEGER);")}}
		m := &migrator{db: memoryDatabase(t), source: broken}
		if err := m.up(); err == nil || !strings.Contains(err.Error(), "needs both up and down") {
			t.Errorf("expected incomplete migration error, got %v", err)
		}
	})

	t.Run("failing script leaves nothing recorded", func(t *testing.T) {
		bad := fstest.MapFS{
			"0000_bad_up.sql":   {Data: []byte("CREATE TABLE ok (id INTEGER);\nNOT SQL;")},
			"0000_bad_down.sql": {Data: []byte("DROP TABLE ok;")},
		}
		db := memoryDatabase(t)
		m := &migrator{db: db, source: bad}
		if err := m.up(); err == nil || !strings.Contains(err.Error(), "0000_bad") {
			t.Fatalf("expected a migration error, got %v", err)
		}
		if n := appliedCount(t, db); n != 0 {
			t.Errorf("expected no recorded migrations, got %d", n)
		}
		if _, err := db.Exec("SELECT 1 FROM ok"); err == nil {
			t.Error("partial migration should be rolled back")
		}
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		migrations, err := newMigrator(nil).load()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) == 0 || migrations[0].Name != "create_tables" {
			t.Fatalf("unexpected embedded migrations %+v", migrations)
		}
	})

	t.Run("schema and sequences", func(t *testing.T) {
		db := memoryDatabase(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		for _, table := range []string{"tracks", "tracks_sequence", "batch_jobs", "batch_jobs_sequence"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		var value int
		if err := db.QueryRow("SELECT value FROM batch_jobs_sequence WHERE id = 1").Scan(&value); err != nil {
			t.Fatalf("sequence row missing: %v", err)
		}
		if value != 0 {
			t.Errorf("expected sequence to start at 0, got %d", value)
		}
	})

	t.Run("status then rollback", func(t *testing.T) {
		db := memoryDatabase(t)
		states, err := MigrationStatus(db)
		if err != nil {
			t.Fatalf("failed to read status: %v", err)
		}
		for _, s := range states {
			if s.Applied {
				t.Errorf("migration %d should be pending on a fresh database", s.Version)
			}
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		states, _ = MigrationStatus(db)
		for _, s := range states {
			if !s.Applied || s.AppliedAt == "" {
				t.Errorf("migration %d should be applied with a timestamp", s.Version)
			}
		}

		before := appliedCount(t, db)
		if _, err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to roll back: %v", err)
		}
		if after := appliedCount(t, db); after != before-1 {
			t.Errorf("expected %d applied migrations after rollback, got %d", before-1, after)
		}
	})
}
