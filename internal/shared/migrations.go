package shared

import (
	"cmp"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// ErrNoMigrations is returned by [RollbackMigration] on a database with nothing applied.
var ErrNoMigrations = errors.New("no migrations to roll back")

// Migration pairs the up and down scripts of one schema version.
//
// Scripts live in sql/ as NNNN_<name>_up.sql and NNNN_<name>_down.sql.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationState reports whether an embedded migration has been applied.
type MigrationState struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt string
}

// migrator applies the scripts found in source to the cache database.
type migrator struct {
	db     *sql.DB
	source fs.FS
}

func newMigrator(db *sql.DB) *migrator {
	sub, _ := fs.Sub(migrationFiles, "sql")
	return &migrator{db: db, source: sub}
}

// RunMigrations applies every pending migration in version order.
func RunMigrations(db *sql.DB) error {
	return newMigrator(db).up()
}

// RollbackMigration reverts the newest applied migration and returns its version.
func RollbackMigration(db *sql.DB) (int, error) {
	return newMigrator(db).down()
}

// MigrationStatus lists every embedded migration with its applied state, ordered by version.
func MigrationStatus(db *sql.DB) ([]MigrationState, error) {
	return newMigrator(db).status()
}

// parseMigrationName splits "0003_add_covers_up.sql" into 3, "add_covers" and "up".
func parseMigrationName(name string) (version int, label, direction string, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return 0, "", "", false
	}

	prefix, rest, found := strings.Cut(base, "_")
	if !found {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version < 0 {
		return 0, "", "", false
	}

	switch {
	case strings.HasSuffix(rest, "_up"):
		return version, strings.TrimSuffix(rest, "_up"), "up", true
	case strings.HasSuffix(rest, "_down"):
		return version, strings.TrimSuffix(rest, "_down"), "down", true
	}
	return 0, "", "", false
}

func (m *migrator) load() ([]Migration, error) {
	names, err := fs.Glob(m.source, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, name := range names {
		version, label, direction, ok := parseMigrationName(name)
		if !ok {
			continue
		}

		content, err := fs.ReadFile(m.source, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		mig, seen := byVersion[version]
		if !seen {
			mig = &Migration{Version: version, Name: label}
			byVersion[version] = mig
		}
		if direction == "up" {
			mig.Up = string(content)
		} else {
			mig.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if strings.TrimSpace(mig.Up) == "" || strings.TrimSpace(mig.Down) == "" {
			return nil, fmt.Errorf("migration %04d_%s needs both up and down scripts", mig.Version, mig.Name)
		}
		migrations = append(migrations, *mig)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

func (m *migrator) ensureTable() error {
	_, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}

// applied maps each recorded version to its applied_at text.
func (m *migrator) applied() (map[int]string, error) {
	rows, err := m.db.Query("SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int]string)
	for rows.Next() {
		var (
			version int
			at      sql.NullString
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		versions[version] = at.String
	}
	return versions, rows.Err()
}

func (m *migrator) prepare() ([]Migration, map[int]string, error) {
	migrations, err := m.load()
	if err != nil {
		return nil, nil, err
	}
	if err := m.ensureTable(); err != nil {
		return nil, nil, err
	}
	done, err := m.applied()
	if err != nil {
		return nil, nil, err
	}
	return migrations, done, nil
}

func (m *migrator) up() error {
	migrations, done, err := m.prepare()
	if err != nil {
		return err
	}

	for _, mig := range migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		err := m.inTx(mig.Up, "INSERT INTO schema_migrations (version) VALUES (?)", mig.Version)
		if err != nil {
			return fmt.Errorf("migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

func (m *migrator) down() (int, error) {
	migrations, done, err := m.prepare()
	if err != nil {
		return 0, err
	}
	if len(done) == 0 {
		return 0, ErrNoMigrations
	}

	latest := slices.Max(slices.Collect(maps.Keys(done)))
	idx := slices.IndexFunc(migrations, func(mig Migration) bool { return mig.Version == latest })
	if idx < 0 {
		return 0, fmt.Errorf("applied migration %04d has no embedded script", latest)
	}

	mig := migrations[idx]
	if err := m.inTx(mig.Down, "DELETE FROM schema_migrations WHERE version = ?", mig.Version); err != nil {
		return 0, fmt.Errorf("rollback %04d_%s: %w", mig.Version, mig.Name, err)
	}
	return mig.Version, nil
}

func (m *migrator) status() ([]MigrationState, error) {
	migrations, done, err := m.prepare()
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, mig := range migrations {
		at, ok := done[mig.Version]
		states = append(states, MigrationState{Version: mig.Version, Name: mig.Name, Applied: ok, AppliedAt: at})
	}
	return states, nil
}

// inTx runs script then the bookkeeping statement in one transaction.
func (m *migrator) inTx(script, record string, version int) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(script) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%w\nstatement: %s", err, stmt)
		}
	}
	if _, err := tx.Exec(record, version); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements drops "--" comments and returns the non-empty ";"-separated statements.
func splitStatements(script string) []string {
	var cleaned strings.Builder
	for line := range strings.Lines(script) {
		if before, _, found := strings.Cut(line, "--"); found {
			line = before + "\n"
		}
		cleaned.WriteString(line)
	}

	var stmts []string
	for stmt := range strings.SplitSeq(cleaned.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
