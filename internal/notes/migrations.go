package notes

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/pnotes/notes-core/internal/sqlite"
)

// MigrationsFS holds the schema migration files. It is set by the
// migrations package, which embeds them into the binary:
//
//	import _ "github.com/pnotes/notes-core/migrations"
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS containing migration files.
// Can be set to "." if files are at the root of the embedded filesystem.
var MigrationsDir = "migrations"

// Migration represents a single schema migration.
type Migration struct {
	// Version is the migration version (extracted from filename).
	// Format: YYYYMMDD_HHMMSS (e.g., 20240409_120000)
	Version string

	// Name is the human-readable migration name.
	Name string

	// UpSQL contains the SQL to apply this migration.
	UpSQL string

	// DownSQL contains the SQL to roll this migration back.
	DownSQL string
}

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// InitSchema creates the schema on a freshly created database. It has
// the signature of sqlite.InitFunc:
//
//	err := db.Create(ctx, path, notes.InitSchema, false)
func InitSchema(ctx context.Context, db *sqlite.Database) error {
	return Migrate(ctx, db)
}

// Migrate applies all pending migrations to db in version order
// (oldest first).
//
// Each migration runs in its own transaction. If migration N fails,
// migrations before it stay committed, N is rolled back and later ones
// are not attempted; running Migrate again continues from N.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Open database
//
// Returns:
//   - error: If any migration fails (that migration is rolled back)
func Migrate(ctx context.Context, db *sqlite.Database) error {
	if err := createMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	if len(migrations) == 0 {
		return nil
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	for _, m := range pendingMigrations(migrations, applied) {
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
// This is primarily for development and testing.
func MigrateDown(ctx context.Context, db *sqlite.Database) error {
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1]

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	var migration *Migration
	for i := range migrations {
		if migrations[i].Version == latest.Version {
			migration = &migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found in filesystem", latest.Version)
	}
	if migration.DownSQL == "" {
		return fmt.Errorf("migration %s has no down SQL", latest.Version)
	}

	return db.Transaction(ctx, func(ctx context.Context) error {
		if err := db.Script(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}
		if err := db.Update(ctx, "DELETE FROM schema_migrations WHERE version = ?", migration.Version); err != nil {
			return fmt.Errorf("removing migration record: %w", err)
		}
		return nil
	})
}

// MigrationStatus returns the applied and pending migrations.
//
// Returns:
//   - applied: List of applied migrations
//   - pending: List of pending migrations
//   - error: If status check fails
func MigrationStatus(ctx context.Context, db *sqlite.Database) (applied []MigrationRecord, pending []Migration, err error) {
	if err := createMigrationsTable(ctx, db); err != nil {
		return nil, nil, err
	}
	applied, err = appliedMigrations(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	migrations, err := loadMigrations()
	if err != nil {
		return nil, nil, err
	}
	return applied, pendingMigrations(migrations, applied), nil
}

func pendingMigrations(migrations []Migration, applied []MigrationRecord) []Migration {
	appliedSet := make(map[string]bool, len(applied))
	for _, m := range applied {
		appliedSet[m.Version] = true
	}

	var pending []Migration
	for _, m := range migrations {
		if !appliedSet[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// createMigrationsTable creates the schema_migrations table if it doesn't
// exist. A read-only database is left alone.
func createMigrationsTable(ctx context.Context, db *sqlite.Database) error {
	if db.ReadOnly() {
		return nil
	}
	return db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
}

// appliedMigrations returns all migrations recorded in schema_migrations.
func appliedMigrations(ctx context.Context, db *sqlite.Database) ([]MigrationRecord, error) {
	result, err := db.Select(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}

	records := make([]MigrationRecord, 0, result.Len())
	for _, row := range result.All() {
		r := MigrationRecord{Version: row.Str("version")}
		// Format is controlled by applyMigration.
		r.AppliedAt, _ = time.Parse(time.RFC3339, row.Str("applied_at")) //nolint:errcheck // Format is controlled
		records = append(records, r)
	}
	return records, nil
}

// applyMigration applies a single migration within a transaction.
func applyMigration(ctx context.Context, db *sqlite.Database, m Migration) error {
	return db.Transaction(ctx, func(ctx context.Context) error {
		if err := db.Script(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}
		if _, err := db.Insert(ctx,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			m.Version,
			time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("recording migration: %w", err)
		}
		return nil
	})
}

// migrationFile matches YYYYMMDD_HHMMSS_name.up.sql and .down.sql.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([^.]+)\.(up|down)\.sql$`)

// loadMigrations reads the embedded migrations, oldest first.
func loadMigrations() ([]Migration, error) {
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, nil
	}
	return readMigrations(MigrationsFS, MigrationsDir)
}

// readMigrations pairs the up and down files in dir by version. Files
// not named like a migration are skipped. A missing dir means no
// migrations; a version without an up file is an error.
func readMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		match := migrationFile.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		version, name, direction := match[1], match[2], match[3]

		text, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.UpSQL = string(text)
		} else {
			m.DownSQL = string(text)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %s (%s) has no up file", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})
	return migrations, nil
}
