package notes_test

import (
	"context"
	"testing"

	"github.com/pnotes/notes-core/internal/notes"
)

func TestMigrate_FreshSchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	applied, pending, err := notes.MigrationStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Fatalf("MigrationStatus() = %d applied, %d pending; want 2, 0", len(applied), len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}

	// Re-running is a no-op.
	if err := notes.Migrate(ctx, db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := notes.MigrateDown(ctx, db); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if _, err := db.Select(ctx, "SELECT * FROM note"); err == nil {
		t.Error("note table still exists after MigrateDown")
	}
	if _, err := db.Select(ctx, "SELECT * FROM category"); err != nil {
		t.Errorf("category table missing after one MigrateDown: %v", err)
	}

	applied, pending, err := notes.MigrationStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 || pending[0].Name != "note" {
		t.Errorf("MigrationStatus() = %v applied, %v pending", applied, pending)
	}

	if err := notes.Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() after MigrateDown error = %v", err)
	}
	if _, err := db.Select(ctx, "SELECT * FROM note"); err != nil {
		t.Errorf("note table missing after Migrate: %v", err)
	}
}
