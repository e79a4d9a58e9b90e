// Package migrations embeds the SQL schema migrations into the binary.
//
// Importing it for side effects registers the files with the notes
// package, so the schema can be created and upgraded without the SQL
// files present on the filesystem.
package migrations

import (
	"embed"

	"github.com/pnotes/notes-core/internal/notes"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	notes.MigrationsFS = migrationsFS
	notes.MigrationsDir = "."
}
