// Package notes provides the category tree and the notes stored in it.
//
// Categories form a tree through their parent id (pid 0 is the top
// level); notes belong to exactly one category. Both live in the
// application's SQLite database and are read and written through the
// typed query layer in internal/sqlite: every repository call builds a
// parameterised query, runs it through the facade and converts the
// resulting rows field by field.
//
// # Schema
//
// The tables, unique indexes and timestamp triggers ship as versioned
// migration files embedded into the binary (see the migrations package).
// InitSchema is the init callback for sqlite.Database.Create; Migrate
// applies pending migrations to an opened database.
//
// # Change events
//
// Repositories publish a ChangeEvent to an optional Publisher after each
// successful write. Publishing is best effort: a failed publish is logged
// and never undoes the write.
//
// # Thread Safety
//
// Repositories hold no state of their own and are safe for concurrent
// use; the underlying sqlite.Database serialises access.
package notes
