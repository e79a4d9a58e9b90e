// Package sqlite is the typed access layer over the embedded SQLite engine.
//
// This package manages:
//   - A closed Value type for SQLite's five storage classes
//   - Field, Row and Result for fetched data
//   - Query: SQL text plus bound values, with placeholder arity checks
//   - Stmt: prepare, bind, step and finalize for one execution
//   - Database: one owned connection with exec/insert/update/select verbs
//   - Diagnostics: engine error codes and call sites through the logger
//
// # Data flow
//
//	caller → Query → Database verb → Stmt (prepare → bind → step → finalize)
//	       ← Result (rows of fields of values)
//
// # Error handling
//
// Nothing panics across the package boundary. Every verb returns an error;
// Select returns a nil Result only together with an error, so a query that
// matches nothing (empty Result) is distinguishable from one that failed.
// Engine failures are *EngineError values carrying SQLite result codes;
// errors.Is(err, ErrConstraint) identifies constraint violations.
//
// # Concurrency
//
// A Database holds exactly one connection. Verbs are serialised by a
// mutex, so a long-running query blocks all other access to it. A
// Transaction keeps other goroutines out until it commits or rolls back.
//
// # Usage
//
//	db := sqlite.New(sqlite.WithLogger(log))
//	err := db.Create(ctx, sqlite.InMemory, func(ctx context.Context, db *sqlite.Database) error {
//	    return db.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
//	}, false)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	id, err := db.Insert(ctx, "INSERT INTO t (name) VALUES (?)", "alice")
//	result, err := db.Select(ctx, "SELECT * FROM t WHERE id=?", id)
//	for _, row := range result.All() {
//	    name := row.Str("name")
//	}
package sqlite
