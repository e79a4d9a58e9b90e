package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver
)

// Database configuration constants.
const (
	// InMemory is the path denoting a RAM-only database.
	InMemory = ":memory:"

	// InvalidRowID is returned by Insert when no row was inserted.
	InvalidRowID int64 = -1

	// driverName is the database/sql driver registered by go-sqlite3.
	driverName = "sqlite3"

	// dirPermissions is the permission mode for a created database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for a created database file.
	filePermissions = 0600

	// defaultBusyTimeout is how long SQLite waits on a locked database.
	defaultBusyTimeout = 5 * time.Second
)

// Header is the 16-byte magic string every SQLite 3 database file starts with.
var Header = [16]byte{
	0x53, 0x51, 0x4c, 0x69, 0x74, 0x65, 0x20, 0x66,
	0x6f, 0x72, 0x6d, 0x61, 0x74, 0x20, 0x33, 0x00,
}

// InitFunc populates a freshly created database (schema, seed data).
type InitFunc func(ctx context.Context, db *Database) error

// Observer receives one QueryEvent per facade verb. Implementations must
// not call back into the Database.
type Observer interface {
	ObserveQuery(e QueryEvent)
}

// QueryEvent describes one executed verb.
type QueryEvent struct {
	Verb     string // exec, insert, update, select or script
	Text     string
	Duration time.Duration
	Rows     int // rows returned (select) or affected (others)
	Err      error
}

// Option configures a Database.
type Option func(*Database)

// WithLogger routes diagnostics to log.
func WithLogger(log Logger) Option {
	return func(d *Database) {
		d.diag = NewDiagnostics(log)
	}
}

// WithObserver registers an observer for executed verbs.
func WithObserver(o Observer) Option {
	return func(d *Database) {
		d.observer = o
	}
}

// WithBusyTimeout sets how long SQLite waits for a locked database.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(d *Database) {
		d.busyTimeout = timeout
	}
}

// Database owns at most one SQLite connection and exposes the exec,
// insert, update and select verbs on top of it.
//
// Every verb builds a Query, runs it through a fresh Stmt and returns a
// typed outcome. Verbs are serialised by an internal mutex, so a long
// query blocks all other access to the same Database. A running
// Transaction holds the Database until it commits or rolls back.
//
// A Database is created closed; call Open or Create before use.
type Database struct {
	// tx is held for a whole Transaction and by each call made outside
	// one. mu guards the connection for a single verb.
	tx sync.Mutex
	mu sync.Mutex

	db       *sql.DB
	conn     *sql.Conn
	path     string
	readOnly bool

	diag        *Diagnostics
	observer    Observer
	busyTimeout time.Duration
}

// New returns a closed Database.
func New(opts ...Option) *Database {
	d := &Database{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(d)
	}
	if d.diag == nil {
		d.diag = NewDiagnostics(nil)
	}
	return d
}

// Version returns the version of the linked SQLite library.
func Version() string {
	v, _, _ := sqlite3.Version()
	return v
}

// Open connects to an existing database file.
//
// It fails if a connection is already held, if path is the in-memory
// sentinel (there is nothing to open; use Create), if the file does not
// exist, or if the file is not a SQLite database.
//
// Parameters:
//   - ctx: Context for the connection attempt
//   - path: Filesystem path of the database file
//   - readOnly: Open without write access
//
// Returns:
//   - error: nil once the connection is established
func (d *Database) Open(ctx context.Context, path string, readOnly bool) error {
	defer d.acquire(ctx)()

	if d.conn != nil {
		d.diag.Warn("database is already opened", "path", d.path)
		return ErrAlreadyOpen
	}
	if path == InMemory {
		d.diag.Warn("database in memory can't be opened (use create)")
		return ErrInMemoryOpen
	}

	ok, err := HasSQLiteHeader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		d.diag.Report(err)
		return fmt.Errorf("checking database file: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotDatabase, path)
	}

	mode := "rw"
	if readOnly {
		mode = "ro"
	}
	if err := d.connect(ctx, path, mode); err != nil {
		d.diag.Report(err)
		return err
	}
	d.readOnly = readOnly
	d.diag.Info("database opened", "path", path, "read_only", readOnly)
	return nil
}

// Create creates (or reuses) a database at path and runs init on it.
//
// For on-disk paths an existing file is removed first when overwrite is
// set, and reused otherwise; the parent directory is created if needed.
// The in-memory path skips all filesystem steps.
//
// If init fails the connection stays open and the error is returned
// wrapped in ErrInitFailed; the caller decides whether to Close.
//
// Parameters:
//   - ctx: Context for the connection and passed on to init
//   - path: Filesystem path, or InMemory
//   - init: Populates schema and seed data (required)
//   - overwrite: Remove an existing file before creating
//
// Returns:
//   - error: nil if the database was created and initialised
func (d *Database) Create(ctx context.Context, path string, init InitFunc, overwrite bool) error {
	if err := d.create(ctx, path, init, overwrite); err != nil {
		return err
	}

	// init runs verbs, which take the lock themselves.
	if err := init(ctx, d); err != nil {
		d.diag.Report(err)
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	d.diag.Info("the database created successfully", "path", path)
	return nil
}

func (d *Database) create(ctx context.Context, path string, init InitFunc, overwrite bool) error {
	defer d.acquire(ctx)()

	if d.conn != nil {
		d.diag.Warn("database is already opened", "path", d.path)
		return ErrAlreadyOpen
	}
	if init == nil {
		d.diag.Warn("operations to be performed on created database were not specified")
		return ErrNilInit
	}

	if path != InMemory {
		if err := prepareFile(path, overwrite); err != nil {
			d.diag.Report(err)
			return err
		}
	}

	if err := d.connect(ctx, path, "rwc"); err != nil {
		d.diag.Report(err)
		return err
	}
	d.readOnly = false

	if path != InMemory {
		// Owner read/write only; the file exists once the connection is up.
		_ = os.Chmod(path, filePermissions) //nolint:errcheck // Best effort
	}
	return nil
}

// prepareFile makes sure path's directory exists and removes an existing
// file when overwrite is set.
func prepareFile(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if overwrite {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("database file could not be deleted: %w", err)
			}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("checking database file: %w", err)
	}
	return nil
}

// connect opens the driver and pins one connection for the Database's
// lifetime. Callers hold d.mu.
func (d *Database) connect(ctx context.Context, path, mode string) error {
	db, err := sql.Open(driverName, buildDSN(path, mode, d.busyTimeout))
	if err != nil {
		return engineError("open", err)
	}

	// One connection only: an in-memory database lives and dies with it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return engineError("open", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		db.Close()   //nolint:errcheck // Best effort cleanup on error path
		return engineError("open", err)
	}

	d.db = db
	d.conn = conn
	d.path = path
	return nil
}

// buildDSN returns the go-sqlite3 connection string for path. The path
// is percent-encoded so that '?', '#' and '%' in a file name stay part
// of the name; SQLite decodes it when opening the URI.
// See: https://github.com/mattn/go-sqlite3#connection-string
func buildDSN(path, mode string, busyTimeout time.Duration) string {
	params := fmt.Sprintf("_busy_timeout=%d", busyTimeout.Milliseconds())
	if path == InMemory {
		return InMemory + "?" + params
	}
	escaped := (&url.URL{Path: path}).EscapedPath()
	return fmt.Sprintf("file:%s?mode=%s&%s", escaped, mode, params)
}

// Close releases the connection. Closing a closed Database is a no-op.
//
// Close waits for a running Transaction and must not be called from
// inside one.
func (d *Database) Close() error {
	d.tx.Lock()
	defer d.tx.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}

	var errs []error
	if err := d.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.db.Close(); err != nil {
		errs = append(errs, err)
	}
	d.conn = nil
	d.db = nil
	d.path = ""
	d.readOnly = false

	if err := errors.Join(errs...); err != nil {
		err = engineError("close", err)
		d.diag.Report(err)
		return err
	}
	return nil
}

// IsOpen reports whether a connection is held.
func (d *Database) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// Path returns the path of the open database, or "" when closed.
func (d *Database) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// ReadOnly reports whether the open connection is read-only.
func (d *Database) ReadOnly() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readOnly
}

// HealthCheck verifies the connection is alive with a trivial query.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, ErrNotOpen when closed, or the engine error
func (d *Database) HealthCheck(ctx context.Context) error {
	res, err := d.Select(ctx, "SELECT 1 AS ok")
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if res.Len() != 1 {
		return fmt.Errorf("database health check failed: %d rows", res.Len())
	}
	return nil
}

// Exec runs a statement that returns no rows, typically DDL.
func (d *Database) Exec(ctx context.Context, text string, args ...any) error {
	return d.ExecQuery(ctx, NewQuery(text, args...))
}

// ExecQuery is Exec for a prebuilt Query.
func (d *Database) ExecQuery(ctx context.Context, q Query) error {
	_, err := d.run(ctx, "exec", q)
	return err
}

// Insert runs an INSERT and returns the new row id, or InvalidRowID and
// the error on failure.
func (d *Database) Insert(ctx context.Context, text string, args ...any) (int64, error) {
	return d.InsertQuery(ctx, NewQuery(text, args...))
}

// InsertQuery is Insert for a prebuilt Query.
func (d *Database) InsertQuery(ctx context.Context, q Query) (int64, error) {
	res, err := d.run(ctx, "insert", q)
	if err != nil {
		return InvalidRowID, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		d.diag.Report(err)
		return InvalidRowID, fmt.Errorf("reading last insert row id: %w", err)
	}
	return id, nil
}

// Update runs an UPDATE or DELETE. It behaves like Exec and exists so
// call sites read as what they do.
func (d *Database) Update(ctx context.Context, text string, args ...any) error {
	return d.UpdateQuery(ctx, NewQuery(text, args...))
}

// UpdateQuery is Update for a prebuilt Query.
func (d *Database) UpdateQuery(ctx context.Context, q Query) error {
	_, err := d.run(ctx, "update", q)
	return err
}

// Select runs a query and returns all of its rows. No matching rows is a
// non-nil, empty Result; a nil Result always comes with an error.
func (d *Database) Select(ctx context.Context, text string, args ...any) (*Result, error) {
	return d.SelectQuery(ctx, NewQuery(text, args...))
}

// SelectQuery is Select for a prebuilt Query.
func (d *Database) SelectQuery(ctx context.Context, q Query) (*Result, error) {
	defer d.acquire(ctx)()

	start := time.Now()
	if d.conn == nil {
		d.observe("select", q, start, 0, ErrNotOpen)
		return nil, ErrNotOpen
	}

	result, err := NewStmt(d.conn, d.diag).ExecWithResult(ctx, q)
	rows := 0
	if result != nil {
		rows = result.Len()
	}
	d.observe("select", q, start, rows, err)
	return result, err
}

// Script runs a multi-statement SQL script without parameters, such as a
// schema migration containing triggers. It bypasses Query because the
// prepared-statement path compiles only the first statement of a text.
func (d *Database) Script(ctx context.Context, script string) error {
	defer d.acquire(ctx)()

	start := time.Now()
	q := NewQuery(script)
	if d.conn == nil {
		d.observe("script", q, start, 0, ErrNotOpen)
		return ErrNotOpen
	}

	_, err := d.conn.ExecContext(ctx, script)
	if err != nil {
		err = engineError("step", err)
		d.diag.Report(err)
	}
	d.observe("script", q, start, 0, err)
	return err
}

// run executes q in no-result mode under the lock.
func (d *Database) run(ctx context.Context, verb string, q Query) (sql.Result, error) {
	defer d.acquire(ctx)()

	start := time.Now()
	if d.conn == nil {
		d.observe(verb, q, start, 0, ErrNotOpen)
		return nil, ErrNotOpen
	}

	res, err := NewStmt(d.conn, d.diag).ExecWithoutResult(ctx, q)
	affected := 0
	if err == nil {
		if n, rerr := res.RowsAffected(); rerr == nil {
			affected = int(n)
		}
	}
	d.observe(verb, q, start, affected, err)
	return res, err
}

func (d *Database) observe(verb string, q Query, start time.Time, rows int, err error) {
	if d.observer == nil {
		return
	}
	d.observer.ObserveQuery(QueryEvent{
		Verb:     verb,
		Text:     q.Text(),
		Duration: time.Since(start),
		Rows:     rows,
		Err:      err,
	})
}

// HasSQLiteHeader reports whether the file at path is empty or starts
// with the SQLite 3 magic header. SQLite treats an empty file as an
// empty database.
func HasSQLiteHeader(path string) (bool, error) {
	f, err := os.Open(path) // #nosec G304 -- path is chosen by the caller
	if err != nil {
		return false, err
	}
	defer f.Close() //nolint:errcheck // Read-only file

	buf := make([]byte, len(Header))
	n, err := io.ReadFull(f, buf)
	switch {
	case n == 0 && (errors.Is(err, io.EOF) || err == nil):
		return true, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return false, nil
	case err != nil:
		return false, err
	}
	return bytes.Equal(buf, Header[:]), nil
}

// txKey marks a context as running inside a Transaction. The value is
// the owning *Database.
type txKey struct{}

// acquire takes the locks for one call and returns their release. A call
// inside a Transaction of d takes only mu; any other call first waits
// for the Transaction to end.
func (d *Database) acquire(ctx context.Context) func() {
	if d.inTransaction(ctx) {
		d.mu.Lock()
		return d.mu.Unlock
	}
	d.tx.Lock()
	d.mu.Lock()
	return func() {
		d.mu.Unlock()
		d.tx.Unlock()
	}
}

func (d *Database) inTransaction(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Database)
	return owner == d
}

// Transaction runs fn between BEGIN and COMMIT, rolling back when fn or
// the commit fails. It uses SQLite's own transaction statements.
//
// The Database is held for the whole transaction: calls from other
// goroutines wait until it commits or rolls back. fn must run its verbs
// with the context it is given, which lets them through; a verb run with
// any other context blocks until fn returns. Transactions don't nest and
// a nested call returns ErrNestedTransaction.
func (d *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.inTransaction(ctx) {
		return ErrNestedTransaction
	}
	d.tx.Lock()
	defer d.tx.Unlock()
	ctx = context.WithValue(ctx, txKey{}, d)

	if err := d.Exec(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	// ROLLBACK must run even when ctx is cancelled.
	rbCtx := context.WithoutCancel(ctx)
	if err := fn(ctx); err != nil {
		if rbErr := d.Exec(rbCtx, "ROLLBACK"); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}

	if err := d.Exec(ctx, "COMMIT"); err != nil {
		_ = d.Exec(rbCtx, "ROLLBACK") //nolint:errcheck // Commit failure already reported
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
