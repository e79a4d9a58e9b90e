package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// rawColumnsCTE names the common table expression that wraps a query
// whose columns go-sqlite3 would convert by declared type.
const rawColumnsCTE = "notes_raw_columns"

// convertedDeclTypes are the declared column types go-sqlite3 converts on
// read: date types to time.Time and BOOLEAN to bool.
var convertedDeclTypes = map[string]bool{
	"date":      true,
	"datetime":  true,
	"timestamp": true,
	"boolean":   true,
}

// stmtState tracks where a Stmt is in its lifecycle.
type stmtState uint8

const (
	stateUnprepared stmtState = iota
	statePrepared
	stateBound
	stateExecuting
	stateFinalized
)

// String returns the state name.
func (s stmtState) String() string {
	switch s {
	case stateUnprepared:
		return "unprepared"
	case statePrepared:
		return "prepared"
	case stateBound:
		return "bound"
	case stateExecuting:
		return "executing"
	case stateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// preparer is the part of *sql.Conn a Stmt uses.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Stmt owns one prepared statement for the duration of a single execution.
//
// Lifecycle: unprepared → prepared → bound → executing → finalized.
// The statement handle is released exactly once: explicitly after a
// successful run, or by the deferred cleanup on every failure path.
// A Stmt is single-use; executing it again returns ErrFinalized.
//
// Stmt is not safe for concurrent use.
type Stmt struct {
	conn  preparer
	diag  *Diagnostics
	stmt  *sql.Stmt
	args  []any
	state stmtState
}

// NewStmt returns an unprepared statement on conn. Failures are reported
// through diag.
func NewStmt(conn preparer, diag *Diagnostics) *Stmt {
	if diag == nil {
		diag = NewDiagnostics(nil)
	}
	return &Stmt{conn: conn, diag: diag}
}

// ExecWithoutResult runs a statement that returns no rows (DDL, INSERT,
// UPDATE, DELETE). The statement must run to completion: one that
// produces a row fails with ErrReturnsRows. The returned sql.Result
// carries the last insert row id and the number of changed rows.
func (s *Stmt) ExecWithoutResult(ctx context.Context, q Query) (sql.Result, error) {
	defer s.cleanup()

	if err := s.prepareAndBind(ctx, q); err != nil {
		s.diag.Report(err)
		return nil, err
	}

	s.state = stateExecuting
	if err := s.step(ctx); err != nil {
		err = engineError("step", err)
		s.diag.Report(err)
		return nil, err
	}

	res, err := s.changes(ctx)
	if err != nil {
		err = engineError("step", err)
		s.diag.Report(err)
		return nil, err
	}

	if err := s.Finalize(); err != nil {
		s.diag.Report(err)
		return nil, err
	}
	return res, nil
}

// step runs the bound statement once and expects it to be done.
func (s *Stmt) step(ctx context.Context) error {
	rows, err := s.stmt.QueryContext(ctx, s.args...)
	if err != nil {
		return err
	}
	gotRow := rows.Next()
	err = rows.Err()
	if closeErr := rows.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if gotRow {
		return ErrReturnsRows
	}
	return nil
}

// execResult is the sql.Result of a completed no-result statement.
type execResult struct {
	lastID  int64
	changed int64
}

// LastInsertId implements sql.Result.
func (r execResult) LastInsertId() (int64, error) { return r.lastID, nil }

// RowsAffected implements sql.Result.
func (r execResult) RowsAffected() (int64, error) { return r.changed, nil }

// changes reads the connection's last insert row id and change count.
func (s *Stmt) changes(ctx context.Context) (sql.Result, error) {
	stmt, err := s.conn.PrepareContext(ctx, "SELECT last_insert_rowid(), changes()")
	if err != nil {
		return nil, err
	}
	defer stmt.Close() //nolint:errcheck // Read-only statement

	var r execResult
	if err := stmt.QueryRowContext(ctx).Scan(&r.lastID, &r.changed); err != nil {
		return nil, fmt.Errorf("reading change count: %w", err)
	}
	return r, nil
}

// ExecWithResult runs a row-returning statement and materialises every
// row before returning. A query that matches nothing yields an empty,
// non-nil Result; any failure yields a nil Result and the error.
func (s *Stmt) ExecWithResult(ctx context.Context, q Query) (*Result, error) {
	defer s.cleanup()

	if err := s.prepareAndBind(ctx, q); err != nil {
		s.diag.Report(err)
		return nil, err
	}

	s.state = stateExecuting
	rows, err := s.query(ctx, q)
	if err != nil {
		s.diag.Report(err)
		return nil, err
	}

	result, err := decodeRows(rows)
	if closeErr := rows.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		err = engineError("step", err)
		s.diag.Report(err)
		return nil, err
	}

	if err := s.Finalize(); err != nil {
		s.diag.Report(err)
		return nil, err
	}
	return result, nil
}

// query runs the bound statement. When a column is declared with a type
// go-sqlite3 converts on read, a SELECT is recompiled inside a wrapper
// whose columns carry no declared type, so every cell keeps its storage
// class. Statements that can't be wrapped are returned as they are and
// decodeColumn rejects the converted cells.
func (s *Stmt) query(ctx context.Context, q Query) (*sql.Rows, error) {
	rows, err := s.stmt.QueryContext(ctx, s.args...)
	if err != nil {
		return nil, engineError("step", err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, engineError("step", err)
	}
	names := make([]string, len(types))
	converted := false
	for i, ct := range types {
		names[i] = ct.Name()
		if convertedDeclTypes[strings.ToLower(ct.DatabaseTypeName())] {
			converted = true
		}
	}
	if !converted {
		return rows, nil
	}
	text, ok := rawColumnsQuery(q.Text(), names)
	if !ok {
		return rows, nil
	}
	if err := rows.Close(); err != nil {
		return nil, engineError("step", err)
	}

	raw, err := s.conn.PrepareContext(ctx, text)
	if err != nil {
		return nil, engineError("prepare", err)
	}
	old := s.stmt
	s.stmt = raw
	if err := old.Close(); err != nil {
		return nil, engineError("finalize", err)
	}

	rows, err = s.stmt.QueryContext(ctx, s.args...)
	if err != nil {
		return nil, engineError("step", err)
	}
	return rows, nil
}

// rawColumnsQuery wraps a SELECT, WITH or VALUES statement so that each
// output column is an expression (unary +) named like the original.
// It reports false for any other statement.
func rawColumnsQuery(text string, names []string) (string, bool) {
	body := strings.TrimRightFunc(strings.TrimSpace(text), func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
	keyword := strings.ToUpper(leadingWord(body))
	if keyword != "SELECT" && keyword != "WITH" && keyword != "VALUES" {
		return "", false
	}

	var cols, list strings.Builder
	for i, name := range names {
		if i > 0 {
			cols.WriteString(", ")
			list.WriteString(", ")
		}
		fmt.Fprintf(&cols, "c%d", i)
		fmt.Fprintf(&list, "+c%d AS %s", i, quoteIdent(name))
	}
	// The newline ends a trailing line comment in body.
	return fmt.Sprintf("WITH %s(%s) AS (%s\n) SELECT %s FROM %s",
		rawColumnsCTE, cols.String(), body, list.String(), rawColumnsCTE), true
}

func leadingWord(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Finalize releases the statement handle. Calling it again is a no-op.
func (s *Stmt) Finalize() error {
	if s.state == stateFinalized {
		return nil
	}
	s.state = stateFinalized
	s.args = nil

	stmt := s.stmt
	s.stmt = nil
	if stmt == nil {
		return nil
	}
	if err := stmt.Close(); err != nil {
		return engineError("finalize", err)
	}
	return nil
}

// Finalized reports whether the handle has been released.
func (s *Stmt) Finalized() bool {
	return s.state == stateFinalized
}

// cleanup finalizes a statement that did not reach the explicit
// Finalize call, logging if that fails.
func (s *Stmt) cleanup() {
	if s.state == stateFinalized {
		return
	}
	if err := s.Finalize(); err != nil {
		s.diag.Report(err)
	}
}

// prepareAndBind validates q, compiles it and converts its values into
// positional arguments.
func (s *Stmt) prepareAndBind(ctx context.Context, q Query) error {
	if s.state != stateUnprepared {
		return ErrFinalized
	}
	if err := q.Validate(); err != nil {
		return err
	}

	stmt, err := s.conn.PrepareContext(ctx, q.Text())
	if err != nil {
		return engineError("prepare", err)
	}
	s.stmt = stmt
	s.state = statePrepared

	values := q.values
	args := make([]any, len(values))
	for i, v := range values {
		arg, err := v.driverValue()
		if err != nil {
			return engineError("bind", fmt.Errorf("parameter %d: %w", i+1, err))
		}
		args[i] = arg
	}
	s.args = args
	s.state = stateBound
	return nil
}

// decodeRows reads every row of rows into a Result.
func decodeRows(rows *sql.Rows) (*Result, error) {
	result := NewResult()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return result, nil
	}

	raw := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := NewRow()
		for i, name := range columns {
			v, err := decodeColumn(raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", name, err)
			}
			row.Add(name, v)
		}
		if !row.Empty() {
			result.Append(row)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// decodeColumn maps one driver value onto a Value by its runtime type.
//
// go-sqlite3 hands back int64, float64, string, []byte or nil per the
// cell's storage class. A time.Time or bool means the driver converted
// the cell by its declared type and the stored value is lost, so it is
// rejected rather than guessed back.
func decodeColumn(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Int(x), nil
	case float64:
		return Float(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	case bool, time.Time:
		return Value{}, fmt.Errorf("%w: %T", ErrConvertedColumn, v)
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}
