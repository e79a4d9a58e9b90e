package sqlite

import "iter"

// Result is the ordered set of rows produced by one SELECT, in the order
// the engine returned them. An empty Result means the query ran and
// matched nothing; a failed query yields no Result at all.
type Result struct {
	rows []*Row
}

// NewResult returns a result holding rows.
func NewResult(rows ...*Row) *Result {
	return &Result{rows: rows}
}

// Append adds row to the end of the result.
func (r *Result) Append(row *Row) {
	r.rows = append(r.rows, row)
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.rows)
}

// Empty reports whether the result has no rows.
func (r *Result) Empty() bool {
	return len(r.rows) == 0
}

// At returns the i-th row. It panics if i is out of range, like a slice.
func (r *Result) At(i int) *Row {
	return r.rows[i]
}

// First returns the first row, if any.
func (r *Result) First() (*Row, bool) {
	if len(r.rows) == 0 {
		return nil, false
	}
	return r.rows[0], true
}

// Rows returns the rows as a slice. The slice is a copy; the rows are not.
func (r *Result) Rows() []*Row {
	rows := make([]*Row, len(r.rows))
	copy(rows, r.rows)
	return rows
}

// All iterates over the rows with their index.
func (r *Result) All() iter.Seq2[int, *Row] {
	return func(yield func(int, *Row) bool) {
		for i, row := range r.rows {
			if !yield(i, row) {
				return
			}
		}
	}
}
