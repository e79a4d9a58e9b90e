package sqlite

import (
	"fmt"
	"strings"
)

// Query is SQL text with ? placeholders plus the values bound to them,
// in placeholder order. A Query is immutable; Bind returns a new one.
type Query struct {
	text   string
	values []Value
	err    error
}

// NewQuery builds a query from text and arguments. Each argument is
// converted with From; a conversion failure is kept and reported by
// Validate, so construction itself never fails.
//
// Example:
//
//	q := sqlite.NewQuery("SELECT * FROM note WHERE pid=? AND title=?", 3, "todo")
func NewQuery(text string, args ...any) Query {
	q := Query{text: text, values: make([]Value, 0, len(args))}
	for i, arg := range args {
		v, err := From(arg)
		if err != nil && q.err == nil {
			q.err = fmt.Errorf("argument %d: %w", i+1, err)
		}
		q.values = append(q.values, v)
	}
	return q
}

// Bind returns a copy of q with arg appended to its values.
func (q Query) Bind(arg any) Query {
	values := make([]Value, len(q.values), len(q.values)+1)
	copy(values, q.values)

	next := Query{text: q.text, err: q.err}
	v, err := From(arg)
	if err != nil && next.err == nil {
		next.err = fmt.Errorf("argument %d: %w", len(values)+1, err)
	}
	next.values = append(values, v)
	return next
}

// Text returns the SQL text.
func (q Query) Text() string {
	return q.text
}

// Values returns a copy of the bound values.
func (q Query) Values() []Value {
	values := make([]Value, len(q.values))
	copy(values, q.values)
	return values
}

// Placeholders returns the number of ? characters in the text.
// Every ? counts, including one inside a string literal.
func (q Query) Placeholders() int {
	return strings.Count(q.text, "?")
}

// Validate checks that every argument converted and that the number of
// placeholders equals the number of values.
func (q Query) Validate() error {
	if q.err != nil {
		return q.err
	}
	if n := q.Placeholders(); n != len(q.values) {
		return fmt.Errorf("%w (%d placeholders, %d arguments)", ErrArity, n, len(q.values))
	}
	return nil
}

// Valid reports whether Validate succeeds. It reports nothing itself;
// a Stmt reports the Validate error when the query is executed, and
// Check reports it on demand.
func (q Query) Valid() bool {
	return q.Validate() == nil
}

// Check is Valid that also reports a failure, such as an arity mismatch,
// to diag with the caller's location.
func (q Query) Check(diag *Diagnostics) bool {
	err := q.Validate()
	if err != nil && diag != nil {
		diag.report(2, err)
	}
	return err == nil
}

// String renders the query text followed by its value descriptions.
func (q Query) String() string {
	if len(q.values) == 0 {
		return q.text
	}
	parts := make([]string, len(q.values))
	for i, v := range q.values {
		parts[i] = v.Description()
	}
	return q.text + " [" + strings.Join(parts, ",") + "]"
}
