package sqlite

import "strings"

// Row maps column names to fields. Each name appears at most once; adding
// an existing name replaces its value but keeps its original position, so
// iteration follows the order columns were first added.
//
// The zero Row is empty and ready to use.
type Row struct {
	fields map[string]Field
	order  []string
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{}
}

// Add inserts or replaces the field name with value v.
// It returns r to allow chaining.
func (r *Row) Add(name string, v Value) *Row {
	return r.AddField(NewField(name, v))
}

// AddNull inserts or replaces name with a NULL value.
func (r *Row) AddNull(name string) *Row {
	return r.AddField(NullField(name))
}

// AddField inserts or replaces f under its own name.
func (r *Row) AddField(f Field) *Row {
	if r.fields == nil {
		r.fields = make(map[string]Field)
	}
	if _, ok := r.fields[f.name]; !ok {
		r.order = append(r.order, f.name)
	}
	r.fields[f.name] = f
	return r
}

// AddOptional adds name with *v when v is non-nil, and a NULL field
// otherwise.
func AddOptional[T Scalar](r *Row, name string, v *T) *Row {
	if v == nil {
		return r.AddNull(name)
	}
	return r.Add(name, FromOptional(v))
}

// Get returns the field stored under name. The boolean is false when the
// row has no such column; a SQL NULL column is present with a NULL value.
func (r *Row) Get(name string) (Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Has reports whether the row has a column called name.
func (r *Row) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Len returns the number of fields.
func (r *Row) Len() int {
	return len(r.order)
}

// Empty reports whether the row has no fields.
func (r *Row) Empty() bool {
	return len(r.order) == 0
}

// Names returns the column names in row order.
func (r *Row) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Fields returns the fields in row order.
func (r *Row) Fields() []Field {
	fields := make([]Field, 0, len(r.order))
	for _, name := range r.order {
		fields = append(fields, r.fields[name])
	}
	return fields
}

// Split decomposes the row into parallel name and value slices.
func (r *Row) Split() (names []string, values []Value) {
	if r.Empty() {
		return nil, nil
	}
	names = make([]string, 0, len(r.order))
	values = make([]Value, 0, len(r.order))
	for _, name := range r.order {
		names = append(names, name)
		values = append(values, r.fields[name].value)
	}
	return names, values
}

// Int64 returns the integer stored under name, or 0 if the column is
// missing or not an integer.
func (r *Row) Int64(name string) int64 {
	v, _ := r.fields[name].value.Int64If()
	return v
}

// Float64 returns the float stored under name, or 0.
func (r *Row) Float64(name string) float64 {
	v, _ := r.fields[name].value.Float64If()
	return v
}

// Str returns the text stored under name, or "".
func (r *Row) Str(name string) string {
	v, _ := r.fields[name].value.StrIf()
	return v
}

// Bytes returns a copy of the blob stored under name, or nil.
func (r *Row) Bytes(name string) []byte {
	v, _ := r.fields[name].value.BytesIf()
	return v
}

// Description joins the field descriptions with commas.
func (r *Row) Description() string {
	parts := make([]string, 0, len(r.order))
	for _, name := range r.order {
		parts = append(parts, r.fields[name].Description())
	}
	return strings.Join(parts, ",")
}

// String implements fmt.Stringer.
func (r *Row) String() string {
	return r.Description()
}
