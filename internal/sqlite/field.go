package sqlite

// Field is a named Value: one column of a Row, or a named placeholder
// when built with NullField.
type Field struct {
	name  string
	value Value
}

// NewField returns a field holding v.
func NewField(name string, v Value) Field {
	return Field{name: name, value: v}
}

// NullField returns a named field with a NULL value.
func NullField(name string) Field {
	return Field{name: name}
}

// Name returns the column name.
func (f Field) Name() string {
	return f.name
}

// Value returns the field's value.
func (f Field) Value() Value {
	return f.value
}

// Description renders the field as name:[value-description].
func (f Field) Description() string {
	return f.name + ":[" + f.value.Description() + "]"
}

// String implements fmt.Stringer.
func (f Field) String() string {
	return f.Description()
}
