package sqlite

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the active variant of a Value.
type Kind uint8

// Value variants. They mirror SQLite's five storage classes.
const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// DateTimeFormat is the layout SQLite's DATETIME() function produces.
// time.Time values are stored as text in this layout.
const DateTimeFormat = "2006-01-02 15:04:05.999999999"

// Integer is the set of Go integer types that always fit in an int64.
// uint, uint64 and uintptr go through From, which rejects values above
// math.MaxInt64.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32
}

// Floating is the set of Go floating-point types a Value can be built from.
type Floating interface {
	~float32 | ~float64
}

// Scalar is the set of Go types that map onto exactly one Value variant.
type Scalar interface {
	Integer | Floating | ~string | ~[]byte | ~bool
}

// Value is one SQLite cell: NULL, a 64-bit integer, a double, UTF-8 text
// or a blob. Exactly one variant is active. The zero Value is NULL.
//
// Values are immutable; blob payloads are copied in and out.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Null returns the NULL value.
func Null() Value {
	return Value{}
}

// Int returns an integer value.
func Int[T Integer](v T) Value {
	return Value{kind: KindInteger, i: int64(v)}
}

// Float returns a floating-point value.
func Float[T Floating](v T) Value {
	return Value{kind: KindFloat, f: float64(v)}
}

// Text returns a text value.
func Text(s string) Value {
	return Value{kind: KindText, s: s}
}

// Blob returns a blob value holding a copy of b.
// A nil slice produces an empty blob, not NULL.
func Blob(b []byte) Value {
	c := make([]byte, len(b))
	copy(c, b)
	return Value{kind: KindBlob, b: c}
}

// FromOptional maps a nil pointer to NULL and a non-nil pointer to the
// variant matching the pointee.
func FromOptional[T Scalar](v *T) Value {
	if v == nil {
		return Null()
	}
	// Scalar guarantees From succeeds.
	val, _ := From(*v) //nolint:errcheck // Scalar types always convert
	return val
}

// From converts a bindable Go value into a Value.
//
// Supported inputs: nil, Value, all integer and float kinds, bool (0/1),
// string, []byte, time.Time (text in DateTimeFormat) and pointers to any
// of these (nil pointers become NULL). Named types are accepted by their
// underlying kind.
//
// Returns ErrIntegerOverflow for an unsigned value above math.MaxInt64
// and ErrUnsupportedType for anything else.
func From(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case int:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(x), nil
	case string:
		return Text(x), nil
	case []byte:
		return Blob(x), nil
	case bool:
		return boolValue(x), nil
	case time.Time:
		return Text(x.Format(DateTimeFormat)), nil
	}
	return fromReflect(reflect.ValueOf(v))
}

// fromReflect handles named types and pointers.
func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return From(rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d", ErrIntegerOverflow, u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Bool:
		return boolValue(rv.Bool()), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Blob(rv.Bytes()), nil
		}
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

func boolValue(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Kind returns the active variant.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Int64 returns the integer payload. The caller must have checked Kind;
// a mismatched variant yields 0.
func (v Value) Int64() int64 {
	return v.i
}

// Float64 returns the float payload, or 0 on a mismatched variant.
func (v Value) Float64() float64 {
	return v.f
}

// Str returns the text payload, or "" on a mismatched variant.
func (v Value) Str() string {
	return v.s
}

// Bytes returns a copy of the blob payload, or nil on a mismatched variant.
func (v Value) Bytes() []byte {
	if v.kind != KindBlob {
		return nil
	}
	c := make([]byte, len(v.b))
	copy(c, v.b)
	return c
}

// Int64If returns the integer payload and true if v is an integer.
func (v Value) Int64If() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// Float64If returns the float payload and true if v is a float.
func (v Value) Float64If() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// StrIf returns the text payload and true if v is text.
func (v Value) StrIf() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.s, true
}

// BytesIf returns a copy of the blob payload and true if v is a blob.
func (v Value) BytesIf() ([]byte, bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return v.Bytes(), true
}

// Equal reports whether both values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBlob:
		return string(v.b) == string(o.b)
	default:
		return true
	}
}

// Description renders v for diagnostics:
// NULL, int64{42}, double{1.5}, string{abc} or blob{0x01,0xff}.
func (v Value) Description() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return "int64{" + strconv.FormatInt(v.i, 10) + "}"
	case KindFloat:
		return "double{" + strconv.FormatFloat(v.f, 'g', -1, 64) + "}"
	case KindText:
		return "string{" + v.s + "}"
	case KindBlob:
		return "blob{" + hexBytes(v.b) + "}"
	default:
		return "?"
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	return v.Description()
}

// driverValue returns the payload in the form database/sql binds.
func (v Value) driverValue() (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindInteger:
		return v.i, nil
	case KindFloat:
		return v.f, nil
	case KindText:
		return v.s, nil
	case KindBlob:
		return v.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, v.kind)
	}
}

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("0x%02x", c)
	}
	return strings.Join(parts, ",")
}
