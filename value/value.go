// Package value implements the Cove value model: the closed set of
// variants that constant folding and the runtime both operate on.
//
// A Value is exactly one of null, bool, int, uint, double, string, bytes,
// list, map or enum. The zero Value is null. Values are immutable; the
// constructors copy their inputs and the accessors return copies where the
// underlying storage could otherwise be modified.
//
// All operations in this package are pure. Conversions that cannot
// produce a result return a null Value rather than an error; errors are
// reserved for operations that are undefined for the variants involved
// (for example the size of an int) and for arithmetic faults.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ezachrisen/cove"
)

// Value is a tagged union of the Cove value variants.
type Value struct {
	kind cove.Kind
	b    bool
	i    int64   // int, enum number
	u    uint64  // uint
	d    float64 // double
	s    string  // string, bytes contents, enum tag
	l    []Value
	m    []Entry
}

// Entry is a single key/value pair of a map.
type Entry struct {
	Key   Value
	Value Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a bool value.
func Bool(b bool) Value { return Value{kind: cove.BoolKind, b: b} }

// Int returns a signed integer value.
func Int(i int64) Value { return Value{kind: cove.IntKind, i: i} }

// Uint returns an unsigned integer value.
func Uint(u uint64) Value { return Value{kind: cove.UintKind, u: u} }

// Double returns a floating point value.
func Double(d float64) Value { return Value{kind: cove.DoubleKind, d: d} }

// String returns a string value.
func String(s string) Value { return Value{kind: cove.StringKind, s: s} }

// Bytes returns a bytes value holding a copy of b.
func Bytes(b []byte) Value { return Value{kind: cove.BytesKind, s: string(b)} }

// Enum returns an enum value of the enum type identified by tag.
func Enum(tag string, number int32) Value {
	return Value{kind: cove.EnumKind, s: tag, i: int64(number)}
}

// List returns a list value holding the elements in order.
func List(elems ...Value) Value {
	l := make([]Value, len(elems))
	copy(l, elems)
	return Value{kind: cove.ListKind, l: l}
}

// Map returns a map value. Keys must be unique under Equal; a repeated
// key is an error.
func Map(entries ...Entry) (Value, error) {
	m := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !validKey(e.Key) {
			return Value{}, fmt.Errorf("%w: %s is not a valid map key", ErrUnsupported, e.Key.Kind())
		}
		if _, ok := find(m, e.Key); ok {
			return Value{}, fmt.Errorf("%w: %s", ErrDuplicateKey, e.Key)
		}
		m = append(m, e)
	}
	return Value{kind: cove.MapKind, m: m}, nil
}

// MustMap is like Map but panics on duplicate keys. It is intended for
// literals in tests and generated code.
func MustMap(entries ...Entry) Value {
	v, err := Map(entries...)
	if err != nil {
		panic(err)
	}
	return v
}

func validKey(k Value) bool {
	switch k.kind {
	case cove.BoolKind, cove.IntKind, cove.UintKind, cove.StringKind, cove.BytesKind, cove.EnumKind:
		return true
	}
	return false
}

func find(m []Entry, key Value) (int, bool) {
	for i, e := range m {
		if Equal(e.Key, key) {
			return i, true
		}
	}
	return -1, false
}

// Kind returns the variant of the value.
func (v Value) Kind() cove.Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == cove.NullKind }

// AsBool returns the bool held by v.
func (v Value) AsBool() bool { return v.b }

// AsInt returns the int held by v, or the number of an enum.
func (v Value) AsInt() int64 { return v.i }

// AsUint returns the uint held by v.
func (v Value) AsUint() uint64 { return v.u }

// AsDouble returns the double held by v.
func (v Value) AsDouble() float64 { return v.d }

// AsString returns the string held by v. For bytes values it returns the
// raw contents, which may not be valid UTF-8.
func (v Value) AsString() string { return v.s }

// AsBytes returns a copy of the bytes held by v.
func (v Value) AsBytes() []byte { return []byte(v.s) }

// EnumTag returns the enum type tag of an enum value.
func (v Value) EnumTag() string {
	if v.kind != cove.EnumKind {
		return ""
	}
	return v.s
}

// EnumNumber returns the numeric tag of an enum value.
func (v Value) EnumNumber() int32 { return int32(v.i) }

// Elems returns the elements of a list.
func (v Value) Elems() []Value {
	l := make([]Value, len(v.l))
	copy(l, v.l)
	return l
}

// Entries returns the entries of a map in insertion order.
func (v Value) Entries() []Entry {
	m := make([]Entry, len(v.m))
	copy(m, v.m)
	return m
}

// Len returns the number of elements of a list or entries of a map.
func (v Value) Len() int {
	switch v.kind {
	case cove.ListKind:
		return len(v.l)
	case cove.MapKind:
		return len(v.m)
	}
	return 0
}

// Get returns the value stored under key in a map.
func (v Value) Get(key Value) (Value, bool) {
	if v.kind != cove.MapKind {
		return Value{}, false
	}
	i, ok := find(v.m, key)
	if !ok {
		return Value{}, false
	}
	return v.m[i].Value, true
}

// Type returns the static type of the value. Lists and maps whose
// elements do not share a type are typed with dyn elements.
func (v Value) Type() cove.Type {
	switch v.kind {
	case cove.NullKind:
		return cove.Null{}
	case cove.BoolKind:
		return cove.Bool{}
	case cove.IntKind:
		return cove.Int{}
	case cove.UintKind:
		return cove.UInt{}
	case cove.DoubleKind:
		return cove.Double{}
	case cove.StringKind:
		return cove.String{}
	case cove.BytesKind:
		return cove.Bytes{}
	case cove.EnumKind:
		return cove.Enum{Tag: v.s}
	case cove.ListKind:
		var elem cove.Type
		for i, e := range v.l {
			if i == 0 {
				elem = e.Type()
				continue
			}
			elem = cove.Join(elem, e.Type())
		}
		if elem == nil {
			elem = cove.Dyn{}
		}
		return cove.List{ValueType: elem}
	case cove.MapKind:
		var key, val cove.Type
		for i, e := range v.m {
			if i == 0 {
				key, val = e.Key.Type(), e.Value.Type()
				continue
			}
			key = cove.Join(key, e.Key.Type())
			val = cove.Join(val, e.Value.Type())
		}
		if key == nil {
			key, val = cove.Dyn{}, cove.Dyn{}
		}
		return cove.Map{KeyType: key, ValueType: val}
	}
	return cove.Dyn{}
}

// String returns a CEL-like literal representation of the value, used in
// diagnostics and printed expression trees.
func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb)
	return sb.String()
}

func (v Value) format(sb *strings.Builder) {
	switch v.kind {
	case cove.NullKind:
		sb.WriteString("null")
	case cove.BoolKind:
		sb.WriteString(strconv.FormatBool(v.b))
	case cove.IntKind:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case cove.UintKind:
		sb.WriteString(strconv.FormatUint(v.u, 10))
		sb.WriteString("u")
	case cove.DoubleKind:
		s := formatDouble(v.d)
		sb.WriteString(s)
		if !math.IsInf(v.d, 0) && !math.IsNaN(v.d) && !strings.ContainsAny(s, ".e") {
			sb.WriteString(".0")
		}
	case cove.StringKind:
		sb.WriteString(strconv.Quote(v.s))
	case cove.BytesKind:
		sb.WriteString("b")
		sb.WriteString(strconv.Quote(v.s))
	case cove.EnumKind:
		fmt.Fprintf(sb, "%s(%d)", v.s, v.i)
	case cove.ListKind:
		sb.WriteString("[")
		for i, e := range v.l {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.format(sb)
		}
		sb.WriteString("]")
	case cove.MapKind:
		sb.WriteString("{")
		for i, e := range v.m {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.Key.format(sb)
			sb.WriteString(": ")
			e.Value.format(sb)
		}
		sb.WriteString("}")
	}
}

func formatDouble(d float64) string {
	return strconv.FormatFloat(d, 'g', -1, 64)
}
