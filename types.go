package cove

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the variant of a Type. Kinds are what the function
// registry dispatches on; parameterized types (lists, maps, enums,
// messages) share a single kind each.
type Kind uint8

const (
	NullKind Kind = iota
	BoolKind
	IntKind
	UintKind
	DoubleKind
	StringKind
	BytesKind
	ListKind
	MapKind
	EnumKind
	MessageKind
	DynKind
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{
	NullKind, BoolKind, IntKind, UintKind, DoubleKind, StringKind,
	BytesKind, ListKind, MapKind, EnumKind, MessageKind, DynKind,
}

var kindNames = [...]string{
	NullKind:    "null",
	BoolKind:    "bool",
	IntKind:     "int",
	UintKind:    "uint",
	DoubleKind:  "double",
	StringKind:  "string",
	BytesKind:   "bytes",
	ListKind:    "list",
	MapKind:     "map",
	EnumKind:    "enum",
	MessageKind: "message",
	DynKind:     "dyn",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Numeric reports whether k is one of int, uint or double.
func (k Kind) Numeric() bool {
	return k == IntKind || k == UintKind || k == DoubleKind
}

// Type defines a static type in the Cove type system.
// Types describe schema fields and the results of sub-expressions
// during compilation; values carry their own kind at runtime.
type Type interface {
	// Implements the stringer interface
	String() string

	// Kind returns the dispatch kind of the type.
	Kind() Kind
}

// Null is the type of the null literal.
type Null struct{}

// Bool defines a true/false type.
type Bool struct{}

// Int defines a 64-bit signed integer type.
type Int struct{}

// UInt defines a 64-bit unsigned integer type.
type UInt struct{}

// Double defines a 64-bit floating point type.
type Double struct{}

// String defines a UTF-8 string type.
type String struct{}

// Bytes defines a byte sequence type.
type Bytes struct{}

// Dyn is the type of a value whose variant is only known at runtime.
// Operations on dyn operands are always resolved to their dynamic
// overloads.
type Dyn struct{}

// List defines a type representing an ordered sequence of values
type List struct {
	ValueType Type // the type of element stored in the list
}

// Map defines a type representing a map of keys and values.
type Map struct {
	KeyType   Type // the type of the map key
	ValueType Type // the type of the value stored in the map
}

// Enum defines an enumeration type. The tag is the stable identifier
// used to find the enum's vtable, usually the fully qualified protobuf
// name.
type Enum struct {
	Tag string
}

// Message defines a structured type with named fields. Messages may
// refer to themselves through their fields.
type Message struct {
	Name   string
	Fields map[string]Type
}

// Field returns the type of the named field.
func (m *Message) Field(name string) (Type, bool) {
	if m == nil {
		return nil, false
	}
	t, ok := m.Fields[name]
	return t, ok
}

// FieldNames returns the message's field names in sorted order.
func (m *Message) FieldNames() []string {
	names := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Kind Methods
func (Null) Kind() Kind     { return NullKind }
func (Bool) Kind() Kind     { return BoolKind }
func (Int) Kind() Kind      { return IntKind }
func (UInt) Kind() Kind     { return UintKind }
func (Double) Kind() Kind   { return DoubleKind }
func (String) Kind() Kind   { return StringKind }
func (Bytes) Kind() Kind    { return BytesKind }
func (Dyn) Kind() Kind      { return DynKind }
func (List) Kind() Kind     { return ListKind }
func (Map) Kind() Kind      { return MapKind }
func (Enum) Kind() Kind     { return EnumKind }
func (*Message) Kind() Kind { return MessageKind }

// String Methods
func (Null) String() string       { return "null" }
func (Bool) String() string       { return "bool" }
func (Int) String() string        { return "int" }
func (UInt) String() string       { return "uint" }
func (Double) String() string     { return "double" }
func (String) String() string     { return "string" }
func (Bytes) String() string      { return "bytes" }
func (Dyn) String() string        { return "dyn" }
func (t List) String() string     { return fmt.Sprintf("[]%v", orDyn(t.ValueType)) }
func (t Map) String() string      { return fmt.Sprintf("map[%s]%s", orDyn(t.KeyType), orDyn(t.ValueType)) }
func (t Enum) String() string     { return "enum(" + t.Tag + ")" }
func (m *Message) String() string { return "message(" + m.Name + ")" }

func orDyn(t Type) Type {
	if t == nil {
		return Dyn{}
	}
	return t
}

// Elem returns the element type of a list, or dyn for anything else.
func Elem(t Type) Type {
	if l, ok := t.(List); ok && l.ValueType != nil {
		return l.ValueType
	}
	return Dyn{}
}

// KeyValue returns the key and value types of a map, or dyn for anything else.
func KeyValue(t Type) (Type, Type) {
	if m, ok := t.(Map); ok {
		return orDyn(m.KeyType), orDyn(m.ValueType)
	}
	return Dyn{}, Dyn{}
}

// Equal reports whether two static types are identical. Messages
// compare by name, which keeps recursive messages finite.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case List:
		return Equal(orDyn(x.ValueType), orDyn(b.(List).ValueType))
	case Map:
		y := b.(Map)
		return Equal(orDyn(x.KeyType), orDyn(y.KeyType)) && Equal(orDyn(x.ValueType), orDyn(y.ValueType))
	case Enum:
		return x.Tag == b.(Enum).Tag
	case *Message:
		return x.Name == b.(*Message).Name
	}
	return true
}

// Join returns the common type of a and b: the type itself when they are
// equal and dyn otherwise. It is used to type list literals and the
// branches of a conditional.
func Join(a, b Type) Type {
	if Equal(a, b) {
		return a
	}
	return Dyn{}
}

// Signature formats a function signature for diagnostics,
// e.g. "string.startsWith(int)" or "size(list)".
func Signature(function string, member bool, args []Type) string {
	var sb strings.Builder
	rest := args
	if member && len(args) > 0 {
		sb.WriteString(args[0].String())
		sb.WriteString(".")
		rest = args[1:]
	}
	sb.WriteString(function)
	sb.WriteString("(")
	for i, a := range rest {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteString(")")
	return sb.String()
}
