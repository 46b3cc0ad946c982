// Package schema derives Cove types and bindings from protobuf
// descriptors.
//
// A constraint is attached to a message, to a field, or to the items,
// keys or values of a repeated or map field. The attachment point
// decides what the identifier input refers to; Bindings builds the
// matching schema for the compiler.
package schema

import (
	"fmt"
	"sort"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/enums"
	"github.com/ezachrisen/cove/value"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Target is the point a constraint is attached to.
type Target uint8

const (
	// Message constraints see the whole message as input.
	Message Target = iota
	// Field constraints see the field value.
	Field
	// RepeatedItem constraints run once per element of a repeated field.
	RepeatedItem
	// MapKey constraints run once per key of a map field.
	MapKey
	// MapValue constraints run once per value of a map field.
	MapValue
)

var targetNames = [...]string{
	Message:      "message",
	Field:        "field",
	RepeatedItem: "repeated_item",
	MapKey:       "map_key",
	MapValue:     "map_value",
}

func (t Target) String() string {
	if int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("target(%d)", t)
}

// ParseTarget returns the target with the given name.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return Field, nil
	}
	for i, n := range targetNames {
		if n == s {
			return Target(i), nil
		}
	}
	return 0, fmt.Errorf("unknown constraint target %q", s)
}

// Types converts descriptors to Cove types. Message types are built once
// and shared, so a message that refers to itself yields a cyclic type.
// A Types is not safe for concurrent use.
type Types struct {
	messages map[protoreflect.FullName]*cove.Message
}

// NewTypes returns an empty type cache.
func NewTypes() *Types {
	return &Types{messages: map[protoreflect.FullName]*cove.Message{}}
}

// TypeOf returns the type of a field, including its cardinality.
func TypeOf(fd protoreflect.FieldDescriptor) cove.Type {
	return NewTypes().Field(fd)
}

// MessageType returns the type of a message.
func MessageType(md protoreflect.MessageDescriptor) *cove.Message {
	return NewTypes().Message(md)
}

// Field returns the type of a field, including its cardinality.
func (ts *Types) Field(fd protoreflect.FieldDescriptor) cove.Type {
	switch {
	case fd.IsMap():
		return cove.Map{
			KeyType:   ts.scalar(fd.MapKey()),
			ValueType: ts.scalar(fd.MapValue()),
		}
	case fd.IsList():
		return cove.List{ValueType: ts.scalar(fd)}
	}
	return ts.scalar(fd)
}

// scalar returns the type of a single value of the field.
func (ts *Types) scalar(fd protoreflect.FieldDescriptor) cove.Type {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return cove.Bool{}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return cove.Int{}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return cove.UInt{}
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return cove.Double{}
	case protoreflect.StringKind:
		return cove.String{}
	case protoreflect.BytesKind:
		return cove.Bytes{}
	case protoreflect.EnumKind:
		return cove.Enum{Tag: string(fd.Enum().FullName())}
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return ts.Message(fd.Message())
	}
	return cove.Dyn{}
}

// Message returns the type of a message.
func (ts *Types) Message(md protoreflect.MessageDescriptor) *cove.Message {
	if m, ok := ts.messages[md.FullName()]; ok {
		return m
	}
	m := &cove.Message{Name: string(md.FullName()), Fields: map[string]cove.Type{}}
	ts.messages[md.FullName()] = m

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		m.Fields[string(fd.Name())] = ts.Field(fd)
	}
	return m
}

// Bindings returns the schema a constraint at target sees: input typed
// as the message md, or as the part of its field fd the target selects.
// fd is ignored for message targets.
func Bindings(md protoreflect.MessageDescriptor, fd protoreflect.FieldDescriptor, target Target) (*cove.Schema, error) {
	return NewTypes().Bindings(md, fd, target)
}

// Bindings is like the package level Bindings, sharing the cache of ts.
func (ts *Types) Bindings(md protoreflect.MessageDescriptor, fd protoreflect.FieldDescriptor, target Target) (*cove.Schema, error) {
	id := string(md.FullName())
	if target != Message {
		if fd == nil {
			return nil, fmt.Errorf("%s: %s constraint needs a field", id, target)
		}
		id = string(fd.FullName())
	}

	var input cove.Type
	switch target {
	case Message:
		input = ts.Message(md)
	case Field:
		input = ts.Field(fd)
	case RepeatedItem:
		if !fd.IsList() {
			return nil, fmt.Errorf("%s: %s constraint on a field that is not repeated", id, target)
		}
		input = ts.scalar(fd)
	case MapKey, MapValue:
		if !fd.IsMap() {
			return nil, fmt.Errorf("%s: %s constraint on a field that is not a map", id, target)
		}
		if target == MapKey {
			input = ts.scalar(fd.MapKey())
		} else {
			input = ts.scalar(fd.MapValue())
		}
	default:
		return nil, fmt.Errorf("%s: unknown constraint target %s", id, target)
	}

	return &cove.Schema{
		ID:       id,
		Name:     target.String(),
		Elements: []cove.DataElement{{Name: cove.InputKey, Type: input}},
	}, nil
}

// Enums returns a registry holding every enum declared in files.
func Enums(files *protoregistry.Files) *enums.Registry {
	r := enums.New()
	enums.RegisterFiles(r, files)
	return r
}

// Values converts a message to the value the compiler's message types
// describe: a map from field name to field value. Every declared field
// is present; unset message fields are null.
func Values(m protoreflect.Message) value.Value {
	fields := m.Descriptor().Fields()
	entries := make([]value.Entry, 0, fields.Len())
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		var v value.Value
		switch {
		case fd.Message() != nil && !fd.IsList() && !fd.IsMap() && !m.Has(fd):
			v = value.Null()
		default:
			v = fieldValue(fd, m.Get(fd))
		}
		entries = append(entries, value.Entry{Key: value.String(string(fd.Name())), Value: v})
	}
	return value.MustMap(entries...)
}

func fieldValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) value.Value {
	switch {
	case fd.IsMap():
		mv := v.Map()
		entries := make([]value.Entry, 0, mv.Len())
		mv.Range(func(k protoreflect.MapKey, x protoreflect.Value) bool {
			entries = append(entries, value.Entry{
				Key:   scalarValue(fd.MapKey(), k.Value()),
				Value: scalarValue(fd.MapValue(), x),
			})
			return true
		})
		// Range order is unspecified.
		sort.Slice(entries, func(i, j int) bool {
			c, _ := value.Compare(entries[i].Key, entries[j].Key)
			return c < 0
		})
		return value.MustMap(entries...)
	case fd.IsList():
		l := v.List()
		elems := make([]value.Value, l.Len())
		for i := range elems {
			elems[i] = scalarValue(fd, l.Get(i))
		}
		return value.List(elems...)
	}
	return scalarValue(fd, v)
}

func scalarValue(fd protoreflect.FieldDescriptor, v protoreflect.Value) value.Value {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return value.Bool(v.Bool())
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return value.Int(v.Int())
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return value.Uint(v.Uint())
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return value.Double(v.Float())
	case protoreflect.StringKind:
		return value.String(v.String())
	case protoreflect.BytesKind:
		return value.Bytes(v.Bytes())
	case protoreflect.EnumKind:
		return value.Enum(string(fd.Enum().FullName()), int32(v.Enum()))
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return Values(v.Message())
	}
	return value.Null()
}
