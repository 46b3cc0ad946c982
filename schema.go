package cove

import (
	"fmt"
	"strings"
)

// Schema defines the identifiers and their data types available to a
// constraint expression. Identifiers not declared in the schema (or bound
// as constants by the caller) are reported as unknown during compilation.
type Schema struct {
	// Identifier for the schema. Useful for the hosting application; not used by Cove internally.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// User-friendly name for the schema
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// A user-friendly description of the schema
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// List of data elements supported by this schema
	Elements []DataElement `json:"elements,omitempty" yaml:"elements,omitempty"`
}

func (s *Schema) String() string {
	x := strings.Builder{}
	x.WriteString(s.ID)
	if s.Name != "" {
		x.WriteString("  '" + s.Name + "'")
	}
	x.WriteString("\n")
	for _, e := range s.Elements {
		e := e
		x.WriteString(e.String())
		x.WriteString("\n")
	}

	return x.String()
}

// Lookup returns the element with the given name.
func (s *Schema) Lookup(name string) (DataElement, bool) {
	for _, e := range s.Elements {
		if e.Name == name {
			return e, true
		}
	}
	return DataElement{}, false
}

func (e *DataElement) String() string {
	return fmt.Sprintf("  %s (%s)", e.Name, e.Type)
}

// DataElement defines a named variable in a schema
type DataElement struct {
	// Short, user-friendly name of the variable. This is the name
	// that will be used in expressions to refer to data passed in.
	//
	// RESERVED NAMES:
	//   ThisKey, InputKey (see const)
	Name string `json:"name"`

	// One of the Type interface defined.
	Type Type `json:"type"`

	// Optional description of the type.
	Description string `json:"description"`
}

const (
	// ThisKey is the identifier bound to the value a constraint is
	// attached to, or to the constraint's configured argument.
	ThisKey = "this"

	// InputKey is the identifier bound to the message or field being
	// validated.
	InputKey = "input"
)

// ParseType parses a string that represents a Cove type and returns the type.
// The primitive types are their lower-case names (string, int, uint, etc.)
// Maps and lists look like Go maps and slices: map[string]double and []string.
// Enums and messages name their fully qualified type: enum(pkg.Kind), message(pkg.Person).
func ParseType(t string) (Type, error) {
	t = strings.TrimSpace(t)

	if strings.HasPrefix(t, "map[") {
		return parseMap(t)
	}

	if strings.HasPrefix(t, "[]") {
		return parseList(t)
	}

	if strings.HasPrefix(t, "enum(") {
		name, err := parseParen(t)
		if err != nil {
			return nil, err
		}
		return Enum{Tag: name}, nil
	}

	if strings.HasPrefix(t, "message(") {
		name, err := parseParen(t)
		if err != nil {
			return nil, err
		}
		return &Message{Name: name, Fields: map[string]Type{}}, nil
	}

	switch t {
	case "string":
		return String{}, nil
	case "int":
		return Int{}, nil
	case "uint":
		return UInt{}, nil
	case "double", "float":
		return Double{}, nil
	case "bool":
		return Bool{}, nil
	case "bytes":
		return Bytes{}, nil
	case "null":
		return Null{}, nil
	case "dyn", "any":
		return Dyn{}, nil
	default:
		return nil, fmt.Errorf("unknown type: %q", t)
	}
}

// parseMap parses a string and returns a Cove map type.
// The string must be in the form map[<keytype>]<valuetype>,
// where the value type may itself be a map or a list.
func parseMap(t string) (Type, error) {
	rest := strings.TrimPrefix(t, "map[")
	depth := 1
	end := -1
	for i, r := range rest {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		}
		if depth == 0 {
			end = i
			break
		}
	}

	if end <= 0 || end == len(rest)-1 {
		return nil, fmt.Errorf("bad map specification: %q", t)
	}

	keyType, err := ParseType(rest[:end])
	if err != nil {
		return nil, err
	}

	valueType, err := ParseType(rest[end+1:])
	if err != nil {
		return nil, err
	}

	return Map{
		KeyType:   keyType,
		ValueType: valueType,
	}, nil
}

// parseList parses a string and returns a Cove list type.
// The string must be in the form []<valuetype>
func parseList(t string) (Type, error) {
	valueType, err := ParseType(strings.TrimPrefix(t, "[]"))
	if err != nil {
		return nil, err
	}

	return List{
		ValueType: valueType,
	}, nil
}

// parseParen returns the name inside kind(<name>).
func parseParen(t string) (string, error) {
	startParen := strings.Index(t, "(")
	endParen := strings.LastIndex(t, ")")

	if startParen == -1 || endParen != len(t)-1 || endParen-startParen == 1 {
		return "", fmt.Errorf("bad type specification: %q", t)
	}

	return strings.TrimSpace(t[startParen+1 : endParen]), nil
}
