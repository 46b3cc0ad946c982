package value

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ezachrisen/cove"
)

// Size returns the length of a string or bytes value in bytes, or the
// number of elements of a list or map.
func Size(v Value) (Value, error) {
	switch v.kind {
	case cove.StringKind, cove.BytesKind:
		return Int(int64(len(v.s))), nil
	case cove.ListKind:
		return Int(int64(len(v.l))), nil
	case cove.MapKind:
		return Int(int64(len(v.m))), nil
	}
	return Value{}, unsupported("size", v)
}

// Contains reports whether container holds item: an element of a list, a
// key of a map, or a substring of a string or bytes value. Strings and
// bytes may be mixed.
func Contains(container, item Value) (Value, error) {
	switch container.kind {
	case cove.ListKind:
		for _, e := range container.l {
			if Equal(e, item) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case cove.MapKind:
		_, ok := container.Get(item)
		return Bool(ok), nil
	case cove.StringKind, cove.BytesKind:
		if item.kind != cove.StringKind && item.kind != cove.BytesKind {
			return Value{}, unsupported("contains", container, item)
		}
		return Bool(strings.Contains(container.s, item.s)), nil
	}
	return Value{}, unsupported("contains", container, item)
}

// In reports whether item is in container. It is Contains with the
// operands swapped, as written by the in operator.
func In(item, container Value) (Value, error) {
	return Contains(container, item)
}

// StartsWith reports whether a string or bytes value begins with prefix.
func StartsWith(v, prefix Value) (Value, error) {
	if !textual(v) || !textual(prefix) {
		return Value{}, unsupported("startsWith", v, prefix)
	}
	return Bool(strings.HasPrefix(v.s, prefix.s)), nil
}

// EndsWith reports whether a string or bytes value ends with suffix.
func EndsWith(v, suffix Value) (Value, error) {
	if !textual(v) || !textual(suffix) {
		return Value{}, unsupported("endsWith", v, suffix)
	}
	return Bool(strings.HasSuffix(v.s, suffix.s)), nil
}

// Matches reports whether a string or bytes value matches re. Bytes that
// are not valid UTF-8 never match.
func Matches(v Value, re *regexp.Regexp) (Value, error) {
	if !textual(v) {
		return Value{}, unsupported("matches", v)
	}
	if v.kind == cove.BytesKind && !utf8.ValidString(v.s) {
		return Bool(false), nil
	}
	return Bool(re.MatchString(v.s)), nil
}

// Text returns the UTF-8 text of a string value, or of a bytes value that
// holds valid UTF-8.
func Text(v Value) (string, bool) {
	switch v.kind {
	case cove.StringKind:
		return v.s, true
	case cove.BytesKind:
		return v.s, utf8.ValidString(v.s)
	}
	return "", false
}

func textual(v Value) bool {
	return v.kind == cove.StringKind || v.kind == cove.BytesKind
}

// Index returns container[key]: the element of a list at an int or uint
// position, or the value stored under key in a map.
func Index(container, key Value) (Value, error) {
	switch container.kind {
	case cove.ListKind:
		var i int64
		switch key.kind {
		case cove.IntKind:
			i = key.i
		case cove.UintKind:
			if key.u > uint64(len(container.l)) {
				return Value{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, key.u)
			}
			i = int64(key.u)
		default:
			return Value{}, unsupported("[]", container, key)
		}
		if i < 0 || i >= int64(len(container.l)) {
			return Value{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
		}
		return container.l[i], nil
	case cove.MapKind:
		v, ok := container.Get(key)
		if !ok {
			return Value{}, fmt.Errorf("%w: %s", ErrNoSuchKey, key)
		}
		return v, nil
	}
	return Value{}, unsupported("[]", container, key)
}

// Field returns the field of a message value. Messages are represented as
// maps keyed by field name.
func Field(v Value, name string) (Value, error) {
	if v.kind != cove.MapKind {
		return Value{}, unsupported("."+name, v)
	}
	f, ok := v.Get(String(name))
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrNoSuchKey, name)
	}
	return f, nil
}

// Iter returns the items a comprehension visits: the elements of a list,
// or for a map each entry as a [key, value] pair.
func Iter(v Value) ([]Value, error) {
	switch v.kind {
	case cove.ListKind:
		return v.Elems(), nil
	case cove.MapKind:
		items := make([]Value, len(v.m))
		for i, e := range v.m {
			items[i] = List(e.Key, e.Value)
		}
		return items, nil
	}
	return nil, unsupported("iterate", v)
}
