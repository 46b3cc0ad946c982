package value

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ezachrisen/cove"
)

// Enums resolves enum numbers to their names. It is satisfied by the enum
// reflection registry; a nil Enums falls back to printing numbers.
type Enums interface {
	EnumName(tag string, number int32) (string, bool)
}

// EnumNumbers resolves enum names to their numbers. It is satisfied by
// the enum reflection registry.
type EnumNumbers interface {
	EnumNumber(tag, name string) (int32, bool)
}

// ToEnum converts v to an enum of the type tag. Numbers outside the
// int32 range yield null, as do names that the enum does not declare or
// that cannot be looked up because names is nil. An enum keeps its
// number and takes the new tag.
func ToEnum(v Value, tag string, names EnumNumbers) (Value, error) {
	switch v.kind {
	case cove.IntKind:
		if v.i < math.MinInt32 || v.i > math.MaxInt32 {
			return Null(), nil
		}
		return Enum(tag, int32(v.i)), nil
	case cove.UintKind:
		if v.u > math.MaxInt32 {
			return Null(), nil
		}
		return Enum(tag, int32(v.u)), nil
	case cove.EnumKind:
		return Enum(tag, int32(v.i)), nil
	case cove.StringKind:
		if names == nil {
			return Null(), nil
		}
		n, ok := names.EnumNumber(tag, v.s)
		if !ok {
			return Null(), nil
		}
		return Enum(tag, n), nil
	}
	return Value{}, unsupported("enum", v)
}

// Truthy reports the truth value of v as used by the logical operators
// and the bool conversion: null, false, zero numbers and empty strings,
// bytes, lists and maps are false. An enum is true when its number names
// a declared value, or, without an enum resolver, when it is non-zero.
func Truthy(v Value, enums Enums) bool {
	switch v.kind {
	case cove.BoolKind:
		return v.b
	case cove.IntKind:
		return v.i != 0
	case cove.UintKind:
		return v.u != 0
	case cove.DoubleKind:
		return v.d != 0
	case cove.StringKind, cove.BytesKind:
		return v.s != ""
	case cove.ListKind:
		return len(v.l) > 0
	case cove.MapKind:
		return len(v.m) > 0
	case cove.EnumKind:
		if enums == nil {
			return v.i != 0
		}
		_, ok := enums.EnumName(v.s, int32(v.i))
		return ok
	}
	return false
}

// ToBool converts v to a bool by truthiness.
func ToBool(v Value, enums Enums) Value {
	return Bool(Truthy(v, enums))
}

// ToString converts v to a string. Bytes are decoded as UTF-8 with
// invalid sequences replaced; enums are named through enums, falling back
// to their number; every other variant uses its literal form, with
// numbers printed without suffixes.
func ToString(v Value, enums Enums) Value {
	switch v.kind {
	case cove.StringKind:
		return v
	case cove.BytesKind:
		return String(strings.ToValidUTF8(v.s, string(utf8.RuneError)))
	case cove.IntKind:
		return String(strconv.FormatInt(v.i, 10))
	case cove.UintKind:
		return String(strconv.FormatUint(v.u, 10))
	case cove.DoubleKind:
		return String(formatDouble(v.d))
	case cove.EnumKind:
		if enums != nil {
			if name, ok := enums.EnumName(v.s, int32(v.i)); ok {
				return String(name)
			}
		}
		return String(strconv.FormatInt(v.i, 10))
	}
	return String(v.String())
}

// ToBytes converts a string or bytes value to bytes.
func ToBytes(v Value) (Value, error) {
	switch v.kind {
	case cove.BytesKind:
		return v, nil
	case cove.StringKind:
		return Value{kind: cove.BytesKind, s: v.s}, nil
	}
	return Value{}, unsupported("bytes", v)
}

// ToInt converts v to an int. Doubles are truncated toward zero. Values
// that cannot be represented and strings that do not parse yield null.
func ToInt(v Value) (Value, error) {
	switch v.kind {
	case cove.IntKind:
		return v, nil
	case cove.UintKind:
		if v.u > math.MaxInt64 {
			return Null(), nil
		}
		return Int(int64(v.u)), nil
	case cove.DoubleKind:
		t := math.Trunc(v.d)
		if math.IsNaN(t) || t < -twoTo63 || t >= twoTo63 {
			return Null(), nil
		}
		return Int(int64(t)), nil
	case cove.StringKind:
		i, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return Null(), nil
		}
		return Int(i), nil
	case cove.EnumKind:
		return Int(v.i), nil
	}
	return Value{}, unsupported("int", v)
}

// ToUint converts v to a uint. Negative numbers, values that cannot be
// represented and strings that do not parse yield null.
func ToUint(v Value) (Value, error) {
	switch v.kind {
	case cove.UintKind:
		return v, nil
	case cove.IntKind, cove.EnumKind:
		if v.i < 0 {
			return Null(), nil
		}
		return Uint(uint64(v.i)), nil
	case cove.DoubleKind:
		t := math.Trunc(v.d)
		if math.IsNaN(t) || t < 0 || t >= twoTo64 {
			return Null(), nil
		}
		return Uint(uint64(t)), nil
	case cove.StringKind:
		u, err := strconv.ParseUint(v.s, 10, 64)
		if err != nil {
			return Null(), nil
		}
		return Uint(u), nil
	}
	return Value{}, unsupported("uint", v)
}

// ToDouble converts v to a double. Strings that do not parse yield null.
func ToDouble(v Value) (Value, error) {
	switch v.kind {
	case cove.DoubleKind:
		return v, nil
	case cove.IntKind, cove.UintKind:
		return Double(toFloat(v)), nil
	case cove.StringKind:
		d, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return Null(), nil
		}
		return Double(d), nil
	}
	return Value{}, unsupported("double", v)
}

// Convert widens or converts v to the given kind, as used when an
// overload declared for one numeric kind accepts another. Kinds other
// than int, uint, double, string and bytes return v unchanged.
func Convert(v Value, k cove.Kind) (Value, error) {
	if v.kind == k {
		return v, nil
	}
	switch k {
	case cove.IntKind:
		return ToInt(v)
	case cove.UintKind:
		return ToUint(v)
	case cove.DoubleKind:
		return ToDouble(v)
	case cove.StringKind:
		return ToString(v, nil), nil
	case cove.BytesKind:
		return ToBytes(v)
	}
	return v, nil
}
