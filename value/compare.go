package value

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ezachrisen/cove"
)

// Errors returned by value operations.
var (
	ErrUnsupported     = errors.New("unsupported operation")
	ErrOverflow        = errors.New("number out of range")
	ErrDivideByZero    = errors.New("division by zero")
	ErrModulusByZero   = errors.New("modulus by zero")
	ErrNoSuchKey       = errors.New("no such key")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrDuplicateKey    = errors.New("duplicate map key")
	ErrNoOrdering      = errors.New("values are not ordered")
)

func unsupported(op string, vs ...Value) error {
	kinds := make([]string, len(vs))
	for i, v := range vs {
		kinds[i] = v.kind.String()
	}
	return fmt.Errorf("%w: %s(%s)", ErrUnsupported, op, strings.Join(kinds, ", "))
}

// Equal reports whether a and b are equal. Values of different variants
// are never equal, except that ints, uints and doubles compare by their
// mathematical value. Lists compare element-wise and maps compare as sets
// of entries regardless of insertion order.
func Equal(a, b Value) bool {
	if a.kind.Numeric() && b.kind.Numeric() {
		c, ok := compareNumbers(a, b)
		return ok && c == 0
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case cove.NullKind:
		return true
	case cove.BoolKind:
		return a.b == b.b
	case cove.StringKind, cove.BytesKind:
		return a.s == b.s
	case cove.EnumKind:
		return a.s == b.s && a.i == b.i
	case cove.ListKind:
		if len(a.l) != len(b.l) {
			return false
		}
		for i := range a.l {
			if !Equal(a.l[i], b.l[i]) {
				return false
			}
		}
		return true
	case cove.MapKind:
		if len(a.m) != len(b.m) {
			return false
		}
		for _, e := range a.m {
			v, ok := b.Get(e.Key)
			if !ok || !Equal(e.Value, v) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders a and b, returning -1, 0 or 1. Numbers of any numeric
// variant are ordered by mathematical value; strings and bytes are ordered
// lexicographically by byte; false sorts before true. Any other
// combination, or a NaN operand, returns ErrNoOrdering.
func Compare(a, b Value) (int, error) {
	if a.kind.Numeric() && b.kind.Numeric() {
		c, ok := compareNumbers(a, b)
		if !ok {
			return 0, fmt.Errorf("%w: NaN", ErrNoOrdering)
		}
		return c, nil
	}
	if a.kind != b.kind {
		return 0, fmt.Errorf("%w: %s and %s", ErrNoOrdering, a.kind, b.kind)
	}
	switch a.kind {
	case cove.StringKind, cove.BytesKind:
		return strings.Compare(a.s, b.s), nil
	case cove.BoolKind:
		switch {
		case a.b == b.b:
			return 0, nil
		case !a.b:
			return -1, nil
		default:
			return 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoOrdering, a.kind)
}

// Min returns the smaller of a and b. When they compare equal a is returned.
func Min(a, b Value) (Value, error) {
	c, err := Compare(a, b)
	if err != nil {
		return Value{}, err
	}
	if c <= 0 {
		return a, nil
	}
	return b, nil
}

// Max returns the larger of a and b. When they compare equal a is returned.
func Max(a, b Value) (Value, error) {
	c, err := Compare(a, b)
	if err != nil {
		return Value{}, err
	}
	if c >= 0 {
		return a, nil
	}
	return b, nil
}

func sign[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareNumbers compares two numeric values exactly, without converting
// through a lossy intermediate type. ok is false when either side is NaN.
func compareNumbers(a, b Value) (c int, ok bool) {
	switch a.kind {
	case cove.IntKind:
		switch b.kind {
		case cove.IntKind:
			return sign(a.i, b.i), true
		case cove.UintKind:
			return compareIntUint(a.i, b.u), true
		case cove.DoubleKind:
			c, ok := compareDoubleInt(b.d, a.i)
			return -c, ok
		}
	case cove.UintKind:
		switch b.kind {
		case cove.IntKind:
			return -compareIntUint(b.i, a.u), true
		case cove.UintKind:
			return sign(a.u, b.u), true
		case cove.DoubleKind:
			c, ok := compareDoubleUint(b.d, a.u)
			return -c, ok
		}
	case cove.DoubleKind:
		switch b.kind {
		case cove.IntKind:
			return compareDoubleInt(a.d, b.i)
		case cove.UintKind:
			return compareDoubleUint(a.d, b.u)
		case cove.DoubleKind:
			if math.IsNaN(a.d) || math.IsNaN(b.d) {
				return 0, false
			}
			return sign(a.d, b.d), true
		}
	}
	return 0, false
}

func compareIntUint(i int64, u uint64) int {
	if i < 0 {
		return -1
	}
	return sign(uint64(i), u)
}

const (
	twoTo63 = 9223372036854775808.0  // 2^63
	twoTo64 = 18446744073709551616.0 // 2^64
)

func compareDoubleInt(d float64, i int64) (int, bool) {
	if math.IsNaN(d) {
		return 0, false
	}
	if d < -twoTo63 {
		return -1, true
	}
	if d >= twoTo63 {
		return 1, true
	}
	t := math.Trunc(d)
	if c := sign(int64(t), i); c != 0 {
		return c, true
	}
	return sign(d-t, 0), true
}

func compareDoubleUint(d float64, u uint64) (int, bool) {
	if math.IsNaN(d) {
		return 0, false
	}
	if d < 0 {
		return -1, true
	}
	if d >= twoTo64 {
		return 1, true
	}
	t := math.Trunc(d)
	if c := sign(uint64(t), u); c != 0 {
		return c, true
	}
	return sign(d-t, 0), true
}
