package value

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/ezachrisen/cove"
)

// promote brings two numeric operands to a common variant. If either side
// is a double both become doubles; otherwise a mix of int and uint becomes
// int, failing if the uint does not fit.
func promote(a, b Value) (Value, Value, error) {
	if a.kind == b.kind {
		return a, b, nil
	}
	if a.kind == cove.DoubleKind || b.kind == cove.DoubleKind {
		return Double(toFloat(a)), Double(toFloat(b)), nil
	}
	if a.kind == cove.UintKind {
		if a.u > math.MaxInt64 {
			return a, b, ErrOverflow
		}
		return Int(int64(a.u)), b, nil
	}
	if b.u > math.MaxInt64 {
		return a, b, ErrOverflow
	}
	return a, Int(int64(b.u)), nil
}

func toFloat(v Value) float64 {
	switch v.kind {
	case cove.IntKind:
		return float64(v.i)
	case cove.UintKind:
		return float64(v.u)
	}
	return v.d
}

func numeric(a, b Value) bool {
	return a.kind.Numeric() && b.kind.Numeric()
}

// Add returns a + b. Numbers are added with overflow checking; strings,
// bytes and lists are concatenated and maps are merged, with entries of
// b replacing entries of a that share a key.
func Add(a, b Value) (Value, error) {
	if numeric(a, b) {
		x, y, err := promote(a, b)
		if err != nil {
			return Value{}, fmt.Errorf("%w: addition", err)
		}
		switch x.kind {
		case cove.IntKind:
			s := x.i + y.i
			if (s > x.i) != (y.i > 0) {
				return Value{}, fmt.Errorf("%w: addition", ErrOverflow)
			}
			return Int(s), nil
		case cove.UintKind:
			s, carry := bits.Add64(x.u, y.u, 0)
			if carry != 0 {
				return Value{}, fmt.Errorf("%w: addition", ErrOverflow)
			}
			return Uint(s), nil
		default:
			return Double(x.d + y.d), nil
		}
	}
	if a.kind != b.kind {
		return Value{}, unsupported("+", a, b)
	}
	switch a.kind {
	case cove.StringKind:
		return String(a.s + b.s), nil
	case cove.BytesKind:
		return Value{kind: cove.BytesKind, s: a.s + b.s}, nil
	case cove.ListKind:
		l := make([]Value, 0, len(a.l)+len(b.l))
		l = append(l, a.l...)
		l = append(l, b.l...)
		return Value{kind: cove.ListKind, l: l}, nil
	case cove.MapKind:
		m := make([]Entry, len(a.m), len(a.m)+len(b.m))
		copy(m, a.m)
		for _, e := range b.m {
			if i, ok := find(m, e.Key); ok {
				m[i] = e
				continue
			}
			m = append(m, e)
		}
		return Value{kind: cove.MapKind, m: m}, nil
	}
	return Value{}, unsupported("+", a, b)
}

// Sub returns a - b for numbers, with overflow checking.
func Sub(a, b Value) (Value, error) {
	if !numeric(a, b) {
		return Value{}, unsupported("-", a, b)
	}
	x, y, err := promote(a, b)
	if err != nil {
		return Value{}, fmt.Errorf("%w: subtraction", err)
	}
	switch x.kind {
	case cove.IntKind:
		s := x.i - y.i
		if (s < x.i) != (y.i > 0) {
			return Value{}, fmt.Errorf("%w: subtraction", ErrOverflow)
		}
		return Int(s), nil
	case cove.UintKind:
		s, borrow := bits.Sub64(x.u, y.u, 0)
		if borrow != 0 {
			return Value{}, fmt.Errorf("%w: subtraction", ErrOverflow)
		}
		return Uint(s), nil
	}
	return Double(x.d - y.d), nil
}

// Mul returns a * b for numbers, with overflow checking.
func Mul(a, b Value) (Value, error) {
	if !numeric(a, b) {
		return Value{}, unsupported("*", a, b)
	}
	x, y, err := promote(a, b)
	if err != nil {
		return Value{}, fmt.Errorf("%w: multiplication", err)
	}
	switch x.kind {
	case cove.IntKind:
		if x.i == 0 || y.i == 0 {
			return Int(0), nil
		}
		p := x.i * y.i
		if p/y.i != x.i || (x.i == -1 && y.i == math.MinInt64) || (y.i == -1 && x.i == math.MinInt64) {
			return Value{}, fmt.Errorf("%w: multiplication", ErrOverflow)
		}
		return Int(p), nil
	case cove.UintKind:
		hi, lo := bits.Mul64(x.u, y.u)
		if hi != 0 {
			return Value{}, fmt.Errorf("%w: multiplication", ErrOverflow)
		}
		return Uint(lo), nil
	}
	return Double(x.d * y.d), nil
}

// Div returns a / b for numbers. Integer division truncates toward zero
// and fails on a zero divisor; double division follows IEEE 754.
func Div(a, b Value) (Value, error) {
	if !numeric(a, b) {
		return Value{}, unsupported("/", a, b)
	}
	x, y, err := promote(a, b)
	if err != nil {
		return Value{}, fmt.Errorf("%w: division", err)
	}
	switch x.kind {
	case cove.IntKind:
		if y.i == 0 {
			return Value{}, ErrDivideByZero
		}
		if x.i == math.MinInt64 && y.i == -1 {
			return Value{}, fmt.Errorf("%w: division", ErrOverflow)
		}
		return Int(x.i / y.i), nil
	case cove.UintKind:
		if y.u == 0 {
			return Value{}, ErrDivideByZero
		}
		return Uint(x.u / y.u), nil
	}
	return Double(x.d / y.d), nil
}

// Mod returns the remainder of a / b for integers.
func Mod(a, b Value) (Value, error) {
	if !numeric(a, b) || a.kind == cove.DoubleKind || b.kind == cove.DoubleKind {
		return Value{}, unsupported("%", a, b)
	}
	x, y, err := promote(a, b)
	if err != nil {
		return Value{}, fmt.Errorf("%w: modulus", err)
	}
	if x.kind == cove.UintKind {
		if y.u == 0 {
			return Value{}, ErrModulusByZero
		}
		return Uint(x.u % y.u), nil
	}
	if y.i == 0 {
		return Value{}, ErrModulusByZero
	}
	return Int(x.i % y.i), nil
}

// Neg returns -v. Negating a uint yields an int.
func Neg(v Value) (Value, error) {
	switch v.kind {
	case cove.IntKind:
		if v.i == math.MinInt64 {
			return Value{}, fmt.Errorf("%w: negation", ErrOverflow)
		}
		return Int(-v.i), nil
	case cove.UintKind:
		if v.u > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: negation", ErrOverflow)
		}
		return Int(-int64(v.u)), nil
	case cove.DoubleKind:
		return Double(-v.d), nil
	}
	return Value{}, unsupported("-", v)
}

// Abs returns the absolute value of a number.
func Abs(v Value) (Value, error) {
	switch v.kind {
	case cove.IntKind:
		if v.i >= 0 {
			return v, nil
		}
		return Neg(v)
	case cove.UintKind:
		return v, nil
	case cove.DoubleKind:
		return Double(math.Abs(v.d)), nil
	}
	return Value{}, unsupported("abs", v)
}

// Floor rounds a double down. Integers are returned unchanged.
func Floor(v Value) (Value, error) { return round(v, "floor", math.Floor) }

// Ceil rounds a double up. Integers are returned unchanged.
func Ceil(v Value) (Value, error) { return round(v, "ceil", math.Ceil) }

// Round rounds a double to the nearest integer, halves away from zero.
// Integers are returned unchanged.
func Round(v Value) (Value, error) { return round(v, "round", math.Round) }

func round(v Value, op string, f func(float64) float64) (Value, error) {
	switch v.kind {
	case cove.IntKind, cove.UintKind:
		return v, nil
	case cove.DoubleKind:
		return Double(f(v.d)), nil
	}
	return Value{}, unsupported(op, v)
}
