package functions

import (
	"fmt"
	"strings"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/value"
	"github.com/google/cel-go/common/operators"
)

type (
	evalFunc   = func(rt Runtime, args []value.Value) (value.Value, error)
	resultFunc = func(args []cove.Type) cove.Type
)

// Shorthands for parameter kinds in the tables below.
const (
	tN = cove.NullKind
	tB = cove.BoolKind
	tI = cove.IntKind
	tU = cove.UintKind
	tD = cove.DoubleKind
	tS = cove.StringKind
	tY = cove.BytesKind
	tL = cove.ListKind
	tM = cove.MapKind
	tE = cove.EnumKind
	tG = cove.MessageKind
	tA = cove.DynKind
)

type sig = []cove.Kind

// spec is one function's declaration: its overload signatures and the
// shared evaluation and typing rules.
type spec struct {
	name      string
	base      string
	style     Style
	ctx       Context
	nonStrict bool
	eval      evalFunc
	result    resultFunc
	sigs      []sig

	// fallback, when set, adds a dynamic overload of the given arity.
	fallback       int
	fallbackResult resultFunc
}

func (s spec) overloads() []*Overload {
	ctx := s.ctx
	if ctx == 0 {
		ctx = Both
	}
	style := s.style
	if style == 0 {
		style = Global
	}
	var out []*Overload
	for _, params := range s.sigs {
		out = append(out, &Overload{
			ID:        overloadID(s.base, params),
			Function:  s.name,
			Style:     style,
			Params:    params,
			Contexts:  ctx,
			NonStrict: s.nonStrict,
			Result:    s.result,
			Eval:      s.eval,
		})
	}
	if s.fallback > 0 {
		result := s.fallbackResult
		if result == nil {
			result = fixed(cove.Dyn{})
		}
		params := make([]cove.Kind, s.fallback)
		for i := range params {
			params[i] = tA
		}
		out = append(out, &Overload{
			ID:       s.base + "_dyn",
			Function: s.name,
			Style:    style,
			Params:   params,
			Contexts: ctx,
			Fallback: true,
			Result:   result,
			Eval:     s.eval,
		})
	}
	return out
}

func overloadID(base string, params []cove.Kind) string {
	if len(params) == 0 {
		return base
	}
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, base)
	for _, k := range params {
		parts = append(parts, k.String())
	}
	return strings.Join(parts, "_")
}

func fixed(t cove.Type) resultFunc {
	return func([]cove.Type) cove.Type { return t }
}

func argType(i int) resultFunc {
	return func(args []cove.Type) cove.Type { return args[i] }
}

func unary(f func(value.Value) (value.Value, error)) evalFunc {
	return func(_ Runtime, a []value.Value) (value.Value, error) { return f(a[0]) }
}

func binary(f func(a, b value.Value) (value.Value, error)) evalFunc {
	return func(_ Runtime, a []value.Value) (value.Value, error) { return f(a[0], a[1]) }
}

func predicate(f func(value.Value) bool) evalFunc {
	return func(_ Runtime, a []value.Value) (value.Value, error) { return value.Bool(f(a[0])), nil }
}

var (
	numericKinds = []cove.Kind{tI, tU, tD}
	crossNumeric = []sig{{tI, tU}, {tU, tI}, {tI, tD}, {tD, tI}, {tU, tD}, {tD, tU}}
	intMixed     = []sig{{tI, tI}, {tU, tU}, {tD, tD}, {tI, tU}, {tU, tI}}
	scalarKinds  = []cove.Kind{tN, tB, tI, tU, tD, tS, tY, tL, tM, tE}
)

func each(kinds []cove.Kind) []sig {
	out := make([]sig, len(kinds))
	for i, k := range kinds {
		out[i] = sig{k}
	}
	return out
}

func concat(groups ...[]sig) []sig {
	var out []sig
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// equalitySigs pairs every kind with itself, the numeric kinds with each
// other, and every kind with null.
func equalitySigs() []sig {
	out := []sig{}
	for _, k := range []cove.Kind{tN, tB, tI, tU, tD, tS, tY, tL, tM, tE, tG} {
		out = append(out, sig{k, k})
	}
	out = append(out, crossNumeric...)
	for _, k := range []cove.Kind{tB, tI, tU, tD, tS, tY, tL, tM, tE, tG} {
		out = append(out, sig{k, tN}, sig{tN, k})
	}
	return out
}

// arithResult types arithmetic: double if either side is a double, int
// for a mix of int and uint, and the joined type for containers.
func arithResult(args []cove.Type) cove.Type {
	a, b := args[0].Kind(), args[1].Kind()
	if a.Numeric() && b.Numeric() {
		switch {
		case a == tD || b == tD:
			return cove.Double{}
		case a != b:
			return cove.Int{}
		}
		return args[0]
	}
	return cove.Join(args[0], args[1])
}

// numericJoin types min and max: the shared type, or double when
// resolution widened the operands.
func numericJoin(args []cove.Type) cove.Type {
	if cove.Equal(args[0], args[1]) {
		return args[0]
	}
	if args[0].Kind().Numeric() && args[1].Kind().Numeric() {
		return cove.Double{}
	}
	return cove.Dyn{}
}

func compare(pred func(int) bool) evalFunc {
	return func(_ Runtime, a []value.Value) (value.Value, error) {
		c, err := value.Compare(a[0], a[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(pred(c)), nil
	}
}

func extreme(pick func(a, b value.Value) (value.Value, error)) evalFunc {
	return func(_ Runtime, a []value.Value) (value.Value, error) {
		if len(a) == 2 {
			return pick(a[0], a[1])
		}
		if a[0].Kind() != tL {
			return value.Value{}, fmt.Errorf("%w: min/max of %s", value.ErrUnsupported, a[0].Kind())
		}
		elems := a[0].Elems()
		if len(elems) == 0 {
			return value.Null(), nil
		}
		m := elems[0]
		for _, e := range elems[1:] {
			var err error
			if m, err = pick(m, e); err != nil {
				return value.Value{}, err
			}
		}
		return m, nil
	}
}

func indexResult(args []cove.Type) cove.Type {
	switch t := args[0].(type) {
	case cove.List:
		return cove.Elem(t)
	case cove.Map:
		_, v := cove.KeyValue(t)
		return v
	}
	return cove.Dyn{}
}

func matches(rt Runtime, a []value.Value) (value.Value, error) {
	if a[1].Kind() != tS {
		return value.Value{}, fmt.Errorf("%w: matches pattern must be a string", value.ErrUnsupported)
	}
	re, err := rt.Regexp(a[1].AsString())
	if err != nil {
		return value.Value{}, err
	}
	return value.Matches(a[0], re)
}

// toEnum converts its receiver to the enum type named by the second
// argument; see value.ToEnum.
func toEnum(rt Runtime, a []value.Value) (value.Value, error) {
	if a[1].Kind() != tS {
		return value.Value{}, fmt.Errorf("%w: enum type must be a string", value.ErrUnsupported)
	}
	return value.ToEnum(a[0], a[1].AsString(), rt)
}

// Builtins returns the built-in overload table.
func Builtins() []*Overload {
	boolT := fixed(cove.Bool{})

	specs := []spec{
		// Equality and ordering.
		{name: operators.Equals, base: "equals", eval: func(_ Runtime, a []value.Value) (value.Value, error) {
			return value.Bool(value.Equal(a[0], a[1])), nil
		}, result: boolT, sigs: equalitySigs(), fallback: 2, fallbackResult: boolT},
		{name: operators.NotEquals, base: "not_equals", eval: func(_ Runtime, a []value.Value) (value.Value, error) {
			return value.Bool(!value.Equal(a[0], a[1])), nil
		}, result: boolT, sigs: equalitySigs(), fallback: 2, fallbackResult: boolT},
		{name: operators.Less, base: "less", eval: compare(func(c int) bool { return c < 0 }), result: boolT,
			sigs: concat([]sig{{tI, tI}, {tU, tU}, {tD, tD}, {tS, tS}, {tY, tY}, {tB, tB}}, crossNumeric), fallback: 2, fallbackResult: boolT},
		{name: operators.LessEquals, base: "less_equals", eval: compare(func(c int) bool { return c <= 0 }), result: boolT,
			sigs: concat([]sig{{tI, tI}, {tU, tU}, {tD, tD}, {tS, tS}, {tY, tY}, {tB, tB}}, crossNumeric), fallback: 2, fallbackResult: boolT},
		{name: operators.Greater, base: "greater", eval: compare(func(c int) bool { return c > 0 }), result: boolT,
			sigs: concat([]sig{{tI, tI}, {tU, tU}, {tD, tD}, {tS, tS}, {tY, tY}, {tB, tB}}, crossNumeric), fallback: 2, fallbackResult: boolT},
		{name: operators.GreaterEquals, base: "greater_equals", eval: compare(func(c int) bool { return c >= 0 }), result: boolT,
			sigs: concat([]sig{{tI, tI}, {tU, tU}, {tD, tD}, {tS, tS}, {tY, tY}, {tB, tB}}, crossNumeric), fallback: 2, fallbackResult: boolT},

		// Arithmetic.
		{name: operators.Add, base: "add", eval: binary(value.Add), result: arithResult,
			sigs: concat(intMixed, []sig{{tS, tS}, {tY, tY}, {tL, tL}, {tM, tM}}), fallback: 2},
		{name: operators.Subtract, base: "subtract", eval: binary(value.Sub), result: arithResult, sigs: intMixed, fallback: 2},
		{name: operators.Multiply, base: "multiply", eval: binary(value.Mul), result: arithResult, sigs: intMixed, fallback: 2},
		{name: operators.Divide, base: "divide", eval: binary(value.Div), result: arithResult, sigs: intMixed, fallback: 2},
		{name: operators.Modulo, base: "modulo", eval: binary(value.Mod), result: arithResult,
			sigs: []sig{{tI, tI}, {tU, tU}, {tI, tU}, {tU, tI}}, fallback: 2},
		{name: operators.Negate, base: "negate", eval: unary(value.Neg), result: func(args []cove.Type) cove.Type {
			if args[0].Kind() == tD {
				return cove.Double{}
			}
			return cove.Int{}
		}, sigs: each(numericKinds), fallback: 1},

		// Logic. These accept any operand and use its truth value.
		{name: operators.LogicalNot, base: "logical_not", eval: func(rt Runtime, a []value.Value) (value.Value, error) {
			return value.Bool(!value.Truthy(a[0], rt)), nil
		}, result: boolT, sigs: []sig{{tA}}},
		{name: operators.LogicalAnd, base: "logical_and", nonStrict: true, eval: func(rt Runtime, a []value.Value) (value.Value, error) {
			return value.Bool(value.Truthy(a[0], rt) && value.Truthy(a[1], rt)), nil
		}, result: boolT, sigs: []sig{{tA, tA}}},
		{name: operators.LogicalOr, base: "logical_or", nonStrict: true, eval: func(rt Runtime, a []value.Value) (value.Value, error) {
			return value.Bool(value.Truthy(a[0], rt) || value.Truthy(a[1], rt)), nil
		}, result: boolT, sigs: []sig{{tA, tA}}},
		{name: operators.Conditional, base: "conditional", nonStrict: true, eval: func(rt Runtime, a []value.Value) (value.Value, error) {
			if value.Truthy(a[0], rt) {
				return a[1], nil
			}
			return a[2], nil
		}, result: func(args []cove.Type) cove.Type { return cove.Join(args[1], args[2]) }, sigs: []sig{{tA, tA, tA}}},

		// Containers.
		{name: operators.Index, base: "index", eval: binary(value.Index), result: indexResult,
			sigs: []sig{{tL, tI}, {tL, tU}, {tM, tA}}, fallback: 2},
		{name: operators.In, base: "in", eval: binary(value.In), result: boolT,
			sigs: []sig{{tA, tL}, {tA, tM}, {tS, tS}, {tY, tY}}, fallback: 2, fallbackResult: boolT},
		{name: "contains", base: "contains", style: Member, eval: binary(value.Contains), result: boolT,
			sigs: []sig{{tS, tS}, {tS, tY}, {tY, tY}, {tY, tS}, {tL, tA}, {tM, tA}}, fallback: 2, fallbackResult: boolT},
		{name: "size", base: "size", style: Either, eval: unary(value.Size), result: fixed(cove.Int{}),
			sigs: each([]cove.Kind{tS, tY, tL, tM}), fallback: 1, fallbackResult: fixed(cove.Int{})},

		// Text.
		{name: "startsWith", base: "starts_with", style: Member, eval: binary(value.StartsWith), result: boolT,
			sigs: []sig{{tS, tS}, {tY, tY}, {tS, tY}, {tY, tS}}, fallback: 2, fallbackResult: boolT},
		{name: "endsWith", base: "ends_with", style: Member, eval: binary(value.EndsWith), result: boolT,
			sigs: []sig{{tS, tS}, {tY, tY}, {tS, tY}, {tY, tS}}, fallback: 2, fallbackResult: boolT},
		{name: "matches", base: "matches", style: Either, eval: matches, result: boolT,
			sigs: []sig{{tS, tS}, {tY, tS}}, fallback: 2, fallbackResult: boolT},

		// Conversions.
		{name: "string", base: "string", style: Either, eval: func(rt Runtime, a []value.Value) (value.Value, error) {
			return value.ToString(a[0], rt), nil
		}, result: fixed(cove.String{}), sigs: each(scalarKinds), fallback: 1, fallbackResult: fixed(cove.String{})},
		{name: "bytes", base: "bytes", style: Either, eval: unary(value.ToBytes), result: fixed(cove.Bytes{}),
			sigs: each([]cove.Kind{tS, tY}), fallback: 1, fallbackResult: fixed(cove.Bytes{})},
		{name: "int", base: "int", style: Either, eval: unary(value.ToInt), result: fixed(cove.Int{}),
			sigs: each([]cove.Kind{tI, tU, tD, tS, tE}), fallback: 1, fallbackResult: fixed(cove.Int{})},
		{name: "uint", base: "uint", style: Either, eval: unary(value.ToUint), result: fixed(cove.UInt{}),
			sigs: each([]cove.Kind{tI, tU, tD, tS, tE}), fallback: 1, fallbackResult: fixed(cove.UInt{})},
		{name: "double", base: "double", style: Either, eval: unary(value.ToDouble), result: fixed(cove.Double{}),
			sigs: each([]cove.Kind{tI, tU, tD, tS}), fallback: 1, fallbackResult: fixed(cove.Double{})},
		{name: "bool", base: "bool", style: Either, eval: func(rt Runtime, a []value.Value) (value.Value, error) {
			return value.ToBool(a[0], rt), nil
		}, result: boolT, sigs: each(append(append([]cove.Kind{}, scalarKinds...), tG)), fallback: 1, fallbackResult: boolT},
		{name: "enum", base: "enum", style: Either, eval: toEnum, result: fixed(cove.Dyn{}),
			sigs: []sig{{tI, tS}, {tU, tS}, {tE, tS}, {tS, tS}}, fallback: 2},
		{name: "dyn", base: "dyn", style: Either, ctx: Native, eval: unary(func(v value.Value) (value.Value, error) {
			return v, nil
		}), result: fixed(cove.Dyn{}), sigs: []sig{{tA}}},

		// Numeric helpers.
		{name: "floor", base: "floor", style: Either, eval: unary(value.Floor), result: argType(0), sigs: each(numericKinds), fallback: 1},
		{name: "ceil", base: "ceil", style: Either, eval: unary(value.Ceil), result: argType(0), sigs: each(numericKinds), fallback: 1},
		{name: "round", base: "round", style: Either, eval: unary(value.Round), result: argType(0), sigs: each(numericKinds), fallback: 1},
		{name: "abs", base: "abs", style: Either, eval: unary(value.Abs), result: argType(0), sigs: each(numericKinds), fallback: 1},
		{name: "min", base: "min", style: Either, eval: extreme(value.Min), result: numericJoin,
			sigs: []sig{{tI, tI}, {tU, tU}, {tD, tD}, {tS, tS}}, fallback: 2},
		{name: "max", base: "max", style: Either, eval: extreme(value.Max), result: numericJoin,
			sigs: []sig{{tI, tI}, {tU, tU}, {tD, tD}, {tS, tS}}, fallback: 2},
		{name: "min", base: "min_list", style: Either, eval: extreme(value.Min), result: func(args []cove.Type) cove.Type {
			return cove.Elem(args[0])
		}, sigs: []sig{{tL}}},
		{name: "max", base: "max_list", style: Either, eval: extreme(value.Max), result: func(args []cove.Type) cove.Type {
			return cove.Elem(args[0])
		}, sigs: []sig{{tL}}},
	}
	specs = append(specs, validators()...)

	var out []*Overload
	for _, s := range specs {
		out = append(out, s.overloads()...)
	}
	return out
}
