package compiler

import (
	"errors"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/ast"
	"github.com/ezachrisen/cove/functions"
	"github.com/ezachrisen/cove/native"
	"github.com/ezachrisen/cove/value"
	"github.com/google/cel-go/common/operators"
)

func (s *state) call(n *ast.Call, args []operand) (operand, error) {
	member := n.Target != nil

	switch n.Function {
	case "has":
		if member || len(args) != 1 {
			return operand{}, s.errorf(cove.ErrNoMatchingOverload, n, "has", nil, "has() takes a single field selection")
		}
		return args[0], nil
	case operators.LogicalAnd, operators.LogicalOr:
		return s.logical(n, args)
	case operators.Conditional:
		return s.conditional(n, args)
	case "matches":
		if err := s.checkPattern(n, args); err != nil {
			return operand{}, err
		}
	}

	allConst := true
	for _, a := range args {
		if a.err != nil {
			return a, nil
		}
		if !a.constant() {
			allConst = false
		}
	}
	if allConst {
		return s.fold(n, member, args)
	}
	return s.emit(n, member, args)
}

func types(args []operand) []cove.Type {
	t := make([]cove.Type, len(args))
	for i, a := range args {
		t[i] = a.typ
	}
	return t
}

func (s *state) resolve(n *ast.Call, member bool, args []cove.Type, ctx functions.Context) (*functions.Overload, cove.Type, error) {
	o, t, err := s.opts.registry.Resolve(n.Function, member, args, ctx)
	if err != nil {
		return nil, nil, err
	}
	if s.opts.onResolve != nil {
		s.opts.onResolve(Resolution{Span: n.Span(), Function: n.Function, Overload: o.ID, Context: ctx})
	}
	return o, t, nil
}

// noOverload reports a failed resolution, naming the first argument no
// overload accepts when there is one.
func (s *state) noOverload(n *ast.Call, member bool, args []cove.Type, ctx functions.Context, err error) *Error {
	kind := cove.ErrNoMatchingOverload
	if errors.Is(err, cove.ErrAmbiguousOverload) {
		kind = cove.ErrAmbiguousOverload
	} else if i, ok := s.opts.registry.Rejected(n.Function, member, args, ctx); ok {
		err = functions.ArgumentError(n.Function, member, i, err)
	}
	sig := cove.Signature(n.Function, member, args)
	return s.errorf(kind, n, sig, err, "")
}

// fold evaluates a call whose arguments are all known. Functions with
// no compile-time overload, such as dyn, are deferred instead.
func (s *state) fold(n *ast.Call, member bool, args []operand) (operand, error) {
	o, _, err := s.resolve(n, member, types(args), functions.CompileTime)
	if err != nil {
		if errors.Is(err, cove.ErrNoMatchingOverload) {
			return s.emit(n, member, args)
		}
		return operand{}, s.noOverload(n, member, types(args), functions.CompileTime, err)
	}

	vals := make([]value.Value, len(args))
	for i, a := range args {
		vals[i] = a.val
	}
	v, err := o.Call(s.rt, vals)
	if err != nil {
		return s.failed(n, err), nil
	}
	s.log.Debug().Str("overload", o.ID).Str("value", v.String()).Msg("folded")
	return known(v), nil
}

// emit defers a call, resolving its overload by static types.
func (s *state) emit(n *ast.Call, member bool, args []operand) (operand, error) {
	for _, a := range args {
		if a.err != nil {
			return operand{}, a.err
		}
	}
	ts := types(args)
	o, t, err := s.resolve(n, member, ts, functions.Native)
	if err != nil {
		return operand{}, s.noOverload(n, member, ts, functions.Native, err)
	}
	if n.Function == "enum" {
		t = enumType(args, t)
	}
	leaves := make([]native.Expr, len(args))
	for i, a := range args {
		leaves[i] = a.leaf()
	}
	s.log.Debug().Str("overload", o.ID).Msg("deferred")
	return deferred(&native.Call{Overload: o, Args: leaves, Typ: t}), nil
}

// enumType types enum(x, tag) by its tag when the tag is known.
func enumType(args []operand, t cove.Type) cove.Type {
	if len(args) == 2 && args[1].constant() && args[1].val.Kind() == cove.StringKind {
		return cove.Enum{Tag: args[1].val.AsString()}
	}
	return t
}

// logical folds && and || without requiring both sides: a known operand
// that decides the result wins over anything on the other side,
// including a failure.
func (s *state) logical(n *ast.Call, args []operand) (operand, error) {
	a, b := args[0], args[1]
	and := n.Function == operators.LogicalAnd
	decides := func(o operand) bool {
		return o.constant() && value.Truthy(o.val, s.rt) != and
	}
	if decides(a) || decides(b) {
		s.log.Debug().Str("op", n.Function).Msg("short-circuited")
		return known(value.Bool(!and)), nil
	}
	if a.err != nil {
		return a, nil
	}
	if b.err != nil {
		return b, nil
	}
	switch {
	case a.constant() && b.constant():
		return s.fold(n, false, args)
	case a.constant():
		return s.truth(n, b)
	case b.constant():
		return s.truth(n, a)
	}
	return s.emit(n, false, args)
}

// truth defers the truth value of o, as left when the other operand of
// a logical operator is known not to decide the result.
func (s *state) truth(n *ast.Call, o operand) (operand, error) {
	if o.typ.Kind() == cove.BoolKind {
		return o, nil
	}
	ts := []cove.Type{o.typ}
	ov, t, err := s.opts.registry.Resolve("bool", false, ts, functions.Native)
	if err != nil {
		return operand{}, s.noOverload(n, false, ts, functions.Native, err)
	}
	return deferred(&native.Call{Overload: ov, Args: []native.Expr{o.expr}, Typ: t}), nil
}

func (s *state) conditional(n *ast.Call, args []operand) (operand, error) {
	c := args[0]
	if c.err != nil {
		return c, nil
	}
	if c.constant() {
		if value.Truthy(c.val, s.rt) {
			return args[1], nil
		}
		return args[2], nil
	}
	return s.emit(n, false, args)
}

// checkPattern compiles a known matches() pattern, so that a bad pattern
// fails the build rather than every evaluation.
func (s *state) checkPattern(n *ast.Call, args []operand) error {
	if len(args) != 2 || !args[1].constant() || args[1].val.Kind() != cove.StringKind {
		return nil
	}
	if _, err := s.rt.Regexp(args[1].val.AsString()); err != nil {
		return s.errorf(cove.ErrEvaluation, n, "", err, "invalid pattern")
	}
	return nil
}
