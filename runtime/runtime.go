// Package runtime executes native expressions against concrete data.
//
// It is the reference executor for the deferred form of a constraint:
// every operation calls the overload the compiler chose, so a program
// evaluated here behaves exactly as it would have had its inputs been
// known at compile time. The engine uses it to evaluate rules and the
// tests use it to check that folding and deferral agree.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/functions"
	"github.com/ezachrisen/cove/native"
	"github.com/ezachrisen/cove/value"
	"github.com/google/cel-go/common/operators"
	"github.com/rs/zerolog"
)

// ErrUnbound is returned when a free variable of the expression has no
// value in the data.
var ErrUnbound = errors.New("unbound variable")

// checkEvery is the number of evaluation steps between context checks.
const checkEvery = 1024

// Error is a failure raised by an overload.
type Error struct {
	Overload string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Overload, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{cove.ErrEvaluation, e.Err}
}

// Evaluator runs native expressions. It is safe for concurrent use.
type Evaluator struct {
	rt  functions.Runtime
	log zerolog.Logger

	// err is the enum registration error every Eval returns.
	err error
}

// Option configures an Evaluator.
type Option func(e *Evaluator)

// WithLogger sets the logger used to trace evaluation at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Evaluator) {
		e.log = l
	}
}

// New returns an evaluator that names enums with enums, which may be nil.
// If enums reports a registration error, every evaluation fails with it.
func New(enums value.Enums, opts ...Option) *Evaluator {
	e := &Evaluator{
		rt:  functions.NewRuntime(enums),
		log: zerolog.Nop(),
		err: functions.CheckEnums(enums),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// result is the outcome of one node. Failures travel as results so the
// logical operators, the conditional and the quantifiers can discard a
// failure whose value does not matter.
type result struct {
	val value.Value
	err error
}

// scope holds the comprehension binders in effect.
type scope struct {
	name   string
	val    value.Value
	parent *scope
}

func (s *scope) bind(name string, v value.Value) *scope {
	return &scope{name: name, val: v, parent: s}
}

func (s *scope) lookup(name string) (value.Value, bool) {
	for ; s != nil; s = s.parent {
		if s.name == name {
			return s.val, true
		}
	}
	return value.Value{}, false
}

type frame struct {
	node  native.Expr
	scope *scope
	args  []result
	loop  *loop
}

func (f *frame) child(e native.Expr) *frame {
	return &frame{node: e, scope: f.scope}
}

// failed returns the most recent child result if it is a failure.
func (f *frame) failed() (result, bool) {
	if n := len(f.args); n > 0 && f.args[n-1].err != nil {
		return f.args[n-1], true
	}
	return result{}, false
}

type run struct {
	*Evaluator
	vars map[string]value.Value
}

// Eval evaluates x with its free variables taken from vars.
func (e *Evaluator) Eval(ctx context.Context, x native.Expr, vars map[string]value.Value) (value.Value, error) {
	if x == nil {
		return value.Value{}, fmt.Errorf("%w: nil expression", cove.ErrEvaluation)
	}
	if e.err != nil {
		return value.Value{}, e.err
	}
	r := &run{Evaluator: e, vars: vars}
	stack := []*frame{{node: x}}
	for steps := 1; ; steps++ {
		if steps%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return value.Value{}, err
			}
		}
		f := stack[len(stack)-1]
		next, res := r.step(f)
		if next != nil {
			stack = append(stack, next)
			continue
		}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return res.val, res.err
		}
		p := stack[len(stack)-1]
		p.args = append(p.args, res)
	}
}

func (r *run) step(f *frame) (*frame, result) {
	switch n := f.node.(type) {
	case *native.Const:
		return nil, result{val: n.Value}

	case *native.Var:
		return nil, r.variable(n, f.scope)

	case *native.Select:
		if len(f.args) == 0 {
			return f.child(n.Operand), result{}
		}
		if res, ok := f.failed(); ok {
			return nil, res
		}
		v, err := value.Field(f.args[0].val, n.Field)
		if err != nil {
			return nil, result{err: &Error{Overload: "select_" + n.Field, Err: err}}
		}
		return nil, result{val: v}

	case *native.Call:
		if n.Overload.NonStrict {
			return r.nonStrict(f, n)
		}
		if res, ok := f.failed(); ok {
			return nil, res
		}
		if len(f.args) < len(n.Args) {
			return f.child(n.Args[len(f.args)]), result{}
		}
		return nil, r.call(n, f.args)

	case *native.MakeList:
		if res, ok := f.failed(); ok {
			return nil, res
		}
		if len(f.args) < len(n.Elems) {
			return f.child(n.Elems[len(f.args)]), result{}
		}
		vals := make([]value.Value, len(f.args))
		for i, a := range f.args {
			vals[i] = a.val
		}
		return nil, result{val: value.List(vals...)}

	case *native.MakeMap:
		if res, ok := f.failed(); ok {
			return nil, res
		}
		if i := len(f.args); i < 2*len(n.Entries) {
			if i%2 == 0 {
				return f.child(n.Entries[i/2].Key), result{}
			}
			return f.child(n.Entries[i/2].Value), result{}
		}
		entries := make([]value.Entry, 0, len(n.Entries))
		for i := 0; i < len(f.args); i += 2 {
			entries = append(entries, value.Entry{Key: f.args[i].val, Value: f.args[i+1].val})
		}
		m, err := value.Map(entries...)
		if err != nil {
			return nil, result{err: &Error{Overload: "map", Err: err}}
		}
		return nil, result{val: m}

	case *native.Loop:
		return r.comprehension(f, n)
	}
	return nil, result{err: fmt.Errorf("%w: unsupported node %T", cove.ErrEvaluation, f.node)}
}

func (r *run) variable(n *native.Var, s *scope) result {
	if n.Local {
		if v, ok := s.lookup(n.Name); ok {
			return result{val: v}
		}
	}
	v, ok := r.vars[n.Name]
	if !ok {
		return result{err: fmt.Errorf("%w: %s", ErrUnbound, n.Name)}
	}
	return result{val: v}
}

func (r *run) call(n *native.Call, args []result) result {
	vals := make([]value.Value, len(args))
	for i, a := range args {
		vals[i] = a.val
	}
	v, err := n.Overload.Call(r.rt, vals)
	if err != nil {
		r.log.Debug().Str("overload", n.Overload.ID).Err(err).Msg("call failed")
		return result{err: &Error{Overload: n.Overload.ID, Err: err}}
	}
	return result{val: v}
}

// nonStrict evaluates the logical operators and the conditional, which
// evaluate only the operands they need. A failure on one side of && or
// || is discarded when the other side decides the result.
func (r *run) nonStrict(f *frame, n *native.Call) (*frame, result) {
	switch n.Overload.Function {
	case operators.Conditional:
		switch len(f.args) {
		case 0:
			return f.child(n.Args[0]), result{}
		case 1:
			c := f.args[0]
			if c.err != nil {
				return nil, c
			}
			if value.Truthy(c.val, r.rt) {
				return f.child(n.Args[1]), result{}
			}
			return f.child(n.Args[2]), result{}
		}
		return nil, f.args[1]

	case operators.LogicalAnd, operators.LogicalOr:
		and := n.Overload.Function == operators.LogicalAnd
		decides := func(x result) bool {
			return x.err == nil && value.Truthy(x.val, r.rt) != and
		}
		switch len(f.args) {
		case 0:
			return f.child(n.Args[0]), result{}
		case 1:
			if decides(f.args[0]) {
				return nil, result{val: value.Bool(!and)}
			}
			return f.child(n.Args[1]), result{}
		}
		a, b := f.args[0], f.args[1]
		switch {
		case decides(b):
			return nil, result{val: value.Bool(!and)}
		case a.err != nil:
			return nil, a
		case b.err != nil:
			return nil, b
		}
		return nil, r.call(n, f.args)
	}

	if res, ok := f.failed(); ok {
		return nil, res
	}
	if len(f.args) < len(n.Args) {
		return f.child(n.Args[len(f.args)]), result{}
	}
	return nil, r.call(n, f.args)
}
