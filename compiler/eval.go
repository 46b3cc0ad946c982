package compiler

import (
	"fmt"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/ast"
	"github.com/ezachrisen/cove/functions"
	"github.com/ezachrisen/cove/native"
	"github.com/ezachrisen/cove/value"
	"github.com/rs/zerolog"
)

// operand is the compiled form of a sub-expression: a known value, a
// deferred native expression, or a failure found while folding. Folding
// failures are carried rather than raised at once so that the logical
// operators and the conditional can discard them, as they would at
// runtime.
type operand struct {
	val  value.Value
	expr native.Expr
	err  *Error
	typ  cove.Type
}

func known(v value.Value) operand {
	return operand{val: v, typ: v.Type()}
}

func deferred(e native.Expr) operand {
	return operand{expr: e, typ: e.Type()}
}

func (o operand) constant() bool {
	return o.expr == nil && o.err == nil
}

func (o operand) leaf() native.Expr {
	if o.expr != nil {
		return o.expr
	}
	return native.Constant(o.val)
}

// frame is one node being compiled. args accumulates the results of the
// node's children as they complete.
type frame struct {
	node ast.Expr
	env  *Env
	args []operand
	loop *loop
}

func (f *frame) child(e ast.Expr) *frame {
	return &frame{node: e, env: f.env}
}

type state struct {
	*Compiler
	src string
	log zerolog.Logger
}

// run compiles root in post-order. Each step either pushes a child
// frame or completes the top frame, whose result is handed to its parent.
func (s *state) run(root ast.Expr, env *Env) (operand, error) {
	stack := []*frame{{node: root, env: env}}
	for {
		f := stack[len(stack)-1]
		next, res, err := s.step(f)
		if err != nil {
			return operand{}, err
		}
		if next != nil {
			stack = append(stack, next)
			continue
		}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return res, nil
		}
		p := stack[len(stack)-1]
		p.args = append(p.args, res)
	}
}

func (s *state) step(f *frame) (*frame, operand, error) {
	switch n := f.node.(type) {
	case *ast.Literal:
		return nil, known(n.Value), nil

	case *ast.Ident:
		r, err := s.ident(n, f.env)
		return nil, r, err

	case *ast.Select:
		if len(f.args) == 0 {
			return f.child(n.Operand), operand{}, nil
		}
		r, err := s.selectField(n, f.args[0])
		return nil, r, err

	case *ast.Call:
		kids := callChildren(n)
		if len(f.args) < len(kids) {
			return f.child(kids[len(f.args)]), operand{}, nil
		}
		r, err := s.call(n, f.args)
		return nil, r, err

	case *ast.CreateList:
		if len(f.args) < len(n.Elems) {
			return f.child(n.Elems[len(f.args)]), operand{}, nil
		}
		r, err := s.list(n, f.args)
		return nil, r, err

	case *ast.CreateMap:
		if i := len(f.args); i < 2*len(n.Entries) {
			en := n.Entries[i/2]
			if i%2 == 0 {
				return f.child(en.Key), operand{}, nil
			}
			return f.child(en.Value), operand{}, nil
		}
		r, err := s.mapLiteral(n, f.args)
		return nil, r, err

	case *ast.Comprehension:
		return s.comprehension(f, n)
	}
	return nil, operand{}, s.errorf(cove.ErrParse, f.node, "", nil, "unsupported expression %T", f.node)
}

func callChildren(n *ast.Call) []ast.Expr {
	if n.Target == nil {
		return n.Args
	}
	return append([]ast.Expr{n.Target}, n.Args...)
}

func (s *state) errorf(kind error, n ast.Expr, sig string, err error, format string, args ...any) *Error {
	e := &Error{Kind: kind, Signature: sig, Err: err, Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Span = n.Span()
		e.Expr = e.Span.Text(s.src)
	}
	return e
}

// failed records a folding failure as an operand.
func (s *state) failed(n ast.Expr, err error) operand {
	s.log.Debug().Err(err).Str("at", n.Span().String()).Msg("fold failed")
	return operand{err: s.errorf(cove.ErrEvaluation, n, "", err, ""), typ: cove.Dyn{}}
}

func (s *state) ident(n *ast.Ident, env *Env) (operand, error) {
	b, ok := env.Lookup(n.Name)
	if !ok {
		return operand{}, s.errorf(cove.ErrUnknownIdentifier, n, "", nil, "undeclared reference to %q", n.Name)
	}
	if b.Constant {
		return known(b.Value), nil
	}
	return deferred(&native.Var{Name: n.Name, Typ: b.Type, Local: b.local}), nil
}

func (s *state) selectField(n *ast.Select, o operand) (operand, error) {
	if o.err != nil {
		return o, nil
	}
	if n.TestOnly {
		return s.has(n, o)
	}

	if o.constant() {
		v, err := value.Field(o.val, n.Field)
		if err != nil {
			return s.failed(n, err), nil
		}
		return known(v), nil
	}

	var ft cove.Type
	switch t := o.typ.(type) {
	case *cove.Message:
		f, ok := t.Field(n.Field)
		if !ok {
			return operand{}, s.errorf(cove.ErrUnknownIdentifier, n, "", nil, "%s has no field %q", t, n.Field)
		}
		ft = f
	case cove.Map:
		k, v := cove.KeyValue(t)
		if k.Kind() != cove.StringKind && k.Kind() != cove.DynKind {
			return operand{}, s.errorf(cove.ErrNoMatchingOverload, n, fmt.Sprintf("%s.%s", t, n.Field), nil, "field selection needs string keys")
		}
		ft = v
	case cove.Dyn:
		ft = cove.Dyn{}
	default:
		return operand{}, s.errorf(cove.ErrNoMatchingOverload, n, fmt.Sprintf("%s.%s", o.typ, n.Field), nil, "type has no fields")
	}
	return deferred(&native.Select{Operand: o.expr, Field: n.Field, Typ: ft}), nil
}

// has is decided while compiling: by the schema for messages, and by the
// value for constant maps.
func (s *state) has(n *ast.Select, o operand) (operand, error) {
	if o.constant() && o.val.Kind() == cove.MapKind {
		_, ok := o.val.Get(value.String(n.Field))
		return known(value.Bool(ok)), nil
	}
	if m, ok := o.typ.(*cove.Message); ok {
		_, declared := m.Field(n.Field)
		return known(value.Bool(declared)), nil
	}
	sig := fmt.Sprintf("has(%s.%s)", o.typ, n.Field)
	return operand{}, s.errorf(cove.ErrNoMatchingOverload, n, sig, nil, "has() needs a message or a constant map in %s context", functions.CompileTime)
}

func (s *state) list(n *ast.CreateList, args []operand) (operand, error) {
	vals := make([]value.Value, 0, len(args))
	var elem cove.Type
	deferredElem := false
	for i, a := range args {
		if a.err != nil {
			return a, nil
		}
		if !a.constant() {
			deferredElem = true
		}
		vals = append(vals, a.val)
		if i == 0 {
			elem = a.typ
		} else {
			elem = cove.Join(elem, a.typ)
		}
	}
	if !deferredElem {
		return known(value.List(vals...)), nil
	}

	elems := make([]native.Expr, len(args))
	for i, a := range args {
		elems[i] = a.leaf()
	}
	return deferred(&native.MakeList{Elems: elems, Typ: cove.List{ValueType: elem}}), nil
}

func validKeyKind(k cove.Kind) bool {
	switch k {
	case cove.StringKind, cove.IntKind, cove.UintKind, cove.BoolKind, cove.DynKind:
		return true
	}
	return false
}

func (s *state) mapLiteral(n *ast.CreateMap, args []operand) (operand, error) {
	var key, val cove.Type
	allConst := true
	for i, a := range args {
		if a.err != nil {
			return a, nil
		}
		if !a.constant() {
			allConst = false
		}
		if i%2 == 0 {
			if !validKeyKind(a.typ.Kind()) {
				return operand{}, s.errorf(cove.ErrConversion, n.Entries[i/2].Key, "", nil, "%s is not a valid map key type", a.typ)
			}
			if i == 0 {
				key = a.typ
			} else {
				key = cove.Join(key, a.typ)
			}
		} else {
			if i == 1 {
				val = a.typ
			} else {
				val = cove.Join(val, a.typ)
			}
		}
	}

	if allConst {
		entries := make([]value.Entry, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			entries = append(entries, value.Entry{Key: args[i].val, Value: args[i+1].val})
		}
		m, err := value.Map(entries...)
		if err != nil {
			return s.failed(n, err), nil
		}
		return known(m), nil
	}

	entries := make([]native.Entry, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		entries = append(entries, native.Entry{Key: args[i].leaf(), Value: args[i+1].leaf()})
	}
	return deferred(&native.MakeMap{Entries: entries, Typ: cove.Map{KeyType: key, ValueType: val}}), nil
}
