package compiler

import (
	"fmt"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/ast"
	"github.com/ezachrisen/cove/native"
	"github.com/ezachrisen/cove/value"
)

// item is one iteration of a comprehension over a known source: the
// values bound to the binders and the value filter keeps.
type item struct {
	first, second value.Value
	keep          value.Value
}

// loop is the progress of a comprehension frame. While unrolling, the
// body is compiled once per item with the binders known. If a body turns
// out to depend on runtime data the loop switches to a template, which
// compiles the body once with the binders typed instead.
type loop struct {
	items    []item
	next     int
	template bool

	acc     []value.Value
	matches int
	pending *operand
}

func (s *state) comprehension(f *frame, n *ast.Comprehension) (*frame, operand, error) {
	if len(f.args) == 0 {
		return f.child(n.Source), operand{}, nil
	}
	src := f.args[0]

	if f.loop == nil {
		if src.err != nil {
			return nil, src, nil
		}
		if !src.constant() {
			f.loop = &loop{template: true}
			return s.template(f, n, src.typ)
		}
		items, err := s.items(n, src.val)
		if err != nil {
			return nil, operand{}, err
		}
		f.loop = &loop{items: items}
	}

	l := f.loop
	if l.template {
		if len(f.args) < 2 {
			return nil, operand{}, fmt.Errorf("comprehension template has no body")
		}
		return s.finishTemplate(n, src, f.args[1])
	}

	if len(f.args) > 1 {
		body := f.args[1]
		f.args = f.args[:1]
		if !body.constant() && body.err == nil {
			s.log.Debug().Str("kind", n.Kind.String()).Msg("body depends on runtime data, compiling template")
			l.template = true
			return s.template(f, n, src.typ)
		}
		if r, done := s.combine(n, l, body); done {
			return nil, r, nil
		}
		l.next++
	}

	if l.next < len(l.items) {
		it := l.items[l.next]
		env := f.env.localConst(n.Binder, it.first)
		if n.Binder2 != "" {
			env = env.localConst(n.Binder2, it.second)
		}
		return &frame{node: n.Body, env: env}, operand{}, nil
	}
	return nil, s.result(n, l), nil
}

// combine folds one body result into the loop. It reports done when the
// result of the whole comprehension is decided.
func (s *state) combine(n *ast.Comprehension, l *loop, body operand) (operand, bool) {
	it := l.items[l.next]
	if body.err != nil {
		switch n.Kind {
		case ast.AllKind, ast.ExistsKind:
			// a later item may still decide the result
			if l.pending == nil {
				l.pending = &body
			}
			return operand{}, false
		}
		return body, true
	}

	truth := value.Truthy(body.val, s.rt)
	switch n.Kind {
	case ast.AllKind:
		if !truth {
			return known(value.Bool(false)), true
		}
	case ast.ExistsKind:
		if truth {
			return known(value.Bool(true)), true
		}
	case ast.ExistsOneKind:
		if truth {
			l.matches++
		}
	case ast.MapKind:
		l.acc = append(l.acc, body.val)
	case ast.FilterKind:
		if truth {
			l.acc = append(l.acc, it.keep)
		}
	}
	return operand{}, false
}

func (s *state) result(n *ast.Comprehension, l *loop) operand {
	switch n.Kind {
	case ast.AllKind, ast.ExistsKind:
		if l.pending != nil {
			return *l.pending
		}
		return known(value.Bool(n.Kind == ast.AllKind))
	case ast.ExistsOneKind:
		return known(value.Bool(l.matches == 1))
	}
	return known(value.List(l.acc...))
}

func (s *state) items(n *ast.Comprehension, v value.Value) ([]item, error) {
	two := n.Binder2 != ""
	switch v.Kind() {
	case cove.ListKind:
		elems := v.Elems()
		out := make([]item, len(elems))
		for i, e := range elems {
			if two {
				out[i] = item{first: value.Int(int64(i)), second: e, keep: e}
			} else {
				out[i] = item{first: e, keep: e}
			}
		}
		return out, nil
	case cove.MapKind:
		entries := v.Entries()
		out := make([]item, len(entries))
		for i, e := range entries {
			if two {
				out[i] = item{first: e.Key, second: e.Value, keep: e.Key}
			} else {
				out[i] = item{first: value.List(e.Key, e.Value), keep: e.Key}
			}
		}
		return out, nil
	}
	return nil, s.errorf(cove.ErrNoMatchingOverload, n, fmt.Sprintf("%s.%s()", v.Type(), n.Kind), nil, "comprehensions need a list or a map")
}

// binderTypes returns the static types of the binders for a source of
// type t.
func (s *state) binderTypes(n *ast.Comprehension, t cove.Type) (cove.Type, cove.Type, error) {
	two := n.Binder2 != ""
	switch t.Kind() {
	case cove.ListKind:
		if two {
			return cove.Int{}, cove.Elem(t), nil
		}
		return cove.Elem(t), nil, nil
	case cove.MapKind:
		k, v := cove.KeyValue(t)
		if two {
			return k, v, nil
		}
		return cove.List{ValueType: cove.Join(k, v)}, nil, nil
	case cove.DynKind:
		return cove.Dyn{}, cove.Dyn{}, nil
	}
	return nil, nil, s.errorf(cove.ErrNoMatchingOverload, n, fmt.Sprintf("%s.%s()", t, n.Kind), nil, "comprehensions need a list or a map")
}

func (s *state) template(f *frame, n *ast.Comprehension, t cove.Type) (*frame, operand, error) {
	b1, b2, err := s.binderTypes(n, t)
	if err != nil {
		return nil, operand{}, err
	}
	env := f.env.local(n.Binder, b1)
	if n.Binder2 != "" {
		env = env.local(n.Binder2, b2)
	}
	return &frame{node: n.Body, env: env}, operand{}, nil
}

func (s *state) finishTemplate(n *ast.Comprehension, src, body operand) (*frame, operand, error) {
	if body.err != nil {
		return nil, operand{}, body.err
	}

	var typ cove.Type
	switch n.Kind {
	case ast.MapKind:
		typ = cove.List{ValueType: body.typ}
	case ast.FilterKind:
		switch src.typ.Kind() {
		case cove.ListKind:
			typ = cove.List{ValueType: cove.Elem(src.typ)}
		case cove.MapKind:
			k, _ := cove.KeyValue(src.typ)
			typ = cove.List{ValueType: k}
		default:
			typ = cove.List{ValueType: cove.Dyn{}}
		}
	default:
		typ = cove.Bool{}
	}

	return nil, deferred(&native.Loop{
		Kind:    n.Kind,
		Source:  src.leaf(),
		Binder:  n.Binder,
		Binder2: n.Binder2,
		Body:    body.leaf(),
		Typ:     typ,
	}), nil
}
