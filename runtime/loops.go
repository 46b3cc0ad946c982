package runtime

import (
	"fmt"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/ast"
	"github.com/ezachrisen/cove/native"
	"github.com/ezachrisen/cove/value"
)

// item is one iteration: the binder values and the value filter keeps.
type item struct {
	first, second value.Value
	keep          value.Value
}

type loop struct {
	items   []item
	next    int
	acc     []value.Value
	matches int
	pending *result
}

func (r *run) comprehension(f *frame, n *native.Loop) (*frame, result) {
	if len(f.args) == 0 {
		return f.child(n.Source), result{}
	}

	if f.loop == nil {
		src := f.args[0]
		if src.err != nil {
			return nil, src
		}
		items, err := items(n, src.val)
		if err != nil {
			return nil, result{err: err}
		}
		f.loop = &loop{items: items}
	}
	l := f.loop

	if len(f.args) > 1 {
		body := f.args[1]
		f.args = f.args[:1]
		if res, done := r.combine(n, l, body); done {
			return nil, res
		}
		l.next++
	}

	if l.next < len(l.items) {
		it := l.items[l.next]
		s := f.scope.bind(n.Binder, it.first)
		if n.Binder2 != "" {
			s = s.bind(n.Binder2, it.second)
		}
		return &frame{node: n.Body, scope: s}, result{}
	}
	return nil, finish(n, l)
}

// combine folds one body result into the loop and reports whether the
// comprehension is decided. existsOne is decided by a second match.
func (r *run) combine(n *native.Loop, l *loop, body result) (result, bool) {
	if body.err != nil {
		switch n.Kind {
		case ast.AllKind, ast.ExistsKind:
			if l.pending == nil {
				l.pending = &body
			}
			return result{}, false
		}
		return body, true
	}

	truth := value.Truthy(body.val, r.rt)
	switch n.Kind {
	case ast.AllKind:
		if !truth {
			return result{val: value.Bool(false)}, true
		}
	case ast.ExistsKind:
		if truth {
			return result{val: value.Bool(true)}, true
		}
	case ast.ExistsOneKind:
		if truth {
			l.matches++
			if l.matches > 1 {
				return result{val: value.Bool(false)}, true
			}
		}
	case ast.MapKind:
		l.acc = append(l.acc, body.val)
	case ast.FilterKind:
		if truth {
			l.acc = append(l.acc, l.items[l.next].keep)
		}
	}
	return result{}, false
}

func finish(n *native.Loop, l *loop) result {
	switch n.Kind {
	case ast.AllKind, ast.ExistsKind:
		if l.pending != nil {
			return *l.pending
		}
		return result{val: value.Bool(n.Kind == ast.AllKind)}
	case ast.ExistsOneKind:
		return result{val: value.Bool(l.matches == 1)}
	}
	return result{val: value.List(l.acc...)}
}

// items lists the iterations over v. A single binder visits list
// elements or [key, value] pairs; two binders get index and element, or
// key and value. Filter keeps elements of a list and keys of a map.
func items(n *native.Loop, v value.Value) ([]item, error) {
	if n.Binder2 == "" {
		vals, err := value.Iter(v)
		if err != nil {
			return nil, &Error{Overload: n.Kind.String(), Err: err}
		}
		out := make([]item, len(vals))
		for i, x := range vals {
			keep := x
			if v.Kind() == cove.MapKind {
				keep = x.Elems()[0]
			}
			out[i] = item{first: x, keep: keep}
		}
		return out, nil
	}

	switch v.Kind() {
	case cove.ListKind:
		elems := v.Elems()
		out := make([]item, len(elems))
		for i, e := range elems {
			out[i] = item{first: value.Int(int64(i)), second: e, keep: e}
		}
		return out, nil
	case cove.MapKind:
		entries := v.Entries()
		out := make([]item, len(entries))
		for i, e := range entries {
			out[i] = item{first: e.Key, second: e.Value, keep: e.Key}
		}
		return out, nil
	}
	return nil, &Error{Overload: n.Kind.String(), Err: fmt.Errorf("cannot iterate over %s", v.Type())}
}
