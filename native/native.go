// Package native defines the deferred form of a constraint: the tree an
// expression compiles to when part of it depends on runtime data.
//
// Every leaf carries its static type and every operation names the exact
// overload resolution chose, so a renderer can emit code without making
// any typing decisions of its own. Trees are immutable once built.
package native

import (
	"sort"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/ast"
	"github.com/ezachrisen/cove/functions"
	"github.com/ezachrisen/cove/value"
)

// Expr is a node of a native expression.
type Expr interface {
	// Type is the static type of the value the node produces.
	Type() cove.Type
	nativeNode()
}

// Const is a value known at compile time.
type Const struct {
	Value value.Value
	Typ   cove.Type
}

// Constant returns a Const typed by its value.
func Constant(v value.Value) *Const {
	return &Const{Value: v, Typ: v.Type()}
}

// Var reads a binding. Local variables are comprehension binders; all
// others are supplied by the caller at runtime.
type Var struct {
	Name  string
	Typ   cove.Type
	Local bool
}

// Call applies a resolved overload. For member calls the receiver is
// Args[0].
type Call struct {
	Overload *functions.Overload
	Args     []Expr
	Typ      cove.Type
}

// Select reads a field of a message or a string keyed map.
type Select struct {
	Operand Expr
	Field   string
	Typ     cove.Type
}

// MakeList builds a list.
type MakeList struct {
	Elems []Expr
	Typ   cove.Type
}

// Entry is a key and value of a MakeMap.
type Entry struct {
	Key   Expr
	Value Expr
}

// MakeMap builds a map. Keys must be distinct at runtime.
type MakeMap struct {
	Entries []Entry
	Typ     cove.Type
}

// Loop is a comprehension whose source is only known at runtime. Body
// is compiled once with the binders as local variables.
type Loop struct {
	Kind    ast.ComprehensionKind
	Source  Expr
	Binder  string
	Binder2 string
	Body    Expr
	Typ     cove.Type
}

func (e *Const) Type() cove.Type    { return e.Typ }
func (e *Var) Type() cove.Type      { return e.Typ }
func (e *Call) Type() cove.Type     { return e.Typ }
func (e *Select) Type() cove.Type   { return e.Typ }
func (e *MakeList) Type() cove.Type { return e.Typ }
func (e *MakeMap) Type() cove.Type  { return e.Typ }
func (e *Loop) Type() cove.Type     { return e.Typ }

func (*Const) nativeNode()    {}
func (*Var) nativeNode()      {}
func (*Call) nativeNode()     {}
func (*Select) nativeNode()   {}
func (*MakeList) nativeNode() {}
func (*MakeMap) nativeNode()  {}
func (*Loop) nativeNode()     {}

// Children returns the direct sub-expressions of e in evaluation order.
func Children(e Expr) []Expr {
	switch x := e.(type) {
	case *Call:
		return x.Args
	case *Select:
		return []Expr{x.Operand}
	case *MakeList:
		return x.Elems
	case *MakeMap:
		out := make([]Expr, 0, 2*len(x.Entries))
		for _, en := range x.Entries {
			out = append(out, en.Key, en.Value)
		}
		return out
	case *Loop:
		return []Expr{x.Source, x.Body}
	}
	return nil
}

// Walk visits e and its descendants in pre-order. Returning false from f
// skips the children of the node.
func Walk(e Expr, f func(Expr) bool) {
	stack := []Expr{e}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f(n) {
			continue
		}
		kids := Children(n)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
}

// Binding is a runtime input of a native expression.
type Binding struct {
	Name string
	Type cove.Type
}

// Free returns the non-local variables read by e, sorted by name.
func Free(e Expr) []Binding {
	seen := map[string]cove.Type{}
	Walk(e, func(n Expr) bool {
		if v, ok := n.(*Var); ok && !v.Local {
			seen[v.Name] = v.Typ
		}
		return true
	})
	out := make([]Binding, 0, len(seen))
	for n, t := range seen {
		out = append(out, Binding{Name: n, Type: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Overloads returns the IDs of the overloads e calls, in pre-order.
func Overloads(e Expr) []string {
	var ids []string
	Walk(e, func(n Expr) bool {
		if c, ok := n.(*Call); ok {
			ids = append(ids, c.Overload.ID)
		}
		return true
	})
	return ids
}
