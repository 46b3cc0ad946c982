package compiler

import (
	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/value"
)

// Binding is what the environment knows about a name: either its value,
// or only its static type when the value is supplied at runtime.
type Binding struct {
	Name     string
	Constant bool
	Value    value.Value
	Type     cove.Type

	// local marks comprehension binders.
	local bool
}

// Env maps names to bindings. It is persistent: extending an Env returns
// a new one and never changes the receiver, so a comprehension's binders
// are visible only through the environment handed to its body. The nil
// *Env is the empty environment.
type Env struct {
	parent *Env
	b      Binding
}

// NewEnv returns an environment with every element of the schemas bound
// to its type.
func NewEnv(schemas ...*cove.Schema) *Env {
	var e *Env
	for _, s := range schemas {
		if s == nil {
			continue
		}
		for _, d := range s.Elements {
			e = e.Type(d.Name, d.Type)
		}
	}
	return e
}

// Const returns e extended with name bound to a known value.
func (e *Env) Const(name string, v value.Value) *Env {
	return &Env{parent: e, b: Binding{Name: name, Constant: true, Value: v, Type: v.Type()}}
}

// Type returns e extended with name bound to a runtime value of type t.
func (e *Env) Type(name string, t cove.Type) *Env {
	return &Env{parent: e, b: Binding{Name: name, Type: t}}
}

func (e *Env) local(name string, t cove.Type) *Env {
	return &Env{parent: e, b: Binding{Name: name, Type: t, local: true}}
}

func (e *Env) localConst(name string, v value.Value) *Env {
	return &Env{parent: e, b: Binding{Name: name, Constant: true, Value: v, Type: v.Type(), local: true}}
}

// Lookup returns the innermost binding of name.
func (e *Env) Lookup(name string) (Binding, bool) {
	for ; e != nil; e = e.parent {
		if e.b.Name == name {
			return e.b, true
		}
	}
	return Binding{}, false
}

// Names returns the visible names, innermost first, without duplicates.
func (e *Env) Names() []string {
	seen := map[string]bool{}
	var out []string
	for ; e != nil; e = e.parent {
		if !seen[e.b.Name] {
			seen[e.b.Name] = true
			out = append(out, e.b.Name)
		}
	}
	return out
}
