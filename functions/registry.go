// Package functions holds the function registry: the static table of
// overloads that both constant folding and native code generation
// resolve calls against.
//
// An overload is identified by its function name, call style and
// parameter kinds. Resolution picks the most specific overload for the
// static kinds of the arguments: an exact kind match scores higher than
// a numeric widening to double, which scores higher than a parameter
// that accepts any kind. Each function may also carry a dynamic fallback
// that is only considered when an argument's static type is dyn.
//
// Registries are immutable once built and safe for concurrent use.
package functions

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/value"
)

// Context is the set of evaluation contexts an overload is valid in.
type Context uint8

const (
	// CompileTime overloads may be evaluated while compiling, on constants.
	CompileTime Context = 1 << iota
	// Native overloads may be emitted into generated code.
	Native
	// Both contexts.
	Both = CompileTime | Native
)

func (c Context) String() string {
	switch c {
	case CompileTime:
		return "compile-time"
	case Native:
		return "native"
	case Both:
		return "compile-time+native"
	}
	return "none"
}

// Style is the set of call syntaxes an overload accepts.
type Style uint8

const (
	// Global calls are written f(x, y).
	Global Style = 1 << iota
	// Member calls are written x.f(y); the receiver is the first parameter.
	Member
	// Either syntax.
	Either = Global | Member
)

// Runtime supplies what an overload needs beyond its arguments.
type Runtime interface {
	value.Enums
	value.EnumNumbers

	// Regexp compiles a pattern, typically through a cache.
	Regexp(pattern string) (*regexp.Regexp, error)
}

// Overload describes one implementation of a function.
type Overload struct {
	// ID is the canonical identity of the operation, e.g. "size_string".
	// Native expressions reference it so a renderer knows exactly which
	// runtime primitive to call.
	ID string

	// Function is the name the overload is called by.
	Function string

	// Style restricts the call syntax.
	Style Style

	// Params are the parameter kinds, receiver first for member calls.
	// cove.DynKind accepts an argument of any kind.
	Params []cove.Kind

	// Contexts the overload is valid in.
	Contexts Context

	// Fallback overloads apply only when some argument is statically dyn.
	// They dispatch on the runtime variant of their arguments.
	Fallback bool

	// NonStrict overloads do not need all of their arguments evaluated:
	// the logical operators and the conditional.
	NonStrict bool

	// Result computes the static result type from the argument types.
	Result func(args []cove.Type) cove.Type

	// Eval computes the result from concrete values.
	Eval func(rt Runtime, args []value.Value) (value.Value, error)
}

func (o *Overload) String() string {
	return o.ID
}

// Call converts the arguments to the overload's parameter kinds, as
// resolution may have matched them by widening, and evaluates.
func (o *Overload) Call(rt Runtime, args []value.Value) (value.Value, error) {
	if o.Fallback {
		return o.Eval(rt, args)
	}
	var widened []value.Value
	for i, k := range o.Params {
		if k != cove.DoubleKind || args[i].Kind() == k || !args[i].Kind().Numeric() {
			continue
		}
		if widened == nil {
			widened = append([]value.Value(nil), args...)
		}
		v, err := value.ToDouble(args[i])
		if err != nil {
			return value.Value{}, err
		}
		widened[i] = v
	}
	if widened != nil {
		args = widened
	}
	return o.Eval(rt, args)
}

// Registry is an immutable set of overloads.
type Registry struct {
	byName map[string][]*Overload
	byID   map[string]*Overload
}

// New builds a registry from overloads. It verifies that IDs are unique
// and that no combination of argument kinds resolves ambiguously in any
// context; either defect is reported as an error.
func New(overloads ...*Overload) (*Registry, error) {
	r := &Registry{
		byName: map[string][]*Overload{},
		byID:   map[string]*Overload{},
	}
	for _, o := range overloads {
		if _, ok := r.byID[o.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate overload id %s", cove.ErrAmbiguousOverload, o.ID)
		}
		r.byID[o.ID] = o
		r.byName[o.Function] = append(r.byName[o.Function], o)
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	return r, nil
}

// check resolves every tuple of kinds for every function, arity, style
// and context, failing on the first ambiguity.
func (r *Registry) check() error {
	for _, name := range r.Functions() {
		name := name
		arities := map[int]bool{}
		// Kinds beyond those named by some parameter behave alike, so
		// one representative (string or bytes) is enough.
		relevant := map[cove.Kind]bool{cove.IntKind: true, cove.UintKind: true, cove.DynKind: true, cove.NullKind: true, cove.StringKind: true, cove.BytesKind: true}
		for _, o := range r.byName[name] {
			arities[len(o.Params)] = true
			for _, k := range o.Params {
				relevant[k] = true
			}
		}
		var kinds []cove.Kind
		for _, k := range cove.Kinds {
			if relevant[k] {
				kinds = append(kinds, k)
			}
		}
		for n := range arities {
			tuple := make([]cove.Kind, n)
			var err error
			forEachTuple(tuple, kinds, 0, func(kinds []cove.Kind) bool {
				for _, member := range []bool{false, true} {
					for _, ctx := range []Context{CompileTime, Native} {
						if _, _, e := r.resolveKinds(name, member, kinds, ctx); e != nil && isAmbiguous(e) {
							err = e
							return false
						}
					}
				}
				return true
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func forEachTuple(tuple, kinds []cove.Kind, i int, f func([]cove.Kind) bool) bool {
	if i == len(tuple) {
		return f(tuple)
	}
	for _, k := range kinds {
		tuple[i] = k
		if !forEachTuple(tuple, kinds, i+1, f) {
			return false
		}
	}
	return true
}

type ambiguousError struct{ error }

func isAmbiguous(err error) bool {
	_, ok := err.(ambiguousError)
	return ok
}

// Functions returns the names of all registered functions, sorted.
func (r *Registry) Functions() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Overloads returns the overloads of a function.
func (r *Registry) Overloads(function string) []*Overload {
	return append([]*Overload(nil), r.byName[function]...)
}

// ByID returns the overload with the given ID.
func (r *Registry) ByID(id string) (*Overload, bool) {
	o, ok := r.byID[id]
	return o, ok
}

// Has reports whether any overload of function exists.
func (r *Registry) Has(function string) bool {
	return len(r.byName[function]) > 0
}

// Resolve returns the most specific overload of function accepting args
// in the given context. member reports whether the call was written with
// a receiver, which is then args[0]. It returns the overload and the
// static result type, or an error wrapping cove.ErrNoMatchingOverload or
// cove.ErrAmbiguousOverload.
func (r *Registry) Resolve(function string, member bool, args []cove.Type, ctx Context) (*Overload, cove.Type, error) {
	kinds := make([]cove.Kind, len(args))
	for i, a := range args {
		kinds[i] = a.Kind()
	}
	o, _, err := r.resolveKinds(function, member, kinds, ctx)
	if err != nil {
		if isAmbiguous(err) {
			return nil, nil, err.(ambiguousError).error
		}
		return nil, nil, fmt.Errorf("%w: %s in %s context", cove.ErrNoMatchingOverload, cove.Signature(function, member, args), ctx)
	}
	return o, o.Result(args), nil
}

func (r *Registry) resolveKinds(function string, member bool, kinds []cove.Kind, ctx Context) (*Overload, int, error) {
	style := Global
	if member {
		style = Member
	}
	anyDyn := false
	for _, k := range kinds {
		if k == cove.DynKind {
			anyDyn = true
		}
	}

	var best []*Overload
	bestScore := -2
	for _, o := range r.byName[function] {
		if o.Style&style == 0 || o.Contexts&ctx == 0 || len(o.Params) != len(kinds) {
			continue
		}
		s, ok := score(o, kinds, anyDyn)
		if !ok {
			continue
		}
		switch {
		case s > bestScore:
			best, bestScore = []*Overload{o}, s
		case s == bestScore:
			best = append(best, o)
		}
	}

	switch len(best) {
	case 0:
		return nil, 0, fmt.Errorf("no overload")
	case 1:
		return best[0], bestScore, nil
	}
	ids := make([]string, len(best))
	for i, o := range best {
		ids[i] = o.ID
	}
	return nil, 0, ambiguousError{fmt.Errorf("%w: %s(%s) matches %s",
		cove.ErrAmbiguousOverload, function, kindList(kinds), strings.Join(ids, ", "))}
}

func kindList(kinds []cove.Kind) string {
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = k.String()
	}
	return strings.Join(s, ", ")
}

// score rates how well an overload fits. Exact matches score 2 per
// argument, widening to double 1 and any-kind parameters 0. Fallbacks
// score -1 and only apply when some argument is dyn.
func score(o *Overload, kinds []cove.Kind, anyDyn bool) (int, bool) {
	if o.Fallback {
		return -1, anyDyn
	}
	total := 0
	for i, p := range o.Params {
		k := kinds[i]
		switch {
		case p == cove.DynKind:
		case k == p:
			total += 2
		case p == cove.DoubleKind && (k == cove.IntKind || k == cove.UintKind):
			total++
		default:
			return 0, false
		}
	}
	return total, true
}

// Rejected returns the position of the first argument that no overload
// of function with this arity, call style and context accepts, or false
// if every argument is accepted by some overload on its own. For member
// calls position 0 is the receiver.
func (r *Registry) Rejected(function string, member bool, args []cove.Type, ctx Context) (int, bool) {
	style := Global
	if member {
		style = Member
	}
	var candidates []*Overload
	for _, o := range r.byName[function] {
		if o.Style&style != 0 && o.Contexts&ctx != 0 && !o.Fallback && len(o.Params) == len(args) {
			candidates = append(candidates, o)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	for i, a := range args {
		k := a.Kind()
		accepted := false
		for _, o := range candidates {
			if p := o.Params[i]; p == cove.DynKind || p == k || p == cove.DoubleKind && (k == cove.IntKind || k == cove.UintKind) {
				accepted = true
				break
			}
		}
		if !accepted {
			return i, true
		}
	}
	return 0, false
}

// ArgumentError describes which argument of a call failed, for messages
// such as "2nd argument of startsWith". i is a position as returned by
// Rejected.
func ArgumentError(function string, member bool, i int, err error) error {
	if member {
		if i == 0 {
			return fmt.Errorf("receiver of %s: %w", function, err)
		}
		i--
	}
	return fmt.Errorf("%s argument of %s: %w", humanize.Ordinal(i+1), function, err)
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry of built-in functions. It panics if the
// built-in table is inconsistent, which is a programming error.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := New(Builtins()...)
		if err != nil {
			panic(err)
		}
		defaultReg = r
	})
	return defaultReg
}
