// Package ast defines the parsed form of a constraint expression.
//
// Operators are represented as calls to their built-in names (for
// example "_+_" or "_?_:_"), so the compiler treats every operation
// uniformly through the function registry. Comprehension macros and
// field selection have their own node types. Trees are immutable once
// parsed.
package ast

import (
	"fmt"

	"github.com/ezachrisen/cove/value"
)

// Span locates a node in the expression text. Offsets are byte offsets;
// lines and columns are 1-based and 0-based respectively, as reported by
// the CEL parser.
type Span struct {
	Start  int
	End    int
	Line   int
	Column int
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// Text returns the part of src covered by the span.
func (s Span) Text(src string) string {
	if s.Start < 0 || s.End > len(src) || s.Start >= s.End {
		return ""
	}
	return src[s.Start:s.End]
}

// Expr is a node of the expression tree.
type Expr interface {
	Span() Span
	exprNode()
}

// Literal is a constant written in the expression.
type Literal struct {
	Pos   Span
	Value value.Value
}

// Ident is a reference to a name in the environment.
type Ident struct {
	Pos  Span
	Name string
}

// Select is a field access, a.b. A test-only select is the argument of
// has().
type Select struct {
	Pos      Span
	Operand  Expr
	Field    string
	TestOnly bool
}

// Call applies a function or operator. Target is nil for global calls.
type Call struct {
	Pos      Span
	Target   Expr
	Function string
	Args     []Expr
}

// CreateList is a list literal.
type CreateList struct {
	Pos   Span
	Elems []Expr
}

// MapEntry is a single entry of a map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// CreateMap is a map literal.
type CreateMap struct {
	Pos     Span
	Entries []MapEntry
}

// ComprehensionKind names the comprehension macros.
type ComprehensionKind int

const (
	MapKind ComprehensionKind = iota
	FilterKind
	AllKind
	ExistsKind
	ExistsOneKind
)

var comprehensionNames = map[ComprehensionKind]string{
	MapKind:       "map",
	FilterKind:    "filter",
	AllKind:       "all",
	ExistsKind:    "exists",
	ExistsOneKind: "existsOne",
}

func (k ComprehensionKind) String() string {
	return comprehensionNames[k]
}

// ComprehensionKinds maps macro names to kinds. exists_one is accepted as
// an alias of existsOne.
//
// Every macro takes either one binder or two, so the three argument form
// m.map(k, v, body) binds a key and a value. The standard CEL reading of
// x.map(v, pred, transform) as a filter followed by a map is not
// supported; write x.filter(v, pred).map(v, transform) instead.
var ComprehensionKinds = map[string]ComprehensionKind{
	"map":        MapKind,
	"filter":     FilterKind,
	"all":        AllKind,
	"exists":     ExistsKind,
	"existsOne":  ExistsOneKind,
	"exists_one": ExistsOneKind,
}

// Comprehension iterates Source, binding each item to Binder (and, in
// the two variable form, the key or index to Binder and the value to
// Binder2) while evaluating Body.
type Comprehension struct {
	Pos     Span
	Kind    ComprehensionKind
	Source  Expr
	Binder  string
	Binder2 string
	Body    Expr
}

func (e *Literal) Span() Span       { return e.Pos }
func (e *Ident) Span() Span         { return e.Pos }
func (e *Select) Span() Span        { return e.Pos }
func (e *Call) Span() Span          { return e.Pos }
func (e *CreateList) Span() Span    { return e.Pos }
func (e *CreateMap) Span() Span     { return e.Pos }
func (e *Comprehension) Span() Span { return e.Pos }

func (*Literal) exprNode()       {}
func (*Ident) exprNode()         {}
func (*Select) exprNode()        {}
func (*Call) exprNode()          {}
func (*CreateList) exprNode()    {}
func (*CreateMap) exprNode()     {}
func (*Comprehension) exprNode() {}
