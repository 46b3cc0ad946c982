package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ezachrisen/cove/ast"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Error is a compile failure located in the expression text.
// errors.Is matches it against its Kind, one of the cove.Err sentinels.
type Error struct {
	// Kind is the sentinel describing the class of failure.
	Kind error

	// Span of the failing sub-expression.
	Span ast.Span

	// Expr is the text of the failing sub-expression, when known.
	Expr string

	// Signature is the call that could not be resolved, e.g.
	// "size(int)" or "string.startsWith(int)".
	Signature string

	Msg string

	// Err is the underlying failure, if any.
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Span.String())
	if e.Err == nil || !errors.Is(e.Err, e.Kind) {
		fmt.Fprintf(&sb, ": %v", e.Kind)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.Expr != "" {
		fmt.Fprintf(&sb, " (in %q)", e.Expr)
	}
	return sb.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Path is where an expression sits in a larger build, e.g. the rule or
// field it constrains.
type Path string

// LocatedError ties a compile error to the place the expression came from.
type LocatedError struct {
	Path Path
	Src  string
	Err  error
}

func (e *LocatedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LocatedError) Unwrap() error {
	return e.Err
}

// ErrorList collects every failure of a build.
type ErrorList []*LocatedError

// Add appends err, located at path.
func (l *ErrorList) Add(path Path, src string, err error) {
	*l = append(*l, &LocatedError{Path: path, Src: src, Err: err})
}

// Sort orders the list by path, then by message.
func (l ErrorList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Path != l[j].Path {
			return l[i].Path < l[j].Path
		}
		return l[i].Err.Error() < l[j].Err.Error()
	})
}

// Err returns nil for an empty list, otherwise the list itself.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	out := make([]error, len(l))
	for i, e := range l {
		out[i] = e
	}
	return out
}

// String renders the list as a table.
func (l ErrorList) String() string {
	tw := table.NewWriter()
	tw.SetTitle("COMPILE ERRORS")
	tw.AppendHeader(table.Row{"Path", "Loc", "Expression", "Error"})
	for _, e := range l {
		loc, expr := "", e.Src
		msg := e.Err.Error()
		if ce, ok := e.Err.(*Error); ok {
			loc = ce.Span.String()
			if ce.Expr != "" {
				expr = ce.Expr
			}
		}
		tw.AppendRow(table.Row{e.Path, loc, expr, msg})
	}
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}
