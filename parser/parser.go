// Package parser turns constraint expression text into an ast.Expr.
//
// Lexing and parsing are delegated to the cel-go parser, configured
// without macros so that comprehensions and has() arrive as ordinary
// calls. The resulting tree is then converted iteratively, recognizing
// the comprehension macros along the way, so that deeply nested input
// never grows the Go call stack during conversion.
package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ezachrisen/cove/ast"
	"github.com/ezachrisen/cove/value"
	"github.com/google/cel-go/common"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	celparser "github.com/google/cel-go/parser"
)

// DefaultMaxDepth is the nesting limit applied when none is configured.
const DefaultMaxDepth = 250

// Error is a single problem found while parsing.
type Error struct {
	Span    ast.Span
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Span, e.Message)
}

// Errors is the list of problems found in one expression.
type Errors []*Error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, x := range e {
		msgs[i] = x.Error()
	}
	return strings.Join(msgs, "; ")
}

// Parser parses constraint expressions. A Parser is safe for concurrent use.
type Parser struct {
	p *celparser.Parser
}

type options struct {
	maxDepth int
}

// Option configures a Parser.
type Option func(o *options)

// MaxDepth limits the nesting depth of parsed expressions.
// Default: DefaultMaxDepth
func MaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

// New returns a parser.
func New(opts ...Option) (*Parser, error) {
	o := options{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	p, err := celparser.NewParser(celparser.MaxRecursionDepth(o.maxDepth))
	if err != nil {
		return nil, fmt.Errorf("creating parser: %w", err)
	}
	return &Parser{p: p}, nil
}

// Parse parses src. On failure the error is an Errors value.
func (p *Parser) Parse(src string) (ast.Expr, error) {
	parsed, errs := p.p.Parse(common.NewTextSource(src))
	if errs != nil && len(errs.GetErrors()) > 0 {
		var out Errors
		for _, e := range errs.GetErrors() {
			out = append(out, &Error{
				Span:    ast.Span{Line: e.Location.Line(), Column: e.Location.Column()},
				Message: e.Message,
			})
		}
		return nil, out
	}

	c := converter{src: src, info: parsed.SourceInfo(), built: map[int64]ast.Expr{}}
	if !isASCII(src) {
		for i := range src {
			c.runes = append(c.runes, i)
		}
		c.runes = append(c.runes, len(src))
	}
	return c.convert(parsed.Expr())
}

// Parse parses src with a default parser.
func Parse(src string) (ast.Expr, error) {
	p, err := New()
	if err != nil {
		return nil, err
	}
	return p.Parse(src)
}

type converter struct {
	src   string
	info  *celast.SourceInfo
	built map[int64]ast.Expr

	// runes maps code point offsets, as recorded by the CEL parser, to
	// byte offsets. It is nil for ASCII input.
	runes []int
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

type item struct {
	e        celast.Expr
	expanded bool
}

// convert walks the CEL tree in post-order using an explicit stack.
func (c *converter) convert(root celast.Expr) (ast.Expr, error) {
	stack := []item{{e: root}}
	for len(stack) > 0 {
		top := len(stack) - 1
		if !stack[top].expanded {
			stack[top].expanded = true
			kids, err := c.children(stack[top].e)
			if err != nil {
				return nil, err
			}
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, item{e: kids[i]})
			}
			continue
		}

		e := stack[top].e
		stack = stack[:top]
		node, err := c.build(e)
		if err != nil {
			return nil, err
		}
		c.built[e.ID()] = node
	}
	return c.built[root.ID()], nil
}

func (c *converter) children(e celast.Expr) ([]celast.Expr, error) {
	switch e.Kind() {
	case celast.LiteralKind, celast.IdentKind:
		return nil, nil
	case celast.SelectKind:
		return []celast.Expr{e.AsSelect().Operand()}, nil
	case celast.CallKind:
		call := e.AsCall()
		var kids []celast.Expr
		if call.IsMemberFunction() {
			kids = append(kids, call.Target())
		}
		return append(kids, call.Args()...), nil
	case celast.ListKind:
		return e.AsList().Elements(), nil
	case celast.MapKind:
		var kids []celast.Expr
		for _, entry := range e.AsMap().Entries() {
			me := entry.AsMapEntry()
			kids = append(kids, me.Key(), me.Value())
		}
		return kids, nil
	}
	return nil, c.errorf(e, "unsupported expression")
}

func (c *converter) span(e celast.Expr) ast.Span {
	loc := c.info.GetStartLocation(e.ID())
	s := ast.Span{Line: loc.Line(), Column: loc.Column()}
	if r, ok := c.info.GetOffsetRange(e.ID()); ok {
		s.Start, s.End = c.byteOffset(int(r.Start)), c.byteOffset(int(r.Stop))
	}
	return s
}

func (c *converter) byteOffset(i int) int {
	if c.runes == nil {
		return min(i, len(c.src))
	}
	if i < 0 || i >= len(c.runes) {
		return len(c.src)
	}
	return c.runes[i]
}

// cover widens s to include the spans of kids. The CEL parser locates
// an operation at its operator token only.
func cover(s ast.Span, kids ...ast.Expr) ast.Span {
	for _, k := range kids {
		if k == nil {
			continue
		}
		ks := k.Span()
		if ks.Start < s.Start {
			s.Start, s.Line, s.Column = ks.Start, ks.Line, ks.Column
		}
		if ks.End > s.End {
			s.End = ks.End
		}
	}
	return s
}

// closeWith extends s over the closing delimiter that follows it.
func (c *converter) closeWith(s ast.Span, delim byte) ast.Span {
	i := s.End
	for i < len(c.src) && (c.src[i] == ' ' || c.src[i] == '\t' || c.src[i] == '\n' || c.src[i] == '\r' || c.src[i] == ',') {
		i++
	}
	if i < len(c.src) && c.src[i] == delim {
		s.End = i + 1
	}
	return s
}

// extendOver extends s over word when it follows, possibly after spaces.
func (c *converter) extendOver(s ast.Span, word string) ast.Span {
	i := s.End
	for i < len(c.src) && c.src[i] == ' ' {
		i++
	}
	if strings.HasPrefix(c.src[i:], word) {
		s.End = i + len(word)
	}
	return s
}

// openWith extends s back over a function name that precedes it.
func (c *converter) openWith(s ast.Span, name string) ast.Span {
	i := s.Start
	for i > 0 && c.src[i-1] == ' ' {
		i--
	}
	if i >= len(name) && c.src[i-len(name):i] == name {
		shift := s.Start - (i - len(name))
		s.Start -= shift
		s.Column -= shift
	}
	return s
}

func isOperator(fn string) bool {
	return strings.HasPrefix(fn, "_") || strings.HasSuffix(fn, "_") || strings.HasPrefix(fn, "@")
}

func (c *converter) errorf(e celast.Expr, format string, args ...any) error {
	return Errors{{Span: c.span(e), Message: fmt.Sprintf(format, args...)}}
}

func (c *converter) build(e celast.Expr) (ast.Expr, error) {
	pos := c.span(e)
	switch e.Kind() {
	case celast.LiteralKind:
		v, err := literal(e.AsLiteral())
		if err != nil {
			return nil, c.errorf(e, "%v", err)
		}
		return &ast.Literal{Pos: pos, Value: v}, nil

	case celast.IdentKind:
		return &ast.Ident{Pos: pos, Name: e.AsIdent()}, nil

	case celast.SelectKind:
		sel := e.AsSelect()
		operand := c.built[sel.Operand().ID()]
		return &ast.Select{
			Pos:      c.extendOver(cover(pos, operand), sel.FieldName()),
			Operand:  operand,
			Field:    sel.FieldName(),
			TestOnly: sel.IsTestOnly(),
		}, nil

	case celast.ListKind:
		l := e.AsList()
		if len(l.OptionalIndices()) > 0 {
			return nil, c.errorf(e, "optional list elements are not supported")
		}
		elems := make([]ast.Expr, 0, len(l.Elements()))
		for _, x := range l.Elements() {
			elems = append(elems, c.built[x.ID()])
		}
		return &ast.CreateList{Pos: c.closeWith(cover(pos, elems...), ']'), Elems: elems}, nil

	case celast.MapKind:
		var entries []ast.MapEntry
		var kids []ast.Expr
		for _, entry := range e.AsMap().Entries() {
			me := entry.AsMapEntry()
			if me.IsOptional() {
				return nil, c.errorf(e, "optional map entries are not supported")
			}
			k, v := c.built[me.Key().ID()], c.built[me.Value().ID()]
			entries = append(entries, ast.MapEntry{Key: k, Value: v})
			kids = append(kids, k, v)
		}
		return &ast.CreateMap{Pos: c.closeWith(cover(pos, kids...), '}'), Entries: entries}, nil

	case celast.CallKind:
		return c.buildCall(e, pos)
	}
	return nil, c.errorf(e, "unsupported expression")
}

func (c *converter) buildCall(e celast.Expr, pos ast.Span) (ast.Expr, error) {
	call := e.AsCall()
	fn := call.FunctionName()

	args := make([]ast.Expr, 0, len(call.Args()))
	for _, a := range call.Args() {
		args = append(args, c.built[a.ID()])
	}
	var target ast.Expr
	if call.IsMemberFunction() {
		target = c.built[call.Target().ID()]
	}
	pos = cover(pos, append([]ast.Expr{target}, args...)...)
	switch {
	case fn == operators.Index:
		pos = c.closeWith(pos, ']')
	case !isOperator(fn):
		if target == nil {
			pos = c.openWith(pos, fn)
		}
		pos = c.closeWith(pos, ')')
	}

	if !call.IsMemberFunction() {
		if fn == "has" {
			if len(args) != 1 {
				return nil, c.errorf(e, "has() takes exactly one argument")
			}
			sel, ok := args[0].(*ast.Select)
			if !ok {
				return nil, c.errorf(e, "has() argument must be a field selection")
			}
			test := *sel
			test.TestOnly = true
			args[0] = &test
		}
		return &ast.Call{Pos: pos, Function: fn, Args: args}, nil
	}

	kind, ok := ast.ComprehensionKinds[fn]
	if !ok {
		return &ast.Call{Pos: pos, Target: target, Function: fn, Args: args}, nil
	}

	switch len(args) {
	case 2:
		x, ok := args[0].(*ast.Ident)
		if !ok {
			return nil, c.errorf(e, "%s() variable must be a simple identifier", fn)
		}
		return &ast.Comprehension{Pos: pos, Kind: kind, Source: target, Binder: x.Name, Body: args[1]}, nil
	case 3:
		k, ok1 := args[0].(*ast.Ident)
		v, ok2 := args[1].(*ast.Ident)
		if !ok1 || !ok2 {
			return nil, c.errorf(e, "%s() variables must be simple identifiers", fn)
		}
		if k.Name == v.Name {
			return nil, c.errorf(e, "%s() variables must be distinct", fn)
		}
		return &ast.Comprehension{Pos: pos, Kind: kind, Source: target, Binder: k.Name, Binder2: v.Name, Body: args[2]}, nil
	}
	return nil, c.errorf(e, "%s() takes two or three arguments, got %d", fn, len(args))
}

func literal(v any) (value.Value, error) {
	switch x := v.(type) {
	case types.Bool:
		return value.Bool(bool(x)), nil
	case types.Int:
		return value.Int(int64(x)), nil
	case types.Uint:
		return value.Uint(uint64(x)), nil
	case types.Double:
		return value.Double(float64(x)), nil
	case types.String:
		return value.String(string(x)), nil
	case types.Bytes:
		return value.Bytes([]byte(x)), nil
	case types.Null:
		return value.Null(), nil
	}
	return value.Value{}, fmt.Errorf("unsupported literal %v", v)
}
