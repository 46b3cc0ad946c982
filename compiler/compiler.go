// Package compiler partially evaluates constraint expressions.
//
// Each sub-expression whose inputs are known while compiling is folded to
// a constant using the same overloads the runtime would call. Everything
// else is deferred: it becomes a native.Expr whose calls name the exact
// overload resolution picked for the static types involved. A compiled
// Program is therefore either a constant or a native expression together
// with the runtime bindings it reads.
//
// Compilation walks the expression with an explicit stack, so the depth
// of an expression never grows the Go call stack.
//
// A Compiler is immutable and may be shared by concurrent compilations.
package compiler

import (
	"errors"

	"github.com/ezachrisen/cove"
	"github.com/ezachrisen/cove/ast"
	"github.com/ezachrisen/cove/functions"
	"github.com/ezachrisen/cove/native"
	"github.com/ezachrisen/cove/parser"
	"github.com/ezachrisen/cove/value"
	"github.com/rs/zerolog"
)

// Compiler turns expression text into Programs.
type Compiler struct {
	opts   options
	parser *parser.Parser
	rt     functions.Runtime
}

// New returns a compiler.
func New(opts ...Option) (*Compiler, error) {
	o := options{
		registry: functions.Default(),
		log:      zerolog.Nop(),
		maxDepth: parser.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := functions.CheckEnums(o.enums); err != nil {
		return nil, err
	}
	p, err := parser.New(parser.MaxDepth(o.maxDepth))
	if err != nil {
		return nil, err
	}
	return &Compiler{
		opts:   o,
		parser: p,
		rt:     functions.NewRuntime(o.enums),
	}, nil
}

// Program is a compiled expression.
type Program struct {
	// Source is the expression text.
	Source string

	// Native is the deferred computation, or nil when the expression
	// folded to Value.
	Native native.Expr

	// Value is the folded result of a constant program.
	Value value.Value

	// Type is the static type of the result.
	Type cove.Type

	// Free lists the runtime bindings Native reads.
	Free []native.Binding
}

// Constant reports whether the program folded to a value.
func (p *Program) Constant() bool {
	return p.Native == nil
}

// Expr returns the program as a native expression; a constant program
// is a single Const leaf.
func (p *Program) Expr() native.Expr {
	if p.Native != nil {
		return p.Native
	}
	return native.Constant(p.Value)
}

func (p *Program) String() string {
	if p.Native != nil {
		return native.Format(p.Native)
	}
	return p.Value.String()
}

// Compile parses and compiles src in env. Failures are *Error values
// that errors.Is matches against the cove sentinels.
func (c *Compiler) Compile(src string, env *Env) (*Program, error) {
	e, err := c.parser.Parse(src)
	if err != nil {
		var perrs parser.Errors
		if errors.As(err, &perrs) && len(perrs) > 0 {
			return nil, &Error{Kind: cove.ErrParse, Span: perrs[0].Span, Msg: perrs[0].Message, Expr: src}
		}
		return nil, &Error{Kind: cove.ErrParse, Err: err, Expr: src}
	}
	return c.CompileAST(e, src, env)
}

// CompileAST compiles an already parsed expression. src is used to quote
// failing sub-expressions in errors and may be empty.
func (c *Compiler) CompileAST(e ast.Expr, src string, env *Env) (*Program, error) {
	s := &state{
		Compiler: c,
		src:      src,
		log:      c.opts.log.With().Str("expr", src).Logger(),
	}
	r, err := s.run(e, env)
	if err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}

	p := &Program{Source: src, Type: r.typ}
	if r.constant() {
		p.Value = r.val
		s.log.Debug().Str("value", r.val.String()).Msg("folded to constant")
		return p, nil
	}
	p.Native = r.expr
	p.Free = native.Free(r.expr)
	s.log.Debug().Str("native", native.Format(r.expr)).Int("free", len(p.Free)).Msg("deferred to runtime")
	return p, nil
}
