package compiler

import (
	"github.com/ezachrisen/cove/ast"
	"github.com/ezachrisen/cove/functions"
	"github.com/ezachrisen/cove/value"
	"github.com/rs/zerolog"
)

// Resolution reports one overload choice made while compiling.
type Resolution struct {
	Span     ast.Span
	Function string
	Overload string
	Context  functions.Context
}

type options struct {
	registry  *functions.Registry
	enums     value.Enums
	log       zerolog.Logger
	onResolve func(Resolution)
	maxDepth  int
}

// Option configures a Compiler.
type Option func(o *options)

// WithRegistry sets the function registry calls resolve against.
// Default: functions.Default()
func WithRegistry(r *functions.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithEnums sets how enum values are named when string() is folded at
// compile time. Without it enums print as numbers.
func WithEnums(e value.Enums) Option {
	return func(o *options) {
		o.enums = e
	}
}

// WithLogger sets the logger for the fold and defer trace, written at
// debug level.
// Default: zerolog.Nop()
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// OnResolve registers f to observe every overload resolution.
func OnResolve(f func(Resolution)) Option {
	return func(o *options) {
		o.onResolve = f
	}
}

// MaxDepth limits the nesting depth of compiled expressions.
// Default: parser.DefaultMaxDepth
func MaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}
