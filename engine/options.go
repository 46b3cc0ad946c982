package engine

import (
	"runtime"

	"github.com/ezachrisen/cove/compiler"
	"github.com/ezachrisen/cove/value"
	"github.com/rs/zerolog"
)

const defaultDepth = 100

// See the functional definitions below for the meaning.
type EngineOptions struct {
	Concurrency     int
	CompilerOptions []compiler.Option
	Enums           value.Enums
	Evaluator       Evaluator
	Logger          zerolog.Logger
}

type EngineOption func(f *EngineOptions)

// Given an array of EngineOption functions, apply their effect
// on the EngineOptions struct.
func applyEngineOptions(o *EngineOptions, opts ...EngineOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// Concurrency limits the number of expressions compiled at once.
// Default: runtime.GOMAXPROCS(0)
func Concurrency(n int) EngineOption {
	return func(f *EngineOptions) {
		f.Concurrency = n
	}
}

// WithCompilerOptions passes options to the compiler.
func WithCompilerOptions(opts ...compiler.Option) EngineOption {
	return func(f *EngineOptions) {
		f.CompilerOptions = append(f.CompilerOptions, opts...)
	}
}

// WithEnums sets how enum values are named, both when folding and when
// evaluating.
func WithEnums(e value.Enums) EngineOption {
	return func(f *EngineOptions) {
		f.Enums = e
	}
}

// WithEvaluator replaces the reference runtime used by Eval.
func WithEvaluator(e Evaluator) EngineOption {
	return func(f *EngineOptions) {
		f.Evaluator = e
	}
}

// WithLogger sets the engine's logger. Compile summaries are logged at
// info level, per-rule detail at debug level.
// Default: zerolog.Nop()
func WithLogger(l zerolog.Logger) EngineOption {
	return func(f *EngineOptions) {
		f.Logger = l
	}
}

func defaultEngineOptions() EngineOptions {
	return EngineOptions{
		Concurrency: runtime.GOMAXPROCS(0),
		Logger:      zerolog.Nop(),
	}
}

// EvalOptions determine how the engine behaves when evaluating a rule.
type EvalOptions struct {
	// Maximum depth of child rules to evaluate.
	MaxDepth int

	// Do not evaluate child rules if the parent's expression is false.
	StopIfParentNegative bool

	// Stop evaluating children after the first failing child.
	StopFirstNegativeChild bool

	// Stop evaluating children after the first passing child.
	StopFirstPositiveChild bool

	// Leave passing children out of the results.
	DiscardPass bool

	// Leave failing children out of the results.
	DiscardFail bool

	// Sort child rules before evaluating them. Set when compiling.
	SortFunc func(a, b *Rule) bool
}

type EvalOption func(f *EvalOptions)

func defaultEvalOptions() EvalOptions {
	return EvalOptions{MaxDepth: defaultDepth}
}

func applyEvalOptions(o *EvalOptions, opts ...EvalOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// MaxDepth limits how many levels of child rules are evaluated.
// Default: 100
func MaxDepth(d int) EvalOption {
	return func(f *EvalOptions) {
		f.MaxDepth = d
	}
}

// StopIfParentNegative prevents the evaluation of child rules if the
// parent rule's expression is false.
// Default: off
func StopIfParentNegative(b bool) EvalOption {
	return func(f *EvalOptions) {
		f.StopIfParentNegative = b
	}
}

// StopFirstNegativeChild stops the evaluation of child rules once the
// first failing child has been found.
// Default: off
func StopFirstNegativeChild(b bool) EvalOption {
	return func(f *EvalOptions) {
		f.StopFirstNegativeChild = b
	}
}

// StopFirstPositiveChild stops the evaluation of child rules once the
// first passing child has been found.
// Default: off
func StopFirstPositiveChild(b bool) EvalOption {
	return func(f *EvalOptions) {
		f.StopFirstPositiveChild = b
	}
}

// DiscardPass omits passing child rules from the results.
// Default: off
func DiscardPass(b bool) EvalOption {
	return func(f *EvalOptions) {
		f.DiscardPass = b
	}
}

// DiscardFail omits failing child rules from the results.
// Default: off
func DiscardFail(b bool) EvalOption {
	return func(f *EvalOptions) {
		f.DiscardFail = b
	}
}

// SortFunc sets the order child rules are evaluated in. It applies when
// given as an option of a rule being compiled.
// Default: alphabetical by ID
func SortFunc(less func(a, b *Rule) bool) EvalOption {
	return func(f *EvalOptions) {
		f.SortFunc = less
	}
}
