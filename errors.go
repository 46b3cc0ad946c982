package cove

import "errors"

// Errors reported while compiling constraint expressions. The compiler
// wraps these in structured errors that carry the source span and the
// attempted signature; use errors.Is to classify them.
var (
	// ErrParse is returned for malformed expression text.
	ErrParse = errors.New("parse error")

	// ErrUnknownIdentifier is returned when an identifier has no binding.
	ErrUnknownIdentifier = errors.New("unknown identifier")

	// ErrNoMatchingOverload is returned when no function overload accepts
	// the argument types in the required context.
	ErrNoMatchingOverload = errors.New("no matching overload")

	// ErrAmbiguousOverload indicates a defect in the function registry:
	// two overloads are equally specific for the same argument types.
	ErrAmbiguousOverload = errors.New("ambiguous overload")

	// ErrConversion is returned when a conversion cannot be performed on
	// a compile-time constant in a position that requires a value.
	ErrConversion = errors.New("conversion failure")

	// ErrEvaluation is returned when evaluating a constant sub-expression
	// fails, for example on integer overflow or division by zero.
	ErrEvaluation = errors.New("evaluation failure")

	// ErrDuplicateEnum is returned when two vtables are registered for the
	// same enum tag.
	ErrDuplicateEnum = errors.New("duplicate enum registration")
)
