package transform

import "errors"

// Sentinel errors shared by the script interpreter.
var (
	ErrUnsafeOperation   = errors.New("unsafe operation attempted")
	ErrEvaluationTimeout = errors.New("expression evaluation timed out")
	ErrInvalidExpression = errors.New("invalid expression syntax")
	ErrUndefinedVariable = errors.New("undefined variable")
	ErrTypeMismatch      = errors.New("type mismatch")
)
