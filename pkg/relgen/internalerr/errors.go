package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSyntax           = errors.New("syntax error")
	ErrInvalidAction    = errors.New("invalid action")
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownPredicate = errors.New("unknown predicate")
	ErrArity            = errors.New("arity mismatch")
	ErrNotNumeric       = errors.New("numeric value expected")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)
