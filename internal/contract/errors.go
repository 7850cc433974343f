package contract

import "errors"

// Validation errors for contract values.
var (
	ErrInvalidRole      = errors.New("role must be user or assistant")
	ErrUnknownProvider  = errors.New("unknown llm provider")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
