package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine and its collaborators.
var (
	// ErrNotFound signals a reference-data miss (formulary, label, or
	// evidence lookup). Recovered locally by omitting the dependent
	// field or candidate; never propagated to the caller.
	ErrNotFound = errors.New("not found")

	// ErrLLMUnavailable signals that no model client is configured.
	ErrLLMUnavailable = errors.New("llm client not configured")

	// ErrLLMMalformed signals a non-parseable or schema-invalid model
	// response. Triggers rule-based fallback; never surfaced.
	ErrLLMMalformed = errors.New("malformed llm response")
)

// ValidationError represents an input validation failure. It is the only
// error class surfaced to the caller as a hard failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
