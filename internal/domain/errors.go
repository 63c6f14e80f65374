package domain

import "fmt"

// ValidationError rejects malformed input synchronously; nothing is
// persisted when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StateConflictError signals an operation that is illegal in the current
// lifecycle state. CurrentPhase tells the caller where to resume.
type StateConflictError struct {
	CurrentPhase Phase
	Reason       string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("state conflict at phase %s: %s", e.CurrentPhase, e.Reason)
}
