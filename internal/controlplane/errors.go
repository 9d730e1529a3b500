package controlplane

import (
	"errors"
	"fmt"
)

// Sentinel errors for control plane operations.
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrPayloadTooLarge  = errors.New("request entity too large")
	ErrMalformedRequest = errors.New("malformed request body")
)

// ValidationError reports a request field that failed validation. No
// subprocess is started for a request that produced one.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
