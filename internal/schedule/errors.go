package schedule

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for unknown entry ids.
var ErrNotFound = errors.New("schedule entry not found")

// ParseError reports a malformed interval spec.
type ParseError struct {
	Spec   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid interval %q: %s", e.Spec, e.Reason)
}

// ValidationError reports invalid Create input. It is returned synchronously
// and nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }
