package circuit

import (
	"errors"
	"fmt"
)

// ErrUnknownAction is the cause of a BuildError for a rule that does not
// declare exactly one of forward, respond or deny.
var ErrUnknownAction = errors.New("unrecognized action kind")

// BuildError reports a rule that could not be compiled.
type BuildError struct {
	// Ordinal is the declaration index of the offending rule.
	Ordinal int

	// Rule is the rule name, if any.
	Rule string

	// Reason describes what failed.
	Reason string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	msg := fmt.Sprintf("rule %d", e.Ordinal)
	if e.Rule != "" {
		msg += fmt.Sprintf(" (%s)", e.Rule)
	}
	msg += ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BuildError for the same rule ordinal.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	return ok && t.Ordinal == e.Ordinal
}

func newBuildError(ordinal int, rule, reason string, cause error) *BuildError {
	return &BuildError{Ordinal: ordinal, Rule: rule, Reason: reason, Cause: cause}
}
