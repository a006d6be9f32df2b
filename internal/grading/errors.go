package grading

import (
	"errors"
	"fmt"
	"strings"
)

// ErrParse marks grader output that does not map onto the expected schema.
var ErrParse = errors.New("grader output is not valid")

// ExternalCallError wraps a transport, auth or timeout failure of a tier.
type ExternalCallError struct {
	Tier  string
	Cause error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("grading tier %s: %v", e.Tier, e.Cause)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Cause
}

// ParseError carries the raw grader text that could not be interpreted.
type ParseError struct {
	Tier   string
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("grading tier %s: %s", e.Tier, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// ChainError is returned when no tier produced a result.
type ChainError struct {
	Failures []TierFailure
}

type TierFailure struct {
	Tier string
	Err  error
}

func (e *ChainError) Error() string {
	if len(e.Failures) == 0 {
		return "no grading tier is configured"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Tier, f.Err))
	}
	return "all grading tiers failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes every tier failure to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}
