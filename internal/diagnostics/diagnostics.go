// Package diagnostics provides the checker's collect-all error channel.
// Every recoverable fault found while checking a compilation unit is
// appended to an ErrorSet in discovery order; checking never stops early
// and never panics on user code. A separate panic channel (see
// internal.go) is reserved for defects in the checker itself.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/vela-lang/vela/internal/position"
)

// ErrorKind classifies a type error.
type ErrorKind int

const (
	UndefinedType ErrorKind = iota
	UndefinedValue
	TypeMismatch
	UndefinedEffect
	UnhandledEffect
	EffectViolation
	UnknownOperation
	MutabilityViolation
	VisibilityViolation
	DuplicateDefinition
	WrongNumberOfTypeArguments
	RecursiveType
	ConstraintViolation
	ScopeError
)

// String returns the diagnostic tag for the kind.
func (k ErrorKind) String() string {
	switch k {
	case UndefinedType:
		return "undefined-type"
	case UndefinedValue:
		return "undefined-value"
	case TypeMismatch:
		return "type-mismatch"
	case UndefinedEffect:
		return "undefined-effect"
	case UnhandledEffect:
		return "unhandled-effect"
	case EffectViolation:
		return "effect-violation"
	case UnknownOperation:
		return "unknown-operation"
	case MutabilityViolation:
		return "mutability-violation"
	case VisibilityViolation:
		return "visibility-violation"
	case DuplicateDefinition:
		return "duplicate-definition"
	case WrongNumberOfTypeArguments:
		return "wrong-number-of-type-arguments"
	case RecursiveType:
		return "recursive-type"
	case ConstraintViolation:
		return "constraint-violation"
	case ScopeError:
		return "scope-error"
	default:
		return "unknown"
	}
}

// Severity distinguishes hard errors from advisory diagnostics.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// String returns the printable severity label.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// TypeError is one diagnostic produced while checking.
type TypeError struct {
	Kind     ErrorKind
	Severity Severity
	Span     position.Span
	Message  string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: %s: [%s] %s", e.Span.String(), e.Severity.String(), e.Kind.String(), e.Message)
}

// NewError creates an error-severity diagnostic.
func NewError(kind ErrorKind, span position.Span, format string, args ...interface{}) *TypeError {
	return &TypeError{
		Kind:     kind,
		Severity: SeverityError,
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewWarning creates a warning-severity diagnostic.
func NewWarning(kind ErrorKind, span position.Span, format string, args ...interface{}) *TypeError {
	return &TypeError{
		Kind:     kind,
		Severity: SeverityWarning,
		Span:     span,
		Message:  fmt.Sprintf(format, args...),
	}
}

// ErrorSet is an ordered collection of diagnostics for one check run.
// The zero value is ready to use.
type ErrorSet struct {
	errors []*TypeError
	limit  int // 0 means unlimited
}

// NewErrorSet creates an empty set capped at limit reported errors;
// limit 0 disables the cap.
func NewErrorSet(limit int) *ErrorSet {
	return &ErrorSet{limit: limit}
}

// Add appends a diagnostic, preserving discovery order. Diagnostics
// beyond the configured cap are dropped silently; warnings never count
// against the cap.
func (s *ErrorSet) Add(err *TypeError) {
	if err == nil {
		return
	}

	if s.limit > 0 && err.Severity == SeverityError && s.ErrorCount() >= s.limit {
		return
	}

	s.errors = append(s.errors, err)
}

// Merge appends every diagnostic of other, in order.
func (s *ErrorSet) Merge(other *ErrorSet) {
	if other == nil {
		return
	}

	for _, err := range other.errors {
		s.Add(err)
	}
}

// All returns the diagnostics in discovery order.
func (s *ErrorSet) All() []*TypeError {
	out := make([]*TypeError, len(s.errors))
	copy(out, s.errors)

	return out
}

// ErrorCount returns the number of error-severity diagnostics.
func (s *ErrorSet) ErrorCount() int {
	n := 0
	for _, err := range s.errors {
		if err.Severity == SeverityError {
			n++
		}
	}

	return n
}

// Len returns the total number of diagnostics, warnings included.
func (s *ErrorSet) Len() int {
	return len(s.errors)
}

// HasErrors reports whether any error-severity diagnostic was collected.
func (s *ErrorSet) HasErrors() bool {
	return s.ErrorCount() > 0
}

// CountKind returns how many diagnostics of the given kind were collected.
func (s *ErrorSet) CountKind(kind ErrorKind) int {
	n := 0
	for _, err := range s.errors {
		if err.Kind == kind {
			n++
		}
	}

	return n
}

// Error implements the error interface, rendering one line per diagnostic.
func (s *ErrorSet) Error() string {
	if len(s.errors) == 0 {
		return "no errors"
	}

	var lines []string
	for _, err := range s.errors {
		lines = append(lines, err.Error())
	}

	return strings.Join(lines, "\n")
}

// AsError returns s as an error when it holds at least one hard error,
// nil otherwise. This is the checker's overall result convention.
func (s *ErrorSet) AsError() error {
	if s.HasErrors() {
		return s
	}

	return nil
}
