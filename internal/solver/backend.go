package solver

import (
	"context"
)

// Result is the outcome of one satisfiability check.
type Result int

const (
	ResultSat Result = iota
	ResultUnsat
	ResultUnknown
)

// String returns the printable result name.
func (r Result) String() string {
	switch r {
	case ResultSat:
		return "sat"
	case ResultUnsat:
		return "unsat"
	case ResultUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Assignment is one variable's value in a satisfying model.
type Assignment struct {
	Name  string
	Value string
}

// Context is one solver session. Contexts are not assumed thread-safe;
// the Pool hands out at most one caller per context. Every Check call
// carries an explicit deadline through ctx; exceeding it yields
// ResultUnknown, never an indefinite block.
type Context interface {
	// DeclareConst introduces a fresh constant of the given sort.
	DeclareConst(name string, sort Sort) error
	// Assert adds a formula to the current assertion frame.
	Assert(term Term) error
	// Push opens a scoped hypothetical assertion frame.
	Push() error
	// Pop discards the innermost frame.
	Pop() error
	// Check decides satisfiability of the asserted formulas.
	Check(ctx context.Context) (Result, error)
	// Model returns the satisfying assignment after a sat Check, one
	// entry per declared constant.
	Model() ([]Assignment, error)
	// Close releases the session.
	Close() error
}

// Backend creates solver contexts. Any conforming solver is
// interchangeable behind this interface.
type Backend interface {
	// Name identifies the backend in configuration and diagnostics.
	Name() string
	// CreateContext opens a fresh session.
	CreateContext(ctx context.Context) (Context, error)
}
