package diagnostics

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// InternalError is the payload carried by panics raised on checker
// defects (scope-stack underflow, registry entries the collect pass
// should have guaranteed). It is never surfaced as a TypeError: reaching
// one means the checker itself is broken, not the program under check.
type InternalError struct {
	Where   string
	Message string
	State   interface{}
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal checker error in %s: %s", e.Where, e.Message)
}

// Dump renders the captured state for bug reports.
func (e *InternalError) Dump() string {
	if e.State == nil {
		return e.Error()
	}

	return e.Error() + "\nstate:\n" + spew.Sdump(e.State)
}

// Internalf panics with an InternalError. Callers pass the component
// name, the broken invariant, and the state that witnessed it.
func Internalf(where string, state interface{}, format string, args ...interface{}) {
	panic(&InternalError{
		Where:   where,
		Message: fmt.Sprintf(format, args...),
		State:   state,
	})
}
