package types

import (
	"fmt"
)

// ScopeError reports an illegal scope operation, such as exiting the
// sole global scope. The environment is left unchanged when one is
// returned.
type ScopeError struct {
	Op string
}

// Error implements the error interface.
func (e *ScopeError) Error() string {
	return fmt.Sprintf("scope error: %s", e.Op)
}

// DuplicateError reports a name already bound in the current scope.
// Shadowing across scopes is allowed; rebinding within one is not.
type DuplicateError struct {
	What string // "type", "variable" or "effect"
	Name string
}

// Error implements the error interface.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s definition: %s", e.What, e.Name)
}

// VarBinding is one variable bound in a scope.
type VarBinding struct {
	Type    ID
	Mutable bool
}

// Scope holds the bindings introduced at one nesting level.
type Scope struct {
	variables map[string]VarBinding
	types     map[string]ID
	effects   map[string]struct{}
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{
		variables: make(map[string]VarBinding),
		types:     make(map[string]ID),
		effects:   make(map[string]struct{}),
	}
}

// Environment is the vector-backed stack of scopes the checker pushes
// and pops as it descends declarations. Index 0 is the global scope;
// it can never be popped. Lookups walk from the innermost scope
// outward and stop at the first match, which is what gives shadowing.
type Environment struct {
	scopes []*Scope
}

// NewEnvironment creates an environment holding only the global scope.
func NewEnvironment() *Environment {
	return &Environment{scopes: []*Scope{NewScope()}}
}

// ScopeLevel returns the current stack depth; the global scope alone
// is level 1.
func (env *Environment) ScopeLevel() int {
	return len(env.scopes)
}

// EnterScope pushes a fresh innermost scope.
func (env *Environment) EnterScope() {
	env.scopes = append(env.scopes, NewScope())
}

// ExitScope pops the innermost scope, discarding its bindings. Popping
// the sole global scope fails with a ScopeError and mutates nothing.
func (env *Environment) ExitScope() error {
	if len(env.scopes) <= 1 {
		return &ScopeError{Op: "cannot exit the global scope"}
	}

	env.scopes = env.scopes[:len(env.scopes)-1]

	return nil
}

func (env *Environment) current() *Scope {
	if len(env.scopes) == 0 {
		// The constructor guarantees a global scope; an empty stack is
		// a checker defect.
		panic("environment scope stack underflow")
	}

	return env.scopes[len(env.scopes)-1]
}

// RegisterType binds a type name in the current scope. Rebinding a
// name already present in this scope fails and keeps the first binding.
func (env *Environment) RegisterType(name string, id ID) error {
	scope := env.current()
	if _, exists := scope.types[name]; exists {
		return &DuplicateError{What: "type", Name: name}
	}

	scope.types[name] = id

	return nil
}

// RegisterVariable binds a variable in the current scope.
func (env *Environment) RegisterVariable(name string, id ID, mutable bool) error {
	scope := env.current()
	if _, exists := scope.variables[name]; exists {
		return &DuplicateError{What: "variable", Name: name}
	}

	scope.variables[name] = VarBinding{Type: id, Mutable: mutable}

	return nil
}

// RegisterEffect marks an effect as visible in the current scope.
func (env *Environment) RegisterEffect(name string) error {
	scope := env.current()
	if _, exists := scope.effects[name]; exists {
		return &DuplicateError{What: "effect", Name: name}
	}

	scope.effects[name] = struct{}{}

	return nil
}

// LookupType walks the scope chain outward and returns the first
// binding for name.
func (env *Environment) LookupType(name string) (ID, bool) {
	for i := len(env.scopes) - 1; i >= 0; i-- {
		if id, ok := env.scopes[i].types[name]; ok {
			return id, true
		}
	}

	return NoType, false
}

// LookupVariable walks the scope chain outward and returns the first
// binding for name.
func (env *Environment) LookupVariable(name string) (VarBinding, bool) {
	for i := len(env.scopes) - 1; i >= 0; i-- {
		if b, ok := env.scopes[i].variables[name]; ok {
			return b, true
		}
	}

	return VarBinding{Type: NoType}, false
}

// HasEffect reports whether an effect is visible from the current scope.
func (env *Environment) HasEffect(name string) bool {
	for i := len(env.scopes) - 1; i >= 0; i-- {
		if _, ok := env.scopes[i].effects[name]; ok {
			return true
		}
	}

	return false
}
