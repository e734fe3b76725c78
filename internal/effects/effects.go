// Package effects implements the static effect analysis: the per-unit
// effect and handler tables built by the collect pass, and the stacks
// the usage pass maintains while descending function bodies. The
// analysis is syntax-directed and conservative: a body that mentions an
// effectful operation requires that effect for its entire extent.
package effects

import (
	"fmt"

	set "github.com/hashicorp/go-set/v3"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/position"
	"github.com/vela-lang/vela/internal/types"
)

// Operation is one declared operation of an effect.
type Operation struct {
	Name   string
	Params []types.ID
	Return types.ID
	Span   position.Span
}

// Decl is one registered effect with its operations and the handlers
// attached so far.
type Decl struct {
	Name       string
	Span       position.Span
	Operations map[string]*Operation
	Handlers   []*Handler
	Type       types.ID // Type-level view, KindEffect
}

// Handler is a registered handler discharging one effect.
type Handler struct {
	Name       string
	Effect     string
	Span       position.Span
	Operations map[string]*ast.HandlerOp
	State      types.ID // Carried state type, NoType when stateless
}

// UnknownEffectError reports a reference to an effect that was never
// declared. It is a checked error, never a crash.
type UnknownEffectError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownEffectError) Error() string {
	return fmt.Sprintf("unknown effect: %s", e.Name)
}

// Table is the per-unit registry of effects and handlers.
type Table struct {
	effects  map[string]*Decl
	handlers map[string]*Handler
	order    []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		effects:  make(map[string]*Decl),
		handlers: make(map[string]*Handler),
	}
}

// Register adds an effect declaration. A second declaration of the same
// name fails and keeps the first.
func (t *Table) Register(decl *Decl) error {
	if _, exists := t.effects[decl.Name]; exists {
		return fmt.Errorf("effect %s already declared", decl.Name)
	}

	t.effects[decl.Name] = decl
	t.order = append(t.order, decl.Name)

	return nil
}

// Lookup returns the declaration of an effect.
func (t *Table) Lookup(name string) (*Decl, bool) {
	d, ok := t.effects[name]

	return d, ok
}

// Names returns the registered effect names in declaration order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)

	return out
}

// RegisterHandler resolves the handler's target effect and attaches the
// handler to both the effect and the global handler table. A missing
// target is an UnknownEffectError.
func (t *Table) RegisterHandler(h *Handler) error {
	decl, ok := t.effects[h.Effect]
	if !ok {
		return &UnknownEffectError{Name: h.Effect}
	}

	if _, exists := t.handlers[h.Name]; exists {
		return fmt.Errorf("handler %s already declared", h.Name)
	}

	decl.Handlers = append(decl.Handlers, h)
	t.handlers[h.Name] = h

	return nil
}

// HandlerFor reports whether any handler discharging the effect is
// visible.
func (t *Table) HandlerFor(effect string) bool {
	d, ok := t.effects[effect]

	return ok && len(d.Handlers) > 0
}

// HasOperation reports whether the effect declares the operation.
func (t *Table) HasOperation(effect, op string) bool {
	d, ok := t.effects[effect]
	if !ok {
		return false
	}

	_, ok = d.Operations[op]

	return ok
}

// ===== Effect stack =====

// Stack tracks the declared effect set of each enclosing function while
// the usage pass descends bodies. Frames are pushed on function entry
// and popped on exit, strictly LIFO.
type Stack struct {
	frames []*set.Set[string]
}

// NewStack creates an empty effect stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push enters a function whose declared effect set is effects.
func (s *Stack) Push(effects []string) {
	s.frames = append(s.frames, set.From(effects))
}

// Pop leaves the current function. Popping an empty stack is a checker
// defect.
func (s *Stack) Pop() {
	if len(s.frames) == 0 {
		panic("effect stack underflow")
	}

	s.frames = s.frames[:len(s.frames)-1]
}

// Depth returns the number of frames.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Declares reports whether the innermost function's declared effect set
// contains the effect, i.e. the function may propagate it to callers.
func (s *Stack) Declares(effect string) bool {
	if len(s.frames) == 0 {
		return false
	}

	return s.frames[len(s.frames)-1].Contains(effect)
}

// ===== Region stack =====

// Regions tracks nested region declarations. An effect used inside a
// region must be listed by that region and by every enclosing one.
type Regions struct {
	frames []regionFrame
}

type regionFrame struct {
	name    string
	allowed *set.Set[string]
}

// NewRegions creates an empty region stack.
func NewRegions() *Regions {
	return &Regions{}
}

// Push enters a region permitting the given effects.
func (r *Regions) Push(name string, allowed []string) {
	r.frames = append(r.frames, regionFrame{name: name, allowed: set.From(allowed)})
}

// Pop leaves the innermost region.
func (r *Regions) Pop() {
	if len(r.frames) == 0 {
		panic("region stack underflow")
	}

	r.frames = r.frames[:len(r.frames)-1]
}

// Violation returns the name of the innermost region that does not
// permit the effect, or "" when every enclosing region does.
func (r *Regions) Violation(effect string) string {
	for i := len(r.frames) - 1; i >= 0; i-- {
		if !r.frames[i].allowed.Contains(effect) {
			return r.frames[i].name
		}
	}

	return ""
}

// Depth returns the number of nested regions.
func (r *Regions) Depth() int {
	return len(r.frames)
}
