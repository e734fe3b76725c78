package checker

import (
	"context"
	"strings"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/diagnostics"
	"github.com/vela-lang/vela/internal/effects"
	"github.com/vela-lang/vela/internal/position"
	"github.com/vela-lang/vela/internal/solver"
	"github.com/vela-lang/vela/internal/types"
)

// ConstraintKind tags the three obligation forms the checker emits.
type ConstraintKind int

const (
	// ConstraintSubtype requires Left <: Right.
	ConstraintSubtype ConstraintKind = iota
	// ConstraintEffectHandled requires the effect to be dischargeable
	// where it is used.
	ConstraintEffectHandled
	// ConstraintPredicate requires a refinement or dependent predicate
	// to hold; validity is delegated to the solver bridge.
	ConstraintPredicate
)

// Constraint is one obligation. Constraints are transient: the
// collector discharges each one the moment it is emitted and nothing
// persists across declarations.
type Constraint struct {
	Kind ConstraintKind
	Span position.Span

	// Subtype fields.
	Left  types.ID
	Right types.ID

	// Effect fields.
	Effect  string
	Context string

	// Predicate fields. For refinement obligations Base carries the
	// hypothesis type and Var the bound name; for dependent obligations
	// Params carries the sorts.
	Base      types.ID
	Var       string
	Params    []types.DependentParam
	Predicate ast.Expression
}

// Collector consumes constraints as they are emitted, turning failures
// into diagnostics. It never stops the check.
type Collector struct {
	ctx           context.Context
	reg           *types.Registry
	bridge        *solver.Bridge
	table         *effects.Table
	stack         *effects.Stack
	errs          *diagnostics.ErrorSet
	strictUnknown bool
}

// NewCollector wires a collector to the check run's shared state.
func NewCollector(ctx context.Context, reg *types.Registry, bridge *solver.Bridge, table *effects.Table, stack *effects.Stack, errs *diagnostics.ErrorSet, strictUnknown bool) *Collector {
	return &Collector{
		ctx:           ctx,
		reg:           reg,
		bridge:        bridge,
		table:         table,
		stack:         stack,
		errs:          errs,
		strictUnknown: strictUnknown,
	}
}

// Discharge resolves one constraint immediately.
func (c *Collector) Discharge(con Constraint) {
	switch con.Kind {
	case ConstraintSubtype:
		if !c.reg.IsSubtype(con.Left, con.Right) {
			c.errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, con.Span,
				"expected %s, found %s", c.reg.String(con.Right), c.reg.String(con.Left)))
		}

	case ConstraintEffectHandled:
		if !c.table.HandlerFor(con.Effect) && !c.stack.Declares(con.Effect) {
			c.errs.Add(diagnostics.NewError(diagnostics.UnhandledEffect, con.Span,
				"effect %s is neither handled nor declared by %s", con.Effect, con.Context))
		}

	case ConstraintPredicate:
		c.dischargePredicate(con)

	default:
		diagnostics.Internalf("checker.Collector", con, "unhandled constraint kind %d", con.Kind)
	}
}

func (c *Collector) dischargePredicate(con Constraint) {
	var outcome solver.Outcome
	if len(con.Params) > 0 {
		outcome = c.bridge.CheckDependent(c.ctx, con.Params, con.Predicate)
	} else {
		outcome = c.bridge.CheckRefinement(c.ctx, con.Base, con.Var, con.Predicate)
	}

	switch outcome.Status {
	case solver.StatusValid:
		// Obligation discharged.

	case solver.StatusInvalid:
		c.errs.Add(diagnostics.NewError(diagnostics.ConstraintViolation, con.Span,
			"predicate %s can be violated; counterexample: %s",
			con.Predicate.String(), strings.Join(outcome.Counterexample, ", ")))

	case solver.StatusUnknown:
		// Policy point: strict mode treats an undecided obligation as a
		// violation, the default only warns.
		if c.strictUnknown {
			c.errs.Add(diagnostics.NewError(diagnostics.ConstraintViolation, con.Span,
				"predicate %s could not be verified: %s", con.Predicate.String(), outcome.Reason))
		} else {
			c.errs.Add(diagnostics.NewWarning(diagnostics.ConstraintViolation, con.Span,
				"predicate %s could not be verified: %s", con.Predicate.String(), outcome.Reason))
		}
	}
}
