// Package checker orchestrates static verification of one compilation
// unit: a collect pass populates the type registry and effect table
// without touching bodies (so forward references resolve), then a check
// pass verifies every declaration body, pushing and popping scopes and
// the effect stack as it descends. All faults flow into the diagnostic
// set; the pass never stops early.
package checker

import (
	"context"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/diagnostics"
	"github.com/vela-lang/vela/internal/effects"
	"github.com/vela-lang/vela/internal/position"
	"github.com/vela-lang/vela/internal/solver"
	"github.com/vela-lang/vela/internal/types"
)

// Options tunes one check run.
type Options struct {
	// StrictUnknown promotes undecided solver outcomes to errors.
	StrictUnknown bool
	// MaxErrors caps reported errors; zero means unlimited.
	MaxErrors int
}

// Checker verifies one compilation unit. Create one per unit; it owns
// the unit's registry, environment and effect table for its lifetime
// and hands the annotation store to the code generator afterwards.
type Checker struct {
	Reg  *types.Registry
	Env  *types.Environment
	Errs *diagnostics.ErrorSet
	Ann  *Annotations

	ctx       context.Context
	builder   *types.Builder
	table     *effects.Table
	stack     *effects.Stack
	regions   *effects.Regions
	collector *Collector

	declared       map[string]bool
	uses           []*ast.UseDecl
	expectedReturn types.ID
	currentFn      string
}

// New creates a checker backed by the given solver pool.
func New(ctx context.Context, pool *solver.Pool, opts Options) *Checker {
	reg := types.NewRegistry()
	env := types.NewEnvironment()
	errs := diagnostics.NewErrorSet(opts.MaxErrors)
	table := effects.NewTable()
	stack := effects.NewStack()
	bridge := solver.NewBridge(reg, pool)

	return &Checker{
		Reg:            reg,
		Env:            env,
		Errs:           errs,
		Ann:            NewAnnotations(),
		ctx:            ctx,
		builder:        types.NewBuilder(reg, env, errs),
		table:          table,
		stack:          stack,
		regions:        effects.NewRegions(),
		collector:      NewCollector(ctx, reg, bridge, table, stack, errs, opts.StrictUnknown),
		declared:       make(map[string]bool),
		expectedReturn: types.NoType,
	}
}

// Uses returns the unit's use declarations gathered during collect.
func (c *Checker) Uses() []*ast.UseDecl {
	return c.uses
}

// Check runs both passes over the unit and returns nil iff no
// error-severity diagnostic was collected.
func (c *Checker) Check(prog *ast.Program) error {
	c.Collect(prog)
	c.CheckBodies(prog)

	return c.Errs.AsError()
}

// ImportUnit collects another unit's declarations into this checker's
// registry, environment and effect table so the current unit can refer
// to them. Diagnostics raised while collecting are discarded; the
// foreign unit reports its own faults when it is checked itself.
func (c *Checker) ImportUnit(prog *ast.Program) {
	saved := c.Errs
	scratch := diagnostics.NewErrorSet(0)
	c.Errs = scratch
	c.builder.Errs = scratch

	savedUses := c.uses
	c.Collect(prog)
	c.uses = savedUses

	c.Errs = saved
	c.builder.Errs = saved
}

// Collect sweeps the unit once, populating the type registry and
// effect table without checking bodies. Handlers are resolved after
// every effect is known, so a handler may precede its effect in source
// order.
func (c *Checker) Collect(prog *ast.Program) {
	for _, decl := range prog.Declarations {
		c.collectDecl(decl)
	}

	for _, decl := range prog.Declarations {
		if h, ok := decl.(*ast.HandlerDecl); ok {
			c.collectHandler(h)
		}
	}
}

func (c *Checker) collectDecl(decl ast.Declaration) {
	switch d := decl.(type) {
	case *ast.StructDecl:
		if c.duplicateType(d.Name, d.GetSpan()) {
			return
		}

		id := c.builder.BuildStruct(d)
		if len(d.TypeParams) == 0 {
			c.registerType(d.Name, id, d.GetSpan())
			c.collectMethods(id, d)
		}

	case *ast.LinearDecl:
		if c.duplicateType(d.Name, d.GetSpan()) {
			return
		}

		id := c.builder.BuildLinear(d)
		c.registerType(d.Name, id, d.GetSpan())

	case *ast.TypeAliasDecl:
		if c.duplicateType(d.Name, d.GetSpan()) {
			return
		}

		c.builder.DeferAlias(d)

	case *ast.TraitDecl:
		if c.duplicateType(d.Name, d.GetSpan()) {
			return
		}

		// Traits participate only nominally: as generic bounds and
		// method-signature carriers.
		id := c.Reg.NewComposite(d.Name, nil)
		c.registerType(d.Name, id, d.GetSpan())

	case *ast.EffectDecl:
		c.collectEffect(d)

	case *ast.FunctionDecl:
		sig := c.builder.BuildFunctionSignature(d)
		if err := c.Env.RegisterVariable(d.Name, sig, false); err != nil {
			c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, d.GetSpan(),
				"function %s is already defined", d.Name))

			return
		}

		c.Ann.Set(d, Annotation{Type: sig, Effects: d.Effects})

	case *ast.VariableDecl:
		if d.Type != nil {
			id := c.builder.BuildTypeExpr(d.Type)
			if err := c.Env.RegisterVariable(d.Name, id, d.Mutable); err != nil {
				c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, d.GetSpan(),
					"variable %s is already defined", d.Name))
			}
		}

	case *ast.UseDecl:
		c.uses = append(c.uses, d)

	case *ast.HandlerDecl, *ast.RegionDecl:
		// Handlers resolve after all effects are collected; regions
		// have no collectable surface.

	default:
		diagnostics.Internalf("checker.Checker", decl, "unhandled declaration %T", decl)
	}
}

// duplicateType reports and records a duplicate type-level name. The
// first declaration wins; later ones are diagnosed and skipped so
// every other independent declaration still gets checked.
func (c *Checker) duplicateType(name string, span position.Span) bool {
	if c.declared[name] {
		c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, span,
			"type %s is already defined", name))

		return true
	}

	c.declared[name] = true

	return false
}

func (c *Checker) registerType(name string, id types.ID, span position.Span) {
	if err := c.Env.RegisterType(name, id); err != nil {
		c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, span,
			"type %s is already defined", name))

		return
	}

	c.Reg.Bind(name, id)
}

func (c *Checker) collectMethods(owner types.ID, d *ast.StructDecl) {
	comp := c.Reg.Lookup(owner).Data.(*types.Composite)
	for _, m := range d.Methods {
		sig := c.builder.BuildFunctionSignature(m)
		if _, exists := comp.Methods[m.Name]; exists {
			c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, m.GetSpan(),
				"method %s is already defined on %s", m.Name, d.Name))

			continue
		}

		comp.Methods[m.Name] = sig
	}
}

func (c *Checker) collectEffect(d *ast.EffectDecl) {
	ops := make(map[string]*effects.Operation, len(d.Operations))
	for _, op := range d.Operations {
		params := make([]types.ID, len(op.Params))
		for i, p := range op.Params {
			params[i] = c.builder.BuildTypeExpr(p.Type)
		}

		ret := c.Reg.Primitive(types.PrimUnit)
		if op.ReturnType != nil {
			ret = c.builder.BuildTypeExpr(op.ReturnType)
		}

		if _, exists := ops[op.Name]; exists {
			c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, op.Span,
				"operation %s is already declared on effect %s", op.Name, d.Name))

			continue
		}

		ops[op.Name] = &effects.Operation{Name: op.Name, Params: params, Return: ret, Span: op.Span}
	}

	decl := &effects.Decl{
		Name:       d.Name,
		Span:       d.GetSpan(),
		Operations: ops,
		Type:       c.builder.BuildEffect(d),
	}

	if err := c.table.Register(decl); err != nil {
		c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, d.GetSpan(),
			"effect %s is already defined", d.Name))

		return
	}

	_ = c.Env.RegisterEffect(d.Name)
	c.Reg.Bind(d.Name, decl.Type)
}

func (c *Checker) collectHandler(d *ast.HandlerDecl) {
	state := types.NoType
	if d.StateType != nil {
		state = c.builder.BuildTypeExpr(d.StateType)
	}

	ops := make(map[string]*ast.HandlerOp, len(d.Operations))
	for _, op := range d.Operations {
		ops[op.Name] = op
	}

	h := &effects.Handler{
		Name:       d.Name,
		Effect:     d.EffectName,
		Span:       d.GetSpan(),
		Operations: ops,
		State:      state,
	}

	if err := c.table.RegisterHandler(h); err != nil {
		if _, unknown := err.(*effects.UnknownEffectError); unknown {
			c.Errs.Add(diagnostics.NewError(diagnostics.UndefinedEffect, d.GetSpan(),
				"handler %s targets unknown effect %s", d.Name, d.EffectName))
		} else {
			c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, d.GetSpan(),
				"handler %s is already defined", d.Name))
		}

		return
	}

	// Every implemented operation must exist on the target effect.
	for _, op := range d.Operations {
		if !c.table.HasOperation(d.EffectName, op.Name) {
			c.Errs.Add(diagnostics.NewError(diagnostics.UnknownOperation, op.Span,
				"effect %s declares no operation %s", d.EffectName, op.Name))
		}
	}
}

// CheckBodies sweeps the unit a second time, verifying every
// declaration body against the populated environment.
func (c *Checker) CheckBodies(prog *ast.Program) {
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *ast.FunctionDecl:
			c.checkFunction(d)

		case *ast.StructDecl:
			for _, m := range d.Methods {
				c.checkFunction(m)
			}

		case *ast.HandlerDecl:
			c.checkHandlerBodies(d)

		case *ast.VariableDecl:
			c.checkTopVariable(d)

		case *ast.RegionDecl:
			c.regions.Push(d.Name, d.Allowed)
			c.checkBlock(d.Body)
			c.regions.Pop()

		case *ast.EffectDecl, *ast.TypeAliasDecl, *ast.TraitDecl, *ast.LinearDecl, *ast.UseDecl:
			// Nothing body-shaped to verify.
		}
	}
}

func (c *Checker) checkFunction(d *ast.FunctionDecl) {
	// Declared effects must exist even on bodyless declarations.
	for _, eff := range d.Effects {
		if _, ok := c.table.Lookup(eff); !ok {
			c.Errs.Add(diagnostics.NewError(diagnostics.UndefinedEffect, d.GetSpan(),
				"function %s declares unknown effect %s", d.Name, eff))
		}
	}

	if d.Body == nil {
		return
	}

	sig, _ := c.Env.LookupVariable(d.Name)
	fn, ok := c.fnData(sig.Type)
	if !ok {
		// Collect recorded a diagnostic already; nothing to check
		// against.
		return
	}

	c.Env.EnterScope()
	c.stack.Push(d.Effects)

	for _, tp := range d.TypeParams {
		_ = c.Env.RegisterType(tp.Name, c.Reg.NewTypeVar(tp.Name))
	}

	for i, p := range d.Params {
		if i < len(fn.Params) {
			_ = c.Env.RegisterVariable(p.Name, fn.Params[i], false)
			c.usedRefinement(fn.Params[i], p.Span)
		}
	}

	savedReturn, savedFn := c.expectedReturn, c.currentFn
	c.expectedReturn, c.currentFn = fn.Return, d.Name

	c.checkBlock(d.Body)

	c.expectedReturn, c.currentFn = savedReturn, savedFn

	c.stack.Pop()
	c.exitScope()
}

func (c *Checker) checkHandlerBodies(d *ast.HandlerDecl) {
	decl, ok := c.table.Lookup(d.EffectName)
	if !ok {
		// Registration already produced UndefinedEffect.
		return
	}

	for _, op := range d.Operations {
		sig, declared := decl.Operations[op.Name]

		c.Env.EnterScope()
		// Inside its own body a handler may re-perform the effect it
		// discharges.
		c.stack.Push([]string{d.EffectName})

		if d.StateType != nil {
			_ = c.Env.RegisterVariable("state", c.builder.BuildTypeExpr(d.StateType), true)
		}

		for i, p := range op.Params {
			t := c.Reg.Unknown()
			if declared && i < len(sig.Params) {
				t = sig.Params[i]
			} else if p.Type != nil {
				t = c.builder.BuildTypeExpr(p.Type)
			}

			_ = c.Env.RegisterVariable(p.Name, t, false)
		}

		savedReturn, savedFn := c.expectedReturn, c.currentFn
		c.expectedReturn, c.currentFn = types.NoType, d.Name
		if declared {
			c.expectedReturn = sig.Return
		}

		if op.Body != nil {
			c.checkBlock(op.Body)
		}

		c.expectedReturn, c.currentFn = savedReturn, savedFn

		c.stack.Pop()
		c.exitScope()
	}
}

func (c *Checker) checkTopVariable(d *ast.VariableDecl) {
	if d.Value == nil {
		return
	}

	got := c.checkExpr(d.Value)

	if d.Type != nil {
		want, _ := c.Env.LookupVariable(d.Name)
		c.requireAssignable(got, want.Type, d.Value.GetSpan())
		c.Ann.Set(d, Annotation{Type: want.Type})

		return
	}

	// Type driven by the initializer; bind now.
	if err := c.Env.RegisterVariable(d.Name, got, d.Mutable); err != nil {
		c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, d.GetSpan(),
			"variable %s is already defined", d.Name))
	}

	c.Ann.Set(d, Annotation{Type: got})
}

func (c *Checker) fnData(id types.ID) (*types.Function, bool) {
	if id == types.NoType || id == c.Reg.Unknown() {
		return nil, false
	}

	t := c.Reg.Lookup(id)
	if t.Kind != types.KindFunction {
		return nil, false
	}

	return t.Data.(*types.Function), true
}

// exitScope pops the innermost scope; failure here means unbalanced
// enter/exit in the checker itself.
func (c *Checker) exitScope() {
	if err := c.Env.ExitScope(); err != nil {
		diagnostics.Internalf("checker.Checker", c.Env, "unbalanced scopes: %v", err)
	}
}
