package checker

import (
	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/diagnostics"
	"github.com/vela-lang/vela/internal/position"
	"github.com/vela-lang/vela/internal/types"
)

// checkBlock verifies a statement sequence in a fresh scope.
func (c *Checker) checkBlock(b *ast.Block) {
	if b == nil {
		return
	}

	c.Env.EnterScope()

	for _, stmt := range b.Statements {
		c.checkStmt(stmt)
	}

	c.exitScope()
}

func (c *Checker) checkStmt(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.Block:
		c.checkBlock(s)

	case *ast.LetStmt:
		c.checkLet(s)

	case *ast.AssignStmt:
		c.checkAssign(s)

	case *ast.ReturnStmt:
		c.checkReturn(s)

	case *ast.IfStmt:
		cond := c.checkExpr(s.Cond)
		c.requireBool(cond, s.Cond.GetSpan())
		c.checkBlock(s.Then)
		c.checkBlock(s.Else)

	case *ast.ExprStmt:
		c.checkExpr(s.Expr)

	case *ast.RegionStmt:
		c.regions.Push(s.Name, s.Allowed)
		c.checkBlock(s.Body)
		c.regions.Pop()

	default:
		diagnostics.Internalf("checker.Checker", stmt, "unhandled statement %T", stmt)
	}
}

func (c *Checker) checkLet(s *ast.LetStmt) {
	got := c.Reg.Unknown()
	if s.Value != nil {
		got = c.checkExpr(s.Value)
	}

	declared := got
	if s.Type != nil {
		declared = c.builder.BuildTypeExpr(s.Type)
		c.usedRefinement(declared, s.GetSpan())

		if s.Value != nil {
			c.requireAssignable(got, declared, s.Value.GetSpan())
		}
	}

	if err := c.Env.RegisterVariable(s.Name, declared, s.Mutable); err != nil {
		c.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, s.GetSpan(),
			"variable %s is already defined in this scope", s.Name))
	}

	c.Ann.Set(s, Annotation{Type: declared})
}

func (c *Checker) checkAssign(s *ast.AssignStmt) {
	binding, ok := c.Env.LookupVariable(s.Target)
	if !ok {
		c.Errs.Add(diagnostics.NewError(diagnostics.UndefinedValue, s.GetSpan(),
			"undefined variable: %s", s.Target))
		c.checkExpr(s.Value)

		return
	}

	if !binding.Mutable {
		c.Errs.Add(diagnostics.NewError(diagnostics.MutabilityViolation, s.GetSpan(),
			"cannot assign to immutable binding %s", s.Target))
	}

	got := c.checkExpr(s.Value)
	c.requireAssignable(got, binding.Type, s.Value.GetSpan())
}

func (c *Checker) checkReturn(s *ast.ReturnStmt) {
	if s.Value == nil {
		if c.expectedReturn != types.NoType && !c.Reg.Equal(c.expectedReturn, c.Reg.Primitive(types.PrimUnit)) {
			c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, s.GetSpan(),
				"%s must return %s", c.currentFn, c.Reg.String(c.expectedReturn)))
		}

		return
	}

	got := c.checkExpr(s.Value)
	if c.expectedReturn != types.NoType {
		c.requireAssignable(got, c.expectedReturn, s.Value.GetSpan())
	}
}

// checkExpr verifies an expression and returns its resolved type,
// recording the annotation. Faults yield the Unknown placeholder so
// checking continues without cascading mismatches.
func (c *Checker) checkExpr(e ast.Expression) types.ID {
	id := c.exprType(e)
	c.Ann.Set(e, Annotation{Type: id})

	return id
}

func (c *Checker) exprType(e ast.Expression) types.ID {
	switch n := e.(type) {
	case *ast.IntLit:
		return c.Reg.Primitive(types.PrimInt)

	case *ast.FloatLit:
		return c.Reg.Primitive(types.PrimFloat)

	case *ast.BoolLit:
		return c.Reg.Primitive(types.PrimBool)

	case *ast.StringLit:
		return c.Reg.Primitive(types.PrimString)

	case *ast.Ident:
		binding, ok := c.Env.LookupVariable(n.Name)
		if !ok {
			c.Errs.Add(diagnostics.NewError(diagnostics.UndefinedValue, n.GetSpan(),
				"undefined value: %s", n.Name))

			return c.Reg.Unknown()
		}

		return binding.Type

	case *ast.Binary:
		return c.checkBinary(n)

	case *ast.Unary:
		return c.checkUnary(n)

	case *ast.Call:
		return c.checkCall(n)

	case *ast.EffectCall:
		return c.checkEffectCall(n)

	case *ast.Cast:
		return c.checkCast(n)

	default:
		diagnostics.Internalf("checker.Checker", e, "unhandled expression %T", e)

		return c.Reg.Unknown()
	}
}

func (c *Checker) checkBinary(n *ast.Binary) types.ID {
	left := c.checkExpr(n.Left)
	right := c.checkExpr(n.Right)

	if left == c.Reg.Unknown() || right == c.Reg.Unknown() {
		return c.Reg.Unknown()
	}

	boolT := c.Reg.Primitive(types.PrimBool)

	switch {
	case n.Op.IsLogical():
		c.requireBool(left, n.Left.GetSpan())
		c.requireBool(right, n.Right.GetSpan())

		return boolT

	case n.Op.IsComparison():
		if !c.comparable(left, right) {
			c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, n.GetSpan(),
				"cannot compare %s with %s", c.Reg.String(left), c.Reg.String(right)))
		}

		return boolT

	default:
		lt, rt := c.erase(left), c.erase(right)
		if !c.numeric(lt) || !c.numeric(rt) {
			c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, n.GetSpan(),
				"operator %s needs numeric operands, found %s and %s",
				n.Op, c.Reg.String(left), c.Reg.String(right)))

			return c.Reg.Unknown()
		}

		// Mixed int/float arithmetic widens to float.
		if c.isPrim(lt, types.PrimFloat) || c.isPrim(rt, types.PrimFloat) {
			return c.Reg.Primitive(types.PrimFloat)
		}

		return c.Reg.Primitive(types.PrimInt)
	}
}

func (c *Checker) checkUnary(n *ast.Unary) types.ID {
	operand := c.checkExpr(n.Operand)
	if operand == c.Reg.Unknown() {
		return operand
	}

	switch n.Op {
	case "-":
		if !c.numeric(c.erase(operand)) {
			c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, n.GetSpan(),
				"cannot negate %s", c.Reg.String(operand)))

			return c.Reg.Unknown()
		}

		return c.erase(operand)

	case "!":
		c.requireBool(operand, n.Operand.GetSpan())

		return c.Reg.Primitive(types.PrimBool)

	default:
		c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, n.GetSpan(),
			"unsupported unary operator %s", n.Op))

		return c.Reg.Unknown()
	}
}

func (c *Checker) checkCall(n *ast.Call) types.ID {
	callee := c.checkExpr(n.Callee)
	if callee == c.Reg.Unknown() {
		for _, a := range n.Args {
			c.checkExpr(a)
		}

		return c.Reg.Unknown()
	}

	fn, ok := c.fnData(callee)
	if !ok {
		c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, n.GetSpan(),
			"%s is not callable", c.Reg.String(callee)))

		for _, a := range n.Args {
			c.checkExpr(a)
		}

		return c.Reg.Unknown()
	}

	if len(n.Args) != len(fn.Params) {
		c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, n.GetSpan(),
			"call expects %d argument(s), got %d", len(fn.Params), len(n.Args)))
	}

	for i, a := range n.Args {
		got := c.checkExpr(a)
		if i < len(fn.Params) {
			c.requireAssignable(got, fn.Params[i], a.GetSpan())
		}
	}

	// Calling an effectful function requires each of its effects at
	// the call site; this is the conservative, branch-insensitive rule.
	for _, eff := range fn.Effects {
		c.useEffect(eff, n.GetSpan())
	}

	return fn.Return
}

func (c *Checker) checkEffectCall(n *ast.EffectCall) types.ID {
	decl, ok := c.table.Lookup(n.Effect)
	if !ok {
		c.Errs.Add(diagnostics.NewError(diagnostics.UndefinedEffect, n.GetSpan(),
			"unknown effect: %s", n.Effect))

		for _, a := range n.Args {
			c.checkExpr(a)
		}

		return c.Reg.Unknown()
	}

	op, ok := decl.Operations[n.Operation]
	if !ok {
		c.Errs.Add(diagnostics.NewError(diagnostics.UnknownOperation, n.GetSpan(),
			"effect %s declares no operation %s", n.Effect, n.Operation))

		for _, a := range n.Args {
			c.checkExpr(a)
		}

		return c.Reg.Unknown()
	}

	if len(n.Args) != len(op.Params) {
		c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, n.GetSpan(),
			"%s::%s expects %d argument(s), got %d", n.Effect, n.Operation, len(op.Params), len(n.Args)))
	}

	for i, a := range n.Args {
		got := c.checkExpr(a)
		if i < len(op.Params) {
			c.requireAssignable(got, op.Params[i], a.GetSpan())
		}
	}

	c.useEffect(n.Effect, n.GetSpan())

	return op.Return
}

func (c *Checker) checkCast(n *ast.Cast) types.ID {
	got := c.checkExpr(n.Value)
	target := c.builder.BuildTypeExpr(n.Target)

	if got == c.Reg.Unknown() || target == c.Reg.Unknown() {
		return target
	}

	if !c.Reg.CanCast(got, target) {
		c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, n.GetSpan(),
			"cannot cast %s to %s", c.Reg.String(got), c.Reg.String(target)))

		return target
	}

	// Casting into a refinement carries the proof burden.
	if ref, ok := c.refinementOf(target); ok {
		c.collector.Discharge(Constraint{
			Kind:      ConstraintPredicate,
			Span:      n.GetSpan(),
			Base:      got,
			Var:       ref.Var,
			Predicate: ref.Predicate,
		})
	}

	return target
}

// useEffect verifies one effect usage at span: the effect must be
// dischargeable (handler visible, or declared by the enclosing
// function) and permitted by every enclosing region.
func (c *Checker) useEffect(effect string, span position.Span) {
	if _, ok := c.table.Lookup(effect); !ok {
		c.Errs.Add(diagnostics.NewError(diagnostics.UndefinedEffect, span,
			"unknown effect: %s", effect))

		return
	}

	context := "the enclosing function"
	if c.currentFn != "" {
		context = c.currentFn
	}

	c.collector.Discharge(Constraint{
		Kind:    ConstraintEffectHandled,
		Span:    span,
		Effect:  effect,
		Context: context,
	})

	if region := c.regions.Violation(effect); region != "" {
		c.Errs.Add(diagnostics.NewError(diagnostics.EffectViolation, span,
			"effect %s is not permitted in region %s", effect, region))
	}
}

// requireAssignable emits the subtype or predicate obligation for one
// assignment-shaped usage. Unknown operands are skipped to avoid
// cascades behind an already-reported fault.
func (c *Checker) requireAssignable(from, to types.ID, span position.Span) {
	if from == c.Reg.Unknown() || to == c.Reg.Unknown() {
		return
	}

	if c.Reg.IsSubtype(from, to) {
		return
	}

	if ref, ok := c.refinementOf(to); ok {
		if c.Reg.IsSubtype(c.erase(from), c.erase(ref.Base)) {
			c.collector.Discharge(Constraint{
				Kind:      ConstraintPredicate,
				Span:      span,
				Base:      from,
				Var:       ref.Var,
				Predicate: ref.Predicate,
			})

			return
		}
	} else if _, ok := c.refinementOf(from); ok {
		// A refined value erases to its base. The target carries no
		// predicate, so the obligation is vacuous.
		if c.Reg.IsSubtype(c.erase(from), to) {
			return
		}
	}

	c.collector.Discharge(Constraint{
		Kind:  ConstraintSubtype,
		Span:  span,
		Left:  from,
		Right: to,
	})
}

// usedRefinement emits the validity obligation attached to using a
// dependent type in a declaration position.
func (c *Checker) usedRefinement(id types.ID, span position.Span) {
	if id == types.NoType || id == c.Reg.Unknown() {
		return
	}

	t := c.Reg.Lookup(id)
	if t.Kind != types.KindDependent {
		return
	}

	dep := t.Data.(*types.Dependent)
	c.collector.Discharge(Constraint{
		Kind:      ConstraintPredicate,
		Span:      span,
		Params:    dep.Params,
		Predicate: dep.Predicate,
	})
}

// ===== Type helpers =====

// erase strips refinement layers down to the underlying base type.
func (c *Checker) erase(id types.ID) types.ID {
	for {
		t := c.Reg.Lookup(id)
		if t.Kind != types.KindRefinement {
			return id
		}

		id = t.Data.(*types.Refinement).Base
	}
}

func (c *Checker) refinementOf(id types.ID) (*types.Refinement, bool) {
	t := c.Reg.Lookup(id)
	if t.Kind != types.KindRefinement {
		return nil, false
	}

	return t.Data.(*types.Refinement), true
}

func (c *Checker) isPrim(id types.ID, pk types.PrimKind) bool {
	t := c.Reg.Lookup(id)

	return t.Kind == types.KindPrimitive && t.Data.(*types.Primitive).Prim == pk
}

func (c *Checker) numeric(id types.ID) bool {
	return c.isPrim(id, types.PrimInt) || c.isPrim(id, types.PrimFloat)
}

func (c *Checker) comparable(a, b types.ID) bool {
	ea, eb := c.erase(a), c.erase(b)
	if c.numeric(ea) && c.numeric(eb) {
		return true
	}

	return c.Reg.IsSubtype(ea, eb) || c.Reg.IsSubtype(eb, ea)
}

func (c *Checker) requireBool(id types.ID, span position.Span) {
	if id == c.Reg.Unknown() {
		return
	}

	if !c.isPrim(c.erase(id), types.PrimBool) {
		c.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, span,
			"expected bool, found %s", c.Reg.String(id)))
	}
}
