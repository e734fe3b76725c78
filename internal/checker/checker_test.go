package checker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/diagnostics"
	"github.com/vela-lang/vela/internal/solver"
	"github.com/vela-lang/vela/internal/types"
)

// ===== Tree-building helpers =====

func newChecker(opts Options) *Checker {
	pool := solver.NewPool(&solver.BuiltinBackend{}, 2, solver.DefaultQueryTimeout)

	return New(context.Background(), pool, opts)
}

func namedT(name string, args ...ast.TypeExpr) *ast.NamedType {
	return &ast.NamedType{Name: name, Args: args}
}

func refined(v string, pred ast.Expression) *ast.RefinementType {
	return &ast.RefinementType{Var: v, Base: namedT("int"), Predicate: pred}
}

func cmp(op ast.BinaryOp, name string, rhs int64) *ast.Binary {
	return &ast.Binary{Op: op, Left: &ast.Ident{Name: name}, Right: &ast.IntLit{Value: rhs}}
}

func param(name string, t ast.TypeExpr) *ast.Param {
	return &ast.Param{Name: name, Type: t}
}

func block(stmts ...ast.Statement) *ast.Block {
	return &ast.Block{Statements: stmts}
}

func expr(e ast.Expression) *ast.ExprStmt {
	return &ast.ExprStmt{Expr: e}
}

func call(fn string, args ...ast.Expression) *ast.Call {
	return &ast.Call{Callee: &ast.Ident{Name: fn}, Args: args}
}

func program(decls ...ast.Declaration) *ast.Program {
	return &ast.Program{Unit: "main", Declarations: decls}
}

func ioEffect() *ast.EffectDecl {
	return &ast.EffectDecl{
		Name: "IO",
		Operations: []*ast.OperationSig{
			{Name: "print", Params: []*ast.Param{param("msg", namedT("string"))}},
		},
	}
}

func consoleHandler() *ast.HandlerDecl {
	return &ast.HandlerDecl{
		Name:       "console",
		EffectName: "IO",
		Operations: []*ast.HandlerOp{
			{Name: "print", Params: []*ast.Param{param("msg", namedT("string"))}, Body: block()},
		},
	}
}

func printCall() *ast.EffectCall {
	return &ast.EffectCall{
		Effect:    "IO",
		Operation: "print",
		Args:      []ast.Expression{&ast.StringLit{Value: "hello"}},
	}
}

// ===== Tests =====

func TestWellTypedUnit(t *testing.T) {
	ck := newChecker(Options{})

	add := &ast.FunctionDecl{
		Name:       "add",
		Params:     []*ast.Param{param("x", namedT("int")), param("y", namedT("int"))},
		ReturnType: namedT("int"),
		Body: block(&ast.ReturnStmt{Value: &ast.Binary{
			Op:    ast.OpAdd,
			Left:  &ast.Ident{Name: "x"},
			Right: &ast.Ident{Name: "y"},
		}}),
	}

	prog := program(
		ioEffect(),
		consoleHandler(),
		add,
		&ast.FunctionDecl{
			Name:    "greet",
			Effects: []string{"IO"},
			Body:    block(expr(printCall())),
		},
		&ast.FunctionDecl{
			Name: "main",
			Body: block(
				&ast.LetStmt{Name: "sum", Value: call("add", &ast.IntLit{Value: 1}, &ast.IntLit{Value: 2})},
				expr(call("greet")),
			),
		},
	)

	require.NoError(t, ck.Check(prog), "diagnostics: %v", ck.Errs)

	sig, ok := ck.Ann.TypeOf(add)
	require.True(t, ok, "checked declarations carry annotations")
	assert.Equal(t, types.KindFunction, ck.Reg.Lookup(sig).Kind)
	assert.Greater(t, ck.Ann.Len(), 5, "expressions are annotated as they are checked")
}

func TestUnhandledEffectReportedOnce(t *testing.T) {
	logger := &ast.EffectDecl{
		Name:       "Logger",
		Operations: []*ast.OperationSig{{Name: "log", Params: []*ast.Param{param("msg", namedT("string"))}}},
	}

	logCall := func() *ast.EffectCall {
		return &ast.EffectCall{Effect: "Logger", Operation: "log",
			Args: []ast.Expression{&ast.StringLit{Value: "x"}}}
	}

	t.Run("NeitherHandledNorDeclared", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(logger, &ast.FunctionDecl{Name: "quiet", Body: block(expr(logCall()))})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.UnhandledEffect),
			"exactly one diagnostic per undischarged usage")
	})

	t.Run("DeclaredByFunction", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(logger, &ast.FunctionDecl{
			Name:    "loud",
			Effects: []string{"Logger"},
			Body:    block(expr(logCall())),
		})

		assert.NoError(t, ck.Check(prog))
	})

	t.Run("HandlerVisible", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(
			logger,
			&ast.HandlerDecl{Name: "sink", EffectName: "Logger", Operations: []*ast.HandlerOp{
				{Name: "log", Params: []*ast.Param{param("msg", namedT("string"))}, Body: block()},
			}},
			&ast.FunctionDecl{Name: "quiet", Body: block(expr(logCall()))},
		)

		assert.NoError(t, ck.Check(prog))
	})
}

func TestCollectAllContinuesPastDuplicate(t *testing.T) {
	ck := newChecker(Options{})

	point := func() *ast.StructDecl {
		return &ast.StructDecl{Name: "Point", Fields: []*ast.Field{
			{Name: "x", Type: namedT("int")},
			{Name: "y", Type: namedT("int")},
		}}
	}

	prog := program(
		point(),
		point(),
		// An unrelated fault in a later declaration must still surface.
		&ast.FunctionDecl{Name: "f", Params: []*ast.Param{param("v", namedT("Mystery"))}},
	)

	require.Error(t, ck.Check(prog))
	assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.DuplicateDefinition))
	assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.UndefinedType))
}

func TestMutability(t *testing.T) {
	ck := newChecker(Options{})

	prog := program(&ast.FunctionDecl{
		Name: "f",
		Body: block(
			&ast.LetStmt{Name: "a", Value: &ast.IntLit{Value: 1}},
			&ast.LetStmt{Name: "b", Value: &ast.IntLit{Value: 1}, Mutable: true},
			&ast.AssignStmt{Target: "a", Value: &ast.IntLit{Value: 2}},
			&ast.AssignStmt{Target: "b", Value: &ast.IntLit{Value: 2}},
		),
	})

	require.Error(t, ck.Check(prog))
	assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.MutabilityViolation))
}

func TestUndefinedValue(t *testing.T) {
	ck := newChecker(Options{})

	prog := program(&ast.FunctionDecl{
		Name: "f",
		Body: block(&ast.LetStmt{Name: "a", Value: &ast.Ident{Name: "missing"}}),
	})

	require.Error(t, ck.Check(prog))
	assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.UndefinedValue))
}

func TestRegionRestrictsEffects(t *testing.T) {
	t.Run("Permitted", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(ioEffect(), consoleHandler(), &ast.FunctionDecl{
			Name: "f",
			Body: block(&ast.RegionStmt{Name: "r", Allowed: []string{"IO"}, Body: block(expr(printCall()))}),
		})

		assert.NoError(t, ck.Check(prog))
	})

	t.Run("Denied", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(ioEffect(), consoleHandler(), &ast.FunctionDecl{
			Name: "f",
			Body: block(&ast.RegionStmt{Name: "pure_zone", Allowed: nil, Body: block(expr(printCall()))}),
		})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.EffectViolation))
	})
}

func TestRefinementParameterFlow(t *testing.T) {
	take := func() *ast.FunctionDecl {
		return &ast.FunctionDecl{
			Name:   "take",
			Params: []*ast.Param{param("w", refined("w", cmp(ast.OpGt, "w", 0)))},
			Body:   block(),
		}
	}

	t.Run("ImpliedPredicate", func(t *testing.T) {
		ck := newChecker(Options{})

		// v >= 1 implies w > 0, so passing v is fine.
		prog := program(take(), &ast.FunctionDecl{
			Name:   "give",
			Params: []*ast.Param{param("v", refined("v", cmp(ast.OpGe, "v", 1)))},
			Body:   block(expr(call("take", &ast.Ident{Name: "v"}))),
		})

		assert.NoError(t, ck.Check(prog), "diagnostics: %v", ck.Errs)
	})

	t.Run("RefutablePredicate", func(t *testing.T) {
		ck := newChecker(Options{})

		// v >= 0 admits v = 0, which violates w > 0.
		prog := program(take(), &ast.FunctionDecl{
			Name:   "bad",
			Params: []*ast.Param{param("v", refined("v", cmp(ast.OpGe, "v", 0)))},
			Body:   block(expr(call("take", &ast.Ident{Name: "v"}))),
		})

		require.Error(t, ck.Check(prog))
		require.Equal(t, 1, ck.Errs.CountKind(diagnostics.ConstraintViolation))
		assert.Contains(t, ck.Errs.All()[0].Message, "counterexample: w = 0")
	})

	t.Run("ErasedToBase", func(t *testing.T) {
		ck := newChecker(Options{})

		// A refined value always inhabits its plain base type; the
		// obligation is vacuous, not a mismatch.
		prog := program(
			&ast.FunctionDecl{
				Name:   "plain",
				Params: []*ast.Param{param("x", namedT("int"))},
				Body:   block(),
			},
			&ast.FunctionDecl{
				Name:   "pass",
				Params: []*ast.Param{param("v", refined("v", cmp(ast.OpGe, "v", 1)))},
				Body:   block(expr(call("plain", &ast.Ident{Name: "v"}))),
			},
		)

		assert.NoError(t, ck.Check(prog), "diagnostics: %v", ck.Errs)
	})
}

func TestDependentParameterObligation(t *testing.T) {
	dep := func(pred ast.Expression) *ast.DependentType {
		return &ast.DependentType{
			Params: []*ast.DependentParam{
				{Name: "n", Type: namedT("int")},
				{Name: "m", Type: namedT("int")},
			},
			Predicate: pred,
		}
	}

	t.Run("Tautology", func(t *testing.T) {
		ck := newChecker(Options{})

		pred := &ast.Binary{
			Op:    ast.OpEq,
			Left:  &ast.Binary{Op: ast.OpAdd, Left: &ast.Ident{Name: "n"}, Right: &ast.Ident{Name: "m"}},
			Right: &ast.Binary{Op: ast.OpAdd, Left: &ast.Ident{Name: "m"}, Right: &ast.Ident{Name: "n"}},
		}

		prog := program(&ast.FunctionDecl{
			Name:   "f",
			Params: []*ast.Param{param("p", dep(pred))},
			Body:   block(),
		})

		assert.NoError(t, ck.Check(prog), "diagnostics: %v", ck.Errs)
	})

	t.Run("Refutable", func(t *testing.T) {
		ck := newChecker(Options{})

		pred := &ast.Binary{Op: ast.OpLt, Left: &ast.Ident{Name: "n"}, Right: &ast.Ident{Name: "m"}}

		prog := program(&ast.FunctionDecl{
			Name:   "f",
			Params: []*ast.Param{param("p", dep(pred))},
			Body:   block(),
		})

		require.Error(t, ck.Check(prog))
		require.Equal(t, 1, ck.Errs.CountKind(diagnostics.ConstraintViolation))
		assert.Contains(t, ck.Errs.All()[0].Message, "n = 0, m = 0")
	})
}

func TestCastObligations(t *testing.T) {
	t.Run("RefinementTargetRefuted", func(t *testing.T) {
		ck := newChecker(Options{})

		// Casting a plain int into a refinement carries the proof burden
		// for every possible value, so it is refutable.
		prog := program(&ast.FunctionDecl{
			Name: "f",
			Params: []*ast.Param{param("x", namedT("int"))},
			Body: block(&ast.LetStmt{Name: "y", Value: &ast.Cast{
				Value:  &ast.Ident{Name: "x"},
				Target: refined("v", cmp(ast.OpGe, "v", 0)),
			}}),
		})

		require.Error(t, ck.Check(prog))
		require.Equal(t, 1, ck.Errs.CountKind(diagnostics.ConstraintViolation))
		assert.Contains(t, ck.Errs.All()[0].Message, "counterexample: v = -1")
	})

	t.Run("NumericConversion", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(&ast.FunctionDecl{
			Name:   "f",
			Params: []*ast.Param{param("x", namedT("int"))},
			Body: block(&ast.LetStmt{Name: "y", Value: &ast.Cast{
				Value:  &ast.Ident{Name: "x"},
				Target: namedT("float"),
			}}),
		})

		assert.NoError(t, ck.Check(prog))
	})

	t.Run("Rejected", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(&ast.FunctionDecl{
			Name:   "f",
			Params: []*ast.Param{param("x", namedT("int"))},
			Body: block(&ast.LetStmt{Name: "y", Value: &ast.Cast{
				Value:  &ast.Ident{Name: "x"},
				Target: namedT("bool"),
			}}),
		})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.TypeMismatch))
	})
}

func TestUnknownPolicy(t *testing.T) {
	// A predicate outside the lowerable subset makes the obligation
	// undecidable.
	undecidable := func() *ast.Program {
		return program(&ast.FunctionDecl{
			Name:   "f",
			Params: []*ast.Param{param("x", namedT("int"))},
			Body: block(&ast.LetStmt{
				Name: "y",
				Type: refined("v", &ast.Call{Callee: &ast.Ident{Name: "odd"},
					Args: []ast.Expression{&ast.Ident{Name: "v"}}}),
				Value: &ast.Ident{Name: "x"},
			}),
		})
	}

	t.Run("DefaultWarns", func(t *testing.T) {
		ck := newChecker(Options{})

		assert.NoError(t, ck.Check(undecidable()), "an undecided obligation must not fail the run")
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.ConstraintViolation))
		assert.Equal(t, 0, ck.Errs.ErrorCount())
	})

	t.Run("StrictPromotes", func(t *testing.T) {
		ck := newChecker(Options{StrictUnknown: true})

		require.Error(t, ck.Check(undecidable()))
		assert.Equal(t, 1, ck.Errs.ErrorCount())
	})
}

func TestGenericArityInSignature(t *testing.T) {
	ck := newChecker(Options{})

	prog := program(
		&ast.StructDecl{
			Name:       "Box",
			TypeParams: []*ast.TypeParam{{Name: "T"}},
			Fields:     []*ast.Field{{Name: "value", Type: namedT("T")}},
		},
		&ast.FunctionDecl{
			Name:   "f",
			Params: []*ast.Param{param("b", namedT("Box", namedT("int"), namedT("bool")))},
		},
	)

	require.Error(t, ck.Check(prog))
	assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.WrongNumberOfTypeArguments))
}

func TestLinearDestructors(t *testing.T) {
	ck := newChecker(Options{})

	prog := program(&ast.LinearDecl{
		Name:  "FileHandle",
		Inner: namedT("int"),
		Operations: []*ast.LinearOp{
			{Name: "close", IsDestructor: true},
			{Name: "dispose", IsDestructor: true},
		},
	})

	require.Error(t, ck.Check(prog))
	assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.DuplicateDefinition))
}

func TestHandlerDiagnostics(t *testing.T) {
	t.Run("UnknownEffect", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(&ast.HandlerDecl{Name: "h", EffectName: "Missing"})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.UndefinedEffect))
	})

	t.Run("UnknownOperation", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(ioEffect(), &ast.HandlerDecl{
			Name:       "h",
			EffectName: "IO",
			Operations: []*ast.HandlerOp{{Name: "blast", Body: block()}},
		})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.UnknownOperation))
	})
}

func TestReturnChecking(t *testing.T) {
	t.Run("BareReturnFromTyped", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(&ast.FunctionDecl{
			Name:       "f",
			ReturnType: namedT("int"),
			Body:       block(&ast.ReturnStmt{}),
		})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.TypeMismatch))
	})

	t.Run("WrongType", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(&ast.FunctionDecl{
			Name:       "f",
			ReturnType: namedT("int"),
			Body:       block(&ast.ReturnStmt{Value: &ast.BoolLit{Value: true}}),
		})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.TypeMismatch))
	})
}

func TestFunctionDeclaresUnknownEffect(t *testing.T) {
	t.Run("WithBody", func(t *testing.T) {
		ck := newChecker(Options{})

		prog := program(&ast.FunctionDecl{
			Name:    "f",
			Effects: []string{"Phantom"},
			Body:    block(),
		})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.UndefinedEffect))
	})

	t.Run("Bodyless", func(t *testing.T) {
		ck := newChecker(Options{})

		// Declarations without a body still state an effect contract,
		// so the names must resolve.
		prog := program(&ast.FunctionDecl{
			Name:    "extern",
			Effects: []string{"Phantom"},
		})

		require.Error(t, ck.Check(prog))
		assert.Equal(t, 1, ck.Errs.CountKind(diagnostics.UndefinedEffect))
	})
}

func TestScopesBalancedAfterCheck(t *testing.T) {
	ck := newChecker(Options{})

	prog := program(ioEffect(), consoleHandler(), &ast.FunctionDecl{
		Name:    "f",
		Effects: []string{"IO"},
		Body: block(
			&ast.IfStmt{
				Cond: &ast.BoolLit{Value: true},
				Then: block(&ast.LetStmt{Name: "a", Value: &ast.IntLit{Value: 1}}),
				Else: block(&ast.LetStmt{Name: "a", Value: &ast.IntLit{Value: 2}}),
			},
			expr(printCall()),
		),
	})

	require.NoError(t, ck.Check(prog), "diagnostics: %v", ck.Errs)
	assert.Equal(t, 1, ck.Env.ScopeLevel(), "only the global scope survives a check")
}
