package modules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/checker"
	"github.com/vela-lang/vela/internal/diagnostics"
	"github.com/vela-lang/vela/internal/solver"
)

func testPool() *solver.Pool {
	return solver.NewPool(&solver.BuiltinBackend{}, 2, solver.DefaultQueryTimeout)
}

func unit(name, version string, decls ...ast.Declaration) *ast.Program {
	return &ast.Program{Unit: name, Version: version, Declarations: decls}
}

func use(target, requirement string) *ast.UseDecl {
	return &ast.UseDecl{Unit: target, Requirement: requirement}
}

func checkAll(t *testing.T, g *Graph) []Result {
	t.Helper()

	results, err := g.CheckAll(context.Background(), testPool(), checker.Options{})
	require.NoError(t, err)

	return results
}

func TestGraphAdd(t *testing.T) {
	g := NewGraph()

	require.NoError(t, g.Add(unit("core", "1.2.3")))
	assert.Error(t, g.Add(unit("core", "2.0.0")), "duplicate unit names must be rejected")
	assert.Error(t, g.Add(unit("broken", "not-a-version")))

	u, ok := g.Unit("core")
	require.True(t, ok)
	assert.Equal(t, "1.2.3", u.Version.String())
}

func TestCrossUnitTypes(t *testing.T) {
	g := NewGraph()

	require.NoError(t, g.Add(unit("geometry", "1.0.0",
		&ast.StructDecl{Name: "Point", Fields: []*ast.Field{
			{Name: "x", Type: &ast.NamedType{Name: "int"}},
			{Name: "y", Type: &ast.NamedType{Name: "int"}},
		}},
	)))

	require.NoError(t, g.Add(unit("app", "0.1.0",
		use("geometry", ""),
		&ast.FunctionDecl{
			Name:   "origin",
			Params: []*ast.Param{{Name: "p", Type: &ast.NamedType{Name: "Point"}}},
			Body:   &ast.Block{},
		},
	)))

	for _, res := range checkAll(t, g) {
		assert.False(t, res.Errs.HasErrors(), "unit %s: %v", res.Unit, res.Errs)
	}
}

func TestVersionRequirements(t *testing.T) {
	t.Run("Satisfied", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(unit("core", "1.4.2")))
		require.NoError(t, g.Add(unit("app", "0.1.0", use("core", "^1.2"))))

		for _, res := range checkAll(t, g) {
			assert.False(t, res.Errs.HasErrors(), "unit %s: %v", res.Unit, res.Errs)
		}
	})

	t.Run("Violated", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(unit("core", "2.0.0")))
		require.NoError(t, g.Add(unit("app", "0.1.0", use("core", "^1.2"))))

		results := checkAll(t, g)
		require.NotEmpty(t, results)
		assert.Equal(t, 1, results[0].Errs.CountKind(diagnostics.ConstraintViolation))
	})

	t.Run("TargetUnversioned", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.Add(unit("core", "")))
		require.NoError(t, g.Add(unit("app", "0.1.0", use("core", ">= 1.0.0"))))

		results := checkAll(t, g)
		assert.Equal(t, 1, results[0].Errs.CountKind(diagnostics.ConstraintViolation))
	})
}

func TestUnknownUnit(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add(unit("app", "0.1.0", use("phantom", ""))))

	results := checkAll(t, g)
	assert.Equal(t, 1, results[0].Errs.CountKind(diagnostics.UndefinedType))
}

func TestUseCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add(unit("a", "1.0.0", use("b", ""))))
	require.NoError(t, g.Add(unit("b", "1.0.0", use("a", ""))))

	results := checkAll(t, g)
	require.NotEmpty(t, results)
	assert.GreaterOrEqual(t, results[0].Errs.CountKind(diagnostics.RecursiveType), 1)
}

func TestImportedFaultsNotDoubleReported(t *testing.T) {
	g := NewGraph()

	// The broken unit references an undefined type; the importer must
	// not repeat that diagnostic as its own.
	require.NoError(t, g.Add(unit("broken", "1.0.0",
		&ast.FunctionDecl{Name: "f", Params: []*ast.Param{
			{Name: "v", Type: &ast.NamedType{Name: "Mystery"}},
		}},
	)))
	require.NoError(t, g.Add(unit("app", "0.1.0", use("broken", ""))))

	byUnit := make(map[string]Result)
	for _, res := range checkAll(t, g) {
		byUnit[res.Unit] = res
	}

	assert.Equal(t, 1, byUnit["broken"].Errs.CountKind(diagnostics.UndefinedType))
	assert.Equal(t, 0, byUnit["app"].Errs.CountKind(diagnostics.UndefinedType))
}
