package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/types"
)

func newTestBridge() (*Bridge, *types.Registry) {
	reg := types.NewRegistry()
	pool := NewPool(&BuiltinBackend{}, 2, DefaultQueryTimeout)

	return NewBridge(reg, pool), reg
}

func selfCmp(op ast.BinaryOp, rhs int64) ast.Expression {
	return &ast.Binary{
		Op:    op,
		Left:  &ast.Ident{Name: "self"},
		Right: &ast.IntLit{Value: rhs},
	}
}

func TestCheckRefinementValid(t *testing.T) {
	bridge, reg := newTestBridge()

	// Every int in [0, 100] satisfies self >= 0.
	lo, hi := int64(0), int64(100)
	base := reg.BoundedInt(&lo, &hi)

	out := bridge.CheckRefinement(context.Background(), base, "self", selfCmp(ast.OpGe, 0))
	assert.Equal(t, StatusValid, out.Status)
	assert.Empty(t, out.Counterexample)
}

func TestCheckRefinementInvalid(t *testing.T) {
	bridge, reg := newTestBridge()

	out := bridge.CheckRefinement(context.Background(), reg.Primitive(types.PrimInt), "self", selfCmp(ast.OpGt, 5))
	require.Equal(t, StatusInvalid, out.Status)
	require.Len(t, out.Counterexample, 1)
	assert.Equal(t, "self = 0", out.Counterexample[0])
}

func TestCheckRefinementNestedBase(t *testing.T) {
	bridge, reg := newTestBridge()

	// {v: int | v >= 1} refined further: v >= 1 implies v > 0.
	base := reg.NewRefinement("v", reg.Primitive(types.PrimInt), &ast.Binary{
		Op:    ast.OpGe,
		Left:  &ast.Ident{Name: "v"},
		Right: &ast.IntLit{Value: 1},
	})

	out := bridge.CheckRefinement(context.Background(), base, "self", selfCmp(ast.OpGt, 0))
	assert.Equal(t, StatusValid, out.Status, "inner predicate must be assumed as a hypothesis")

	out = bridge.CheckRefinement(context.Background(), base, "self", selfCmp(ast.OpGt, 1))
	assert.Equal(t, StatusInvalid, out.Status, "v = 1 violates self > 1")
}

func TestCheckRefinementUnsupported(t *testing.T) {
	bridge, reg := newTestBridge()

	t.Run("BaseType", func(t *testing.T) {
		out := bridge.CheckRefinement(context.Background(),
			reg.Primitive(types.PrimString), "self", selfCmp(ast.OpGt, 0))
		assert.Equal(t, StatusUnknown, out.Status)
		assert.NotEmpty(t, out.Reason)
	})

	t.Run("Expression", func(t *testing.T) {
		pred := &ast.Call{Callee: &ast.Ident{Name: "len"}, Args: []ast.Expression{&ast.Ident{Name: "self"}}}
		out := bridge.CheckRefinement(context.Background(), reg.Primitive(types.PrimInt), "self", pred)
		assert.Equal(t, StatusUnknown, out.Status)
		assert.Equal(t, "unsupported expression", out.Reason)
	})
}

func TestCheckDependent(t *testing.T) {
	bridge, reg := newTestBridge()
	intT := reg.Primitive(types.PrimInt)

	params := []types.DependentParam{
		{Name: "n", Sort: intT},
		{Name: "m", Sort: intT},
	}

	t.Run("Tautology", func(t *testing.T) {
		// n + m == m + n holds for every assignment.
		pred := &ast.Binary{
			Op:    ast.OpEq,
			Left:  &ast.Binary{Op: ast.OpAdd, Left: &ast.Ident{Name: "n"}, Right: &ast.Ident{Name: "m"}},
			Right: &ast.Binary{Op: ast.OpAdd, Left: &ast.Ident{Name: "m"}, Right: &ast.Ident{Name: "n"}},
		}

		out := bridge.CheckDependent(context.Background(), params, pred)
		assert.Equal(t, StatusValid, out.Status)
	})

	t.Run("Refutable", func(t *testing.T) {
		pred := &ast.Binary{
			Op:    ast.OpLt,
			Left:  &ast.Ident{Name: "n"},
			Right: &ast.Ident{Name: "m"},
		}

		out := bridge.CheckDependent(context.Background(), params, pred)
		require.Equal(t, StatusInvalid, out.Status)
		assert.Len(t, out.Counterexample, 2, "one entry per parameter, in declaration order")
		assert.Equal(t, "n = 0", out.Counterexample[0])
	})

	t.Run("OffBoundaryRefutation", func(t *testing.T) {
		// !(n*m == 35 && n > 1 && n < 35) fails only at n=5, m=7,
		// which the builtin backend's candidate set never reaches. It
		// must answer unknown, never certify validity it cannot prove.
		pred := &ast.Unary{Op: "!", Operand: &ast.Binary{
			Op: ast.OpAnd,
			Left: &ast.Binary{
				Op:    ast.OpEq,
				Left:  &ast.Binary{Op: ast.OpMul, Left: &ast.Ident{Name: "n"}, Right: &ast.Ident{Name: "m"}},
				Right: &ast.IntLit{Value: 35},
			},
			Right: &ast.Binary{
				Op:    ast.OpAnd,
				Left:  &ast.Binary{Op: ast.OpGt, Left: &ast.Ident{Name: "n"}, Right: &ast.IntLit{Value: 1}},
				Right: &ast.Binary{Op: ast.OpLt, Left: &ast.Ident{Name: "n"}, Right: &ast.IntLit{Value: 35}},
			},
		}}

		out := bridge.CheckDependent(context.Background(), params, pred)
		assert.Equal(t, StatusUnknown, out.Status)
	})
}
