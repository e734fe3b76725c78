// Package solver implements the bridge between the checker's
// refinement/dependent obligations and an SMT-style decision procedure.
// Obligations are lowered to a small term language; any conforming
// Backend can discharge them. Contexts are created per obligation and
// never outlive it.
package solver

import (
	"fmt"

	"github.com/vela-lang/vela/internal/ast"
)

// Sort identifies the solver-level type of a constant.
type Sort int

const (
	SortInt Sort = iota
	SortReal
	SortBool
)

// String returns the SMT-LIB name of the sort.
func (s Sort) String() string {
	switch s {
	case SortInt:
		return "Int"
	case SortReal:
		return "Real"
	case SortBool:
		return "Bool"
	default:
		return "Unknown"
	}
}

// Term is one node of the lowered formula language.
type Term interface {
	termNode()
	String() string
}

// IntConst is an integer literal.
type IntConst struct {
	Value int64
}

func (t *IntConst) termNode()      {}
func (t *IntConst) String() string { return fmt.Sprintf("%d", t.Value) }

// RealConst is a floating-point literal.
type RealConst struct {
	Value float64
}

func (t *RealConst) termNode()      {}
func (t *RealConst) String() string { return fmt.Sprintf("%g", t.Value) }

// BoolConst is a boolean literal.
type BoolConst struct {
	Value bool
}

func (t *BoolConst) termNode()      {}
func (t *BoolConst) String() string { return fmt.Sprintf("%t", t.Value) }

// Var references a declared solver constant by name.
type Var struct {
	Name string
	Sort Sort
}

func (t *Var) termNode()      {}
func (t *Var) String() string { return t.Name }

// Binary applies a binary operator to two terms. The operator set is
// shared with the AST: arithmetic, comparisons, and boolean
// connectives.
type Binary struct {
	Op    ast.BinaryOp
	Left  Term
	Right Term
}

func (t *Binary) termNode() {}
func (t *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", t.Left.String(), t.Op.String(), t.Right.String())
}

// Not negates a boolean term.
type Not struct {
	Operand Term
}

func (t *Not) termNode()      {}
func (t *Not) String() string { return fmt.Sprintf("(not %s)", t.Operand.String()) }

// Neg negates a numeric term.
type Neg struct {
	Operand Term
}

func (t *Neg) termNode()      {}
func (t *Neg) String() string { return fmt.Sprintf("(- %s)", t.Operand.String()) }
