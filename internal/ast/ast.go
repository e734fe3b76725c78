// Package ast defines the parsed input tree the Vela checker consumes.
// The parser produces a Program per compilation unit; every node carries
// the source span used verbatim in diagnostics. Nodes are plain data:
// the checker walks them with type switches and attaches its results
// through the annotation store rather than mutating the tree.
package ast

import (
	"fmt"
	"strings"

	"github.com/vela-lang/vela/internal/position"
)

// Node is the base interface for all AST nodes.
type Node interface {
	// GetSpan returns the source span covered by this node.
	GetSpan() position.Span
	// String returns a human-readable representation of the node.
	String() string
}

// Declaration represents all top-level declaration nodes.
type Declaration interface {
	Node
	declarationNode()
}

// Statement represents all statement nodes.
type Statement interface {
	Node
	statementNode()
}

// Expression represents all expression nodes.
type Expression interface {
	Node
	expressionNode()
}

// TypeExpr represents all type expression nodes.
type TypeExpr interface {
	Node
	typeExprNode()
}

// ===== Program Structure =====

// Program represents one complete compilation unit.
type Program struct {
	Span         position.Span
	Unit         string        // Unit (module) name
	Version      string        // Declared unit version, empty if none
	Declarations []Declaration // Top-level declarations in source order
}

func (p *Program) GetSpan() position.Span { return p.Span }
func (p *Program) String() string {
	var parts []string
	for _, decl := range p.Declarations {
		parts = append(parts, decl.String())
	}

	return strings.Join(parts, "\n")
}

// ===== Declarations =====

// TypeParam represents a generic type parameter with an optional bound.
type TypeParam struct {
	Span  position.Span
	Name  string
	Bound TypeExpr // nil when unbounded
}

func (tp *TypeParam) GetSpan() position.Span { return tp.Span }
func (tp *TypeParam) String() string {
	if tp.Bound != nil {
		return fmt.Sprintf("%s: %s", tp.Name, tp.Bound.String())
	}

	return tp.Name
}

// Param represents a function parameter.
type Param struct {
	Span position.Span
	Name string
	Type TypeExpr
}

func (p *Param) GetSpan() position.Span { return p.Span }
func (p *Param) String() string {
	return fmt.Sprintf("%s: %s", p.Name, p.Type.String())
}

// FunctionDecl represents a function definition. The declared effect
// names form the function's effect set; an empty list marks it pure.
type FunctionDecl struct {
	Span       position.Span
	Name       string
	TypeParams []*TypeParam
	Params     []*Param
	ReturnType TypeExpr // nil for unit-returning functions
	Effects    []string // Declared effect names
	Body       *Block   // nil for extern declarations
}

func (f *FunctionDecl) GetSpan() position.Span { return f.Span }
func (f *FunctionDecl) declarationNode()       {}
func (f *FunctionDecl) String() string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.String())
	}

	eff := ""
	if len(f.Effects) > 0 {
		eff = " with " + strings.Join(f.Effects, ", ")
	}

	ret := ""
	if f.ReturnType != nil {
		ret = " -> " + f.ReturnType.String()
	}

	return fmt.Sprintf("fn %s(%s)%s%s", f.Name, strings.Join(params, ", "), ret, eff)
}

// Field represents a named field of a struct declaration.
type Field struct {
	Span position.Span
	Name string
	Type TypeExpr
}

func (f *Field) GetSpan() position.Span { return f.Span }
func (f *Field) String() string {
	return fmt.Sprintf("%s: %s", f.Name, f.Type.String())
}

// StructDecl represents a struct/class definition.
type StructDecl struct {
	Span       position.Span
	Name       string
	TypeParams []*TypeParam
	Fields     []*Field
	Methods    []*FunctionDecl
}

func (s *StructDecl) GetSpan() position.Span { return s.Span }
func (s *StructDecl) declarationNode()       {}
func (s *StructDecl) String() string {
	return fmt.Sprintf("struct %s", s.Name)
}

// MethodSig represents an abstract method signature in a trait.
type MethodSig struct {
	Span       position.Span
	Name       string
	Params     []*Param
	ReturnType TypeExpr
	Effects    []string
}

func (m *MethodSig) GetSpan() position.Span { return m.Span }
func (m *MethodSig) String() string {
	var params []string
	for _, p := range m.Params {
		params = append(params, p.String())
	}

	return fmt.Sprintf("fn %s(%s)", m.Name, strings.Join(params, ", "))
}

// TraitDecl represents a trait definition.
type TraitDecl struct {
	Span       position.Span
	Name       string
	TypeParams []*TypeParam
	Methods    []*MethodSig
}

func (t *TraitDecl) GetSpan() position.Span { return t.Span }
func (t *TraitDecl) declarationNode()       {}
func (t *TraitDecl) String() string {
	return fmt.Sprintf("trait %s", t.Name)
}

// OperationSig represents one operation signature of an effect.
type OperationSig struct {
	Span       position.Span
	Name       string
	Params     []*Param
	ReturnType TypeExpr
}

func (o *OperationSig) GetSpan() position.Span { return o.Span }
func (o *OperationSig) String() string {
	var params []string
	for _, p := range o.Params {
		params = append(params, p.String())
	}

	return fmt.Sprintf("op %s(%s)", o.Name, strings.Join(params, ", "))
}

// EffectDecl represents an algebraic effect declaration.
type EffectDecl struct {
	Span       position.Span
	Name       string
	Operations []*OperationSig
}

func (e *EffectDecl) GetSpan() position.Span { return e.Span }
func (e *EffectDecl) declarationNode()       {}
func (e *EffectDecl) String() string {
	return fmt.Sprintf("effect %s", e.Name)
}

// HandlerOp represents one operation implementation inside a handler.
type HandlerOp struct {
	Span   position.Span
	Name   string
	Params []*Param
	Body   *Block
}

func (h *HandlerOp) GetSpan() position.Span { return h.Span }
func (h *HandlerOp) String() string {
	return fmt.Sprintf("op %s", h.Name)
}

// HandlerDecl represents a handler discharging one effect's operations.
type HandlerDecl struct {
	Span       position.Span
	Name       string
	EffectName string
	StateType  TypeExpr // Optional carried state, nil if stateless
	Operations []*HandlerOp
}

func (h *HandlerDecl) GetSpan() position.Span { return h.Span }
func (h *HandlerDecl) declarationNode()       {}
func (h *HandlerDecl) String() string {
	return fmt.Sprintf("handler %s for %s", h.Name, h.EffectName)
}

// LinearOp represents a named operation of a linear type declaration.
type LinearOp struct {
	Span         position.Span
	Name         string
	IsDestructor bool
}

func (l *LinearOp) GetSpan() position.Span { return l.Span }
func (l *LinearOp) String() string {
	if l.IsDestructor {
		return fmt.Sprintf("drop %s", l.Name)
	}

	return fmt.Sprintf("op %s", l.Name)
}

// LinearDecl represents a linear type declaration wrapping an inner type.
type LinearDecl struct {
	Span       position.Span
	Name       string
	Inner      TypeExpr
	Operations []*LinearOp
}

func (l *LinearDecl) GetSpan() position.Span { return l.Span }
func (l *LinearDecl) declarationNode()       {}
func (l *LinearDecl) String() string {
	return fmt.Sprintf("linear %s(%s)", l.Name, l.Inner.String())
}

// VariableDecl represents a top-level or local variable binding.
type VariableDecl struct {
	Span    position.Span
	Name    string
	Type    TypeExpr // nil when the type comes from the initializer
	Value   Expression
	Mutable bool
}

func (v *VariableDecl) GetSpan() position.Span { return v.Span }
func (v *VariableDecl) declarationNode()       {}
func (v *VariableDecl) String() string {
	kw := "let"
	if v.Mutable {
		kw = "var"
	}

	return fmt.Sprintf("%s %s", kw, v.Name)
}

// TypeAliasDecl represents a type alias definition.
type TypeAliasDecl struct {
	Span       position.Span
	Name       string
	TypeParams []*TypeParam
	Aliased    TypeExpr
}

func (t *TypeAliasDecl) GetSpan() position.Span { return t.Span }
func (t *TypeAliasDecl) declarationNode()       {}
func (t *TypeAliasDecl) String() string {
	return fmt.Sprintf("type %s = %s", t.Name, t.Aliased.String())
}

// UseDecl represents an import of another compilation unit, optionally
// constrained to a semver range.
type UseDecl struct {
	Span        position.Span
	Unit        string
	Requirement string // Semver constraint, empty when unconstrained
}

func (u *UseDecl) GetSpan() position.Span { return u.Span }
func (u *UseDecl) declarationNode()       {}
func (u *UseDecl) String() string {
	if u.Requirement != "" {
		return fmt.Sprintf("use %s %s", u.Unit, u.Requirement)
	}

	return fmt.Sprintf("use %s", u.Unit)
}

// RegionDecl represents a region bounding the effects permitted inside
// its body.
type RegionDecl struct {
	Span    position.Span
	Name    string
	Allowed []string // Effect names permitted inside the region
	Body    *Block
}

func (r *RegionDecl) GetSpan() position.Span { return r.Span }
func (r *RegionDecl) declarationNode()       {}
func (r *RegionDecl) String() string {
	return fmt.Sprintf("region %s[%s]", r.Name, strings.Join(r.Allowed, ", "))
}

// ===== Statements =====

// Block represents a braced statement sequence.
type Block struct {
	Span       position.Span
	Statements []Statement
}

func (b *Block) GetSpan() position.Span { return b.Span }
func (b *Block) statementNode()         {}
func (b *Block) String() string {
	return fmt.Sprintf("{ %d statements }", len(b.Statements))
}

// LetStmt represents a local binding.
type LetStmt struct {
	Span    position.Span
	Name    string
	Type    TypeExpr // nil when inferred from the initializer
	Value   Expression
	Mutable bool
}

func (l *LetStmt) GetSpan() position.Span { return l.Span }
func (l *LetStmt) statementNode()         {}
func (l *LetStmt) String() string {
	return fmt.Sprintf("let %s", l.Name)
}

// AssignStmt represents an assignment to an existing binding.
type AssignStmt struct {
	Span   position.Span
	Target string
	Value  Expression
}

func (a *AssignStmt) GetSpan() position.Span { return a.Span }
func (a *AssignStmt) statementNode()         {}
func (a *AssignStmt) String() string {
	return fmt.Sprintf("%s = %s", a.Target, a.Value.String())
}

// ReturnStmt represents a return from the enclosing function.
type ReturnStmt struct {
	Span  position.Span
	Value Expression // nil for bare returns
}

func (r *ReturnStmt) GetSpan() position.Span { return r.Span }
func (r *ReturnStmt) statementNode()         {}
func (r *ReturnStmt) String() string {
	if r.Value == nil {
		return "return"
	}

	return fmt.Sprintf("return %s", r.Value.String())
}

// IfStmt represents a conditional with an optional else branch.
type IfStmt struct {
	Span position.Span
	Cond Expression
	Then *Block
	Else *Block // nil when absent
}

func (i *IfStmt) GetSpan() position.Span { return i.Span }
func (i *IfStmt) statementNode()         {}
func (i *IfStmt) String() string {
	return fmt.Sprintf("if %s", i.Cond.String())
}

// ExprStmt represents an expression evaluated for its effects.
type ExprStmt struct {
	Span position.Span
	Expr Expression
}

func (e *ExprStmt) GetSpan() position.Span { return e.Span }
func (e *ExprStmt) statementNode()         {}
func (e *ExprStmt) String() string {
	return e.Expr.String()
}

// RegionStmt represents a region nested inside a function body.
type RegionStmt struct {
	Span    position.Span
	Name    string
	Allowed []string
	Body    *Block
}

func (r *RegionStmt) GetSpan() position.Span { return r.Span }
func (r *RegionStmt) statementNode()         {}
func (r *RegionStmt) String() string {
	return fmt.Sprintf("region %s[%s]", r.Name, strings.Join(r.Allowed, ", "))
}

// ===== Expressions =====

// IntLit represents an integer literal.
type IntLit struct {
	Span  position.Span
	Value int64
}

func (i *IntLit) GetSpan() position.Span { return i.Span }
func (i *IntLit) expressionNode()        {}
func (i *IntLit) String() string         { return fmt.Sprintf("%d", i.Value) }

// FloatLit represents a floating-point literal.
type FloatLit struct {
	Span  position.Span
	Value float64
}

func (f *FloatLit) GetSpan() position.Span { return f.Span }
func (f *FloatLit) expressionNode()        {}
func (f *FloatLit) String() string         { return fmt.Sprintf("%g", f.Value) }

// BoolLit represents a boolean literal.
type BoolLit struct {
	Span  position.Span
	Value bool
}

func (b *BoolLit) GetSpan() position.Span { return b.Span }
func (b *BoolLit) expressionNode()        {}
func (b *BoolLit) String() string         { return fmt.Sprintf("%t", b.Value) }

// StringLit represents a string literal.
type StringLit struct {
	Span  position.Span
	Value string
}

func (s *StringLit) GetSpan() position.Span { return s.Span }
func (s *StringLit) expressionNode()        {}
func (s *StringLit) String() string         { return fmt.Sprintf("%q", s.Value) }

// Ident represents a variable reference.
type Ident struct {
	Span position.Span
	Name string
}

func (i *Ident) GetSpan() position.Span { return i.Span }
func (i *Ident) expressionNode()        {}
func (i *Ident) String() string         { return i.Name }

// BinaryOp enumerates binary operators usable in expressions and
// refinement predicates.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

// String returns the surface syntax of the operator.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "?"
	}
}

// IsComparison reports whether the operator yields a boolean from
// ordered operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// IsLogical reports whether the operator is a boolean connective.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// Binary represents a binary operation.
type Binary struct {
	Span  position.Span
	Op    BinaryOp
	Left  Expression
	Right Expression
}

func (b *Binary) GetSpan() position.Span { return b.Span }
func (b *Binary) expressionNode()        {}
func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op.String(), b.Right.String())
}

// Unary represents a unary operation (negation, logical not).
type Unary struct {
	Span    position.Span
	Op      string // "-" or "!"
	Operand Expression
}

func (u *Unary) GetSpan() position.Span { return u.Span }
func (u *Unary) expressionNode()        {}
func (u *Unary) String() string {
	return fmt.Sprintf("%s%s", u.Op, u.Operand.String())
}

// Call represents an ordinary function call.
type Call struct {
	Span   position.Span
	Callee Expression
	Args   []Expression
}

func (c *Call) GetSpan() position.Span { return c.Span }
func (c *Call) expressionNode()        {}
func (c *Call) String() string {
	var args []string
	for _, a := range c.Args {
		args = append(args, a.String())
	}

	return fmt.Sprintf("%s(%s)", c.Callee.String(), strings.Join(args, ", "))
}

// EffectCall represents an invocation of an effect operation,
// written Effect::operation(args) in the surface syntax.
type EffectCall struct {
	Span      position.Span
	Effect    string
	Operation string
	Args      []Expression
}

func (e *EffectCall) GetSpan() position.Span { return e.Span }
func (e *EffectCall) expressionNode()        {}
func (e *EffectCall) String() string {
	var args []string
	for _, a := range e.Args {
		args = append(args, a.String())
	}

	return fmt.Sprintf("%s::%s(%s)", e.Effect, e.Operation, strings.Join(args, ", "))
}

// Cast represents an explicit conversion to a target type.
type Cast struct {
	Span   position.Span
	Value  Expression
	Target TypeExpr
}

func (c *Cast) GetSpan() position.Span { return c.Span }
func (c *Cast) expressionNode()        {}
func (c *Cast) String() string {
	return fmt.Sprintf("%s as %s", c.Value.String(), c.Target.String())
}

// ===== Type Expressions =====

// NamedType references a type by name, optionally instantiating a
// generic declaration with type arguments.
type NamedType struct {
	Span position.Span
	Name string
	Args []TypeExpr
}

func (n *NamedType) GetSpan() position.Span { return n.Span }
func (n *NamedType) typeExprNode()          {}
func (n *NamedType) String() string {
	if len(n.Args) == 0 {
		return n.Name
	}

	var args []string
	for _, a := range n.Args {
		args = append(args, a.String())
	}

	return fmt.Sprintf("%s<%s>", n.Name, strings.Join(args, ", "))
}

// FunctionType represents a function type expression with its effect row.
type FunctionType struct {
	Span    position.Span
	Params  []TypeExpr
	Return  TypeExpr // nil for unit
	Effects []string
}

func (f *FunctionType) GetSpan() position.Span { return f.Span }
func (f *FunctionType) typeExprNode()          {}
func (f *FunctionType) String() string {
	var params []string
	for _, p := range f.Params {
		params = append(params, p.String())
	}

	ret := "()"
	if f.Return != nil {
		ret = f.Return.String()
	}

	return fmt.Sprintf("fn(%s) -> %s", strings.Join(params, ", "), ret)
}

// RefinementType represents a base type refined by a predicate over a
// bound value variable, written {v: Base | pred}.
type RefinementType struct {
	Span      position.Span
	Var       string // Bound value variable, "self" when elided
	Base      TypeExpr
	Predicate Expression
}

func (r *RefinementType) GetSpan() position.Span { return r.Span }
func (r *RefinementType) typeExprNode()          {}
func (r *RefinementType) String() string {
	return fmt.Sprintf("{%s: %s | %s}", r.Var, r.Base.String(), r.Predicate.String())
}

// DependentParam represents a term-level parameter of a dependent type.
type DependentParam struct {
	Span position.Span
	Name string
	Type TypeExpr
}

func (d *DependentParam) GetSpan() position.Span { return d.Span }
func (d *DependentParam) String() string {
	return fmt.Sprintf("%s: %s", d.Name, d.Type.String())
}

// DependentType represents a type parameterized by term-level values
// related by a predicate.
type DependentType struct {
	Span      position.Span
	Params    []*DependentParam
	Predicate Expression
}

func (d *DependentType) GetSpan() position.Span { return d.Span }
func (d *DependentType) typeExprNode()          {}
func (d *DependentType) String() string {
	var params []string
	for _, p := range d.Params {
		params = append(params, p.String())
	}

	return fmt.Sprintf("dep(%s) where %s", strings.Join(params, ", "), d.Predicate.String())
}
