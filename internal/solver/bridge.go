package solver

import (
	"context"
	"fmt"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/types"
)

// Status classifies the outcome of one obligation.
type Status int

const (
	// StatusValid: the predicate holds for every value meeting the base
	// constraints (the negation was unsatisfiable).
	StatusValid Status = iota
	// StatusInvalid: a counterexample exists.
	StatusInvalid
	// StatusUnknown: the solver could not decide within its budget, or
	// the obligation used an expression form the lowering does not
	// support. Never a crash.
	StatusUnknown
)

// String returns the printable status name.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	case StatusUnknown:
		return "unknown"
	default:
		return "invalid-status"
	}
}

// Outcome is the bridge's answer for one obligation.
type Outcome struct {
	Status Status
	// Counterexample holds one "name = value" entry per queried
	// variable when Status is StatusInvalid.
	Counterexample []string
	// Reason explains a StatusUnknown.
	Reason string
}

// Valid returns the valid outcome.
func Valid() Outcome { return Outcome{Status: StatusValid} }

// Invalid returns an invalid outcome carrying the model.
func Invalid(counterexample []string) Outcome {
	return Outcome{Status: StatusInvalid, Counterexample: counterexample}
}

// Unknown returns an undecided outcome with its reason.
func Unknown(reason string) Outcome {
	return Outcome{Status: StatusUnknown, Reason: reason}
}

// Bridge lowers refinement and dependent obligations to solver terms
// and interprets satisfiability results. One Bridge serves a whole
// check run; each obligation gets its own pooled context.
type Bridge struct {
	reg  *types.Registry
	pool *Pool
}

// NewBridge creates a bridge over the registry and context pool.
func NewBridge(reg *types.Registry, pool *Pool) *Bridge {
	return &Bridge{reg: reg, pool: pool}
}

// CheckRefinement decides whether predicate holds for every value of
// the base type bound to varName. The base type's own constraints
// (declared numeric bounds, nested refinement predicates) are asserted
// as hypotheses; the predicate's negation is then checked for
// satisfiability.
func (b *Bridge) CheckRefinement(ctx context.Context, base types.ID, varName string, predicate ast.Expression) Outcome {
	low := newLowerer()

	sort, ok := b.sortOf(base)
	if !ok {
		return Unknown(fmt.Sprintf("unsupported base type %s", b.reg.String(base)))
	}

	low.declare(varName, sort)

	hypotheses, err := b.baseConstraints(low, base, varName)
	if err != nil {
		return Unknown(err.Error())
	}

	goal, err := low.lower(predicate)
	if err != nil {
		return Unknown("unsupported expression")
	}

	return b.run(ctx, low, hypotheses, goal)
}

// CheckDependent decides whether the refinement predicate of a
// dependent type is a tautology over its parameter sorts: each
// parameter becomes a fresh constant of its declared sort and the
// predicate is checked against no extra base constraints.
func (b *Bridge) CheckDependent(ctx context.Context, params []types.DependentParam, predicate ast.Expression) Outcome {
	low := newLowerer()

	for _, p := range params {
		sort, ok := b.sortOf(p.Sort)
		if !ok {
			return Unknown(fmt.Sprintf("unsupported parameter sort %s", b.reg.String(p.Sort)))
		}

		low.declare(p.Name, sort)
	}

	goal, err := low.lower(predicate)
	if err != nil {
		return Unknown("unsupported expression")
	}

	return b.run(ctx, low, nil, goal)
}

// run asserts the hypotheses plus the negated goal and interprets the
// result. Solver failures of any kind degrade to Unknown.
func (b *Bridge) run(ctx context.Context, low *lowerer, hypotheses []Term, goal Term) Outcome {
	var outcome Outcome

	err := b.pool.Query(ctx, func(qctx context.Context, sc Context) error {
		for _, name := range low.order {
			if err := sc.DeclareConst(name, low.sorts[name]); err != nil {
				return err
			}
		}

		for _, h := range hypotheses {
			if err := sc.Assert(h); err != nil {
				return err
			}
		}

		if err := sc.Assert(&Not{Operand: goal}); err != nil {
			return err
		}

		result, err := sc.Check(qctx)
		if err != nil {
			return err
		}

		switch result {
		case ResultUnsat:
			outcome = Valid()

		case ResultSat:
			model, err := sc.Model()
			if err != nil {
				return err
			}

			outcome = Invalid(formatModel(low.order, model))

		default:
			reason := "solver returned unknown"
			if qctx.Err() != nil {
				reason = "solver timed out"
			}

			outcome = Unknown(reason)
		}

		return nil
	})
	if err != nil {
		return Unknown(err.Error())
	}

	return outcome
}

// formatModel renders every queried variable's model value as
// "name = value", in declaration order.
func formatModel(order []string, model []Assignment) []string {
	byName := make(map[string]string, len(model))
	for _, a := range model {
		byName[a.Name] = a.Value
	}

	out := make([]string, 0, len(order))
	for _, name := range order {
		v, ok := byName[name]
		if !ok {
			v = "?"
		}

		out = append(out, fmt.Sprintf("%s = %s", name, v))
	}

	return out
}

// sortOf maps a base type to its solver sort. Refinements defer to
// their base; anything non-numeric and non-boolean is unsupported.
func (b *Bridge) sortOf(id types.ID) (Sort, bool) {
	t := b.reg.Lookup(id)

	switch t.Kind {
	case types.KindPrimitive:
		switch t.Data.(*types.Primitive).Prim {
		case types.PrimInt:
			return SortInt, true
		case types.PrimFloat:
			return SortReal, true
		case types.PrimBool:
			return SortBool, true
		default:
			return SortInt, false
		}

	case types.KindRefinement:
		return b.sortOf(t.Data.(*types.Refinement).Base)

	case types.KindNamed:
		n := t.Data.(*types.Named)
		if n.Target != types.NoType {
			return b.sortOf(n.Target)
		}

		return SortInt, false

	default:
		return SortInt, false
	}
}

// baseConstraints collects the hypotheses implied by the base type:
// declared numeric bounds and, for nested refinements, the inner
// predicates with their bound variable aliased to varName.
func (b *Bridge) baseConstraints(low *lowerer, id types.ID, varName string) ([]Term, error) {
	t := b.reg.Lookup(id)

	switch t.Kind {
	case types.KindPrimitive:
		p := t.Data.(*types.Primitive)

		var out []Term
		v := &Var{Name: varName, Sort: low.sorts[varName]}

		if p.Min != nil {
			out = append(out, &Binary{Op: ast.OpGe, Left: v, Right: &IntConst{Value: *p.Min}})
		}

		if p.Max != nil {
			out = append(out, &Binary{Op: ast.OpLe, Left: v, Right: &IntConst{Value: *p.Max}})
		}

		return out, nil

	case types.KindRefinement:
		ref := t.Data.(*types.Refinement)

		inner, err := b.baseConstraints(low, ref.Base, varName)
		if err != nil {
			return nil, err
		}

		low.alias(ref.Var, varName)
		defer low.unalias(ref.Var)

		pred, err := low.lower(ref.Predicate)
		if err != nil {
			return nil, fmt.Errorf("unsupported expression")
		}

		return append(inner, pred), nil

	case types.KindNamed:
		n := t.Data.(*types.Named)
		if n.Target != types.NoType {
			return b.baseConstraints(low, n.Target, varName)
		}

		return nil, nil

	default:
		return nil, nil
	}
}

// ===== Lowering =====

// lowerer translates the checkable expression subset into terms.
// Variable references are memoized per query as fresh solver constants
// keyed by name; anything outside the subset fails the lowering and
// the obligation degrades to Unknown.
type lowerer struct {
	sorts   map[string]Sort
	order   []string
	aliases map[string]string
}

func newLowerer() *lowerer {
	return &lowerer{
		sorts:   make(map[string]Sort),
		aliases: make(map[string]string),
	}
}

func (l *lowerer) declare(name string, s Sort) {
	if _, exists := l.sorts[name]; exists {
		return
	}

	l.sorts[name] = s
	l.order = append(l.order, name)
}

func (l *lowerer) alias(from, to string) {
	if from != to {
		l.aliases[from] = to
	}
}

func (l *lowerer) unalias(from string) {
	delete(l.aliases, from)
}

func (l *lowerer) lower(e ast.Expression) (Term, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return &IntConst{Value: n.Value}, nil

	case *ast.FloatLit:
		return &RealConst{Value: n.Value}, nil

	case *ast.BoolLit:
		return &BoolConst{Value: n.Value}, nil

	case *ast.Ident:
		name := n.Name
		if target, ok := l.aliases[name]; ok {
			name = target
		}

		// First reference of an undeclared name defaults to Int.
		l.declare(name, SortInt)

		return &Var{Name: name, Sort: l.sorts[name]}, nil

	case *ast.Binary:
		left, err := l.lower(n.Left)
		if err != nil {
			return nil, err
		}

		right, err := l.lower(n.Right)
		if err != nil {
			return nil, err
		}

		return &Binary{Op: n.Op, Left: left, Right: right}, nil

	case *ast.Unary:
		operand, err := l.lower(n.Operand)
		if err != nil {
			return nil, err
		}

		switch n.Op {
		case "-":
			return &Neg{Operand: operand}, nil
		case "!":
			return &Not{Operand: operand}, nil
		default:
			return nil, fmt.Errorf("unsupported unary operator %s", n.Op)
		}

	default:
		return nil, fmt.Errorf("unsupported expression form %T", e)
	}
}
