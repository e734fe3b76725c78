package solver

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vela-lang/vela/internal/ast"
)

// BuiltinBackend is a finite-model searcher over the lowered term
// language. It decides the obligations the bridge actually emits
// (integer/real/boolean constants, comparisons, arithmetic and
// connectives) by enumerating candidate assignments drawn from the
// constants appearing in the query. It answers unsat only with a
// proof in hand: a constantly false assertion, an empty variable
// interval, or a fully enumerated all-boolean domain. An exhausted
// numeric search proves nothing and answers unknown, as does an
// overflowing one. It exists so the checker works with no external
// solver installed.
type BuiltinBackend struct {
	// MaxAssignments caps the number of candidate models tried per
	// Check before giving up with unknown. Zero means the default.
	MaxAssignments int
}

const defaultMaxAssignments = 200000

// Name implements Backend.
func (b *BuiltinBackend) Name() string { return "builtin" }

// CreateContext implements Backend.
func (b *BuiltinBackend) CreateContext(_ context.Context) (Context, error) {
	limit := b.MaxAssignments
	if limit <= 0 {
		limit = defaultMaxAssignments
	}

	return &builtinContext{
		consts: make(map[string]Sort),
		frames: [][]Term{nil},
		limit:  limit,
	}, nil
}

type builtinContext struct {
	consts map[string]Sort
	order  []string
	frames [][]Term
	model  []Assignment
	limit  int
	closed bool
}

func (c *builtinContext) DeclareConst(name string, s Sort) error {
	if _, exists := c.consts[name]; exists {
		return fmt.Errorf("constant %s already declared", name)
	}

	c.consts[name] = s
	c.order = append(c.order, name)

	return nil
}

func (c *builtinContext) Assert(term Term) error {
	top := len(c.frames) - 1
	c.frames[top] = append(c.frames[top], term)

	return nil
}

func (c *builtinContext) Push() error {
	c.frames = append(c.frames, nil)

	return nil
}

func (c *builtinContext) Pop() error {
	if len(c.frames) <= 1 {
		return fmt.Errorf("pop on empty assertion stack")
	}

	c.frames = c.frames[:len(c.frames)-1]

	return nil
}

func (c *builtinContext) Close() error {
	c.closed = true

	return nil
}

// value is one evaluated term. Numeric values promote to real when an
// operation mixes sorts.
type value struct {
	sort Sort
	i    int64
	f    float64
	b    bool
}

func intValue(v int64) value    { return value{sort: SortInt, i: v} }
func realValue(v float64) value { return value{sort: SortReal, f: v} }
func boolValue(v bool) value    { return value{sort: SortBool, b: v} }

func (v value) asReal() float64 {
	if v.sort == SortInt {
		return float64(v.i)
	}

	return v.f
}

func (v value) render() string {
	switch v.sort {
	case SortInt:
		return fmt.Sprintf("%d", v.i)
	case SortReal:
		return fmt.Sprintf("%g", v.f)
	case SortBool:
		return fmt.Sprintf("%t", v.b)
	default:
		return "?"
	}
}

// Check first looks for an unsatisfiability proof (a constantly false
// assertion after linear cancellation, or an integer constant pinned
// into an empty range), then enumerates candidate assignments for a
// model. The deadline in ctx is polled between assignments so a
// pathological query degrades to unknown instead of blocking.
func (c *builtinContext) Check(ctx context.Context) (Result, error) {
	c.model = nil

	var asserts []Term
	for _, frame := range c.frames {
		asserts = append(asserts, frame...)
	}

	if len(asserts) == 0 {
		// Vacuously satisfiable; any assignment is a model.
		c.model = make([]Assignment, 0, len(c.order))
		for _, name := range c.order {
			v := intValue(0)
			if c.consts[name] == SortBool {
				v = boolValue(false)
			} else if c.consts[name] == SortReal {
				v = realValue(0)
			}

			c.model = append(c.model, Assignment{Name: name, Value: v.render()})
		}

		return ResultSat, nil
	}

	for _, a := range asserts {
		if decideTerm(a) == triFalse {
			return ResultUnsat, nil
		}
	}

	if hasEmptyInterval(asserts, c.consts) {
		return ResultUnsat, nil
	}

	candidates := make([][]value, len(c.order))
	for i, name := range c.order {
		candidates[i] = candidateValues(c.consts[name], asserts)
	}

	env := make(map[string]value, len(c.order))
	tried := 0
	sawEvalError := false

	var search func(i int) (Result, bool)
	search = func(i int) (Result, bool) {
		if tried >= c.limit {
			return ResultUnknown, true
		}

		select {
		case <-ctx.Done():
			return ResultUnknown, true
		default:
		}

		if i == len(c.order) {
			tried++

			for _, a := range asserts {
				v, err := evalTerm(a, env)
				if err != nil {
					sawEvalError = true

					return ResultUnknown, false
				}

				if v.sort != SortBool || !v.b {
					return ResultUnknown, false
				}
			}

			// Satisfying assignment found; capture the model in
			// declaration order.
			c.model = make([]Assignment, 0, len(c.order))
			for _, name := range c.order {
				c.model = append(c.model, Assignment{Name: name, Value: env[name].render()})
			}

			return ResultSat, true
		}

		for _, v := range candidates[i] {
			env[c.order[i]] = v
			if res, done := search(i + 1); done {
				return res, true
			}
		}

		return ResultUnknown, false
	}

	if res, done := search(0); done {
		return res, nil
	}

	if sawEvalError {
		return ResultUnknown, nil
	}

	// Booleans are the only sort the candidate set enumerates
	// completely. Exhausting a numeric search proves nothing: the
	// counterexample may lie off every boundary.
	for _, s := range c.consts {
		if s != SortBool {
			return ResultUnknown, nil
		}
	}

	return ResultUnsat, nil
}

func (c *builtinContext) Model() ([]Assignment, error) {
	if c.model == nil {
		return nil, fmt.Errorf("no model available; last check was not sat")
	}

	out := make([]Assignment, len(c.model))
	copy(out, c.model)

	return out, nil
}

// ===== Unsatisfiability proofs =====

type truth int8

const (
	triUnknown truth = iota
	triFalse
	triTrue
)

// linform is a linear combination over the declared constants: one
// real coefficient per variable plus a constant term. Zero
// coefficients are never stored, so a ground form has a nil map.
type linform struct {
	coef map[string]float64
	c    float64
}

func (f linform) scale(k float64) linform {
	out := linform{c: f.c * k}
	if k == 0 || len(f.coef) == 0 {
		return out
	}

	out.coef = make(map[string]float64, len(f.coef))
	for v, cf := range f.coef {
		out.coef[v] = cf * k
	}

	return out
}

func (f linform) add(g linform) linform {
	out := linform{c: f.c + g.c}
	if len(f.coef)+len(g.coef) == 0 {
		return out
	}

	out.coef = make(map[string]float64, len(f.coef)+len(g.coef))
	for v, cf := range f.coef {
		out.coef[v] = cf
	}

	for v, cf := range g.coef {
		sum := out.coef[v] + cf
		if sum == 0 {
			delete(out.coef, v)
		} else {
			out.coef[v] = sum
		}
	}

	return out
}

// linearize rewrites a numeric term as a linear form. Division and
// modulo are refused outright: integer truncation would make the
// rewrite lossy, and a wrong cancellation here would fake a proof.
func linearize(t Term) (linform, bool) {
	switch n := t.(type) {
	case *IntConst:
		return linform{c: float64(n.Value)}, true

	case *RealConst:
		return linform{c: n.Value}, true

	case *Var:
		if n.Sort == SortBool {
			return linform{}, false
		}

		return linform{coef: map[string]float64{n.Name: 1}}, true

	case *Neg:
		f, ok := linearize(n.Operand)
		if !ok {
			return linform{}, false
		}

		return f.scale(-1), true

	case *Binary:
		switch n.Op {
		case ast.OpAdd, ast.OpSub:
			l, ok := linearize(n.Left)
			if !ok {
				return linform{}, false
			}

			r, ok := linearize(n.Right)
			if !ok {
				return linform{}, false
			}

			if n.Op == ast.OpSub {
				r = r.scale(-1)
			}

			return l.add(r), true

		case ast.OpMul:
			l, lok := linearize(n.Left)
			r, rok := linearize(n.Right)

			if lok && rok && len(l.coef) == 0 {
				return r.scale(l.c), true
			}

			if lok && rok && len(r.coef) == 0 {
				return l.scale(r.c), true
			}

			return linform{}, false
		}

		return linform{}, false

	default:
		return linform{}, false
	}
}

func linearDiff(l, r Term) (linform, bool) {
	lf, ok := linearize(l)
	if !ok {
		return linform{}, false
	}

	rf, ok := linearize(r)
	if !ok {
		return linform{}, false
	}

	return lf.add(rf.scale(-1)), true
}

// decideTerm evaluates a term with no assignment in hand, deciding
// ground subterms and comparisons whose variable parts cancel. The
// only admissible wrong answer is unknown.
func decideTerm(t Term) truth {
	switch n := t.(type) {
	case *BoolConst:
		if n.Value {
			return triTrue
		}

		return triFalse

	case *Not:
		switch decideTerm(n.Operand) {
		case triTrue:
			return triFalse
		case triFalse:
			return triTrue
		default:
			return triUnknown
		}

	case *Binary:
		if n.Op.IsLogical() {
			l, r := decideTerm(n.Left), decideTerm(n.Right)
			if n.Op == ast.OpAnd {
				if l == triFalse || r == triFalse {
					return triFalse
				}

				if l == triTrue && r == triTrue {
					return triTrue
				}

				return triUnknown
			}

			if l == triTrue || r == triTrue {
				return triTrue
			}

			if l == triFalse && r == triFalse {
				return triFalse
			}

			return triUnknown
		}

		if !n.Op.IsComparison() {
			return triUnknown
		}

		diff, ok := linearDiff(n.Left, n.Right)
		if !ok || len(diff.coef) != 0 {
			return triUnknown
		}

		var holds bool
		switch n.Op {
		case ast.OpEq:
			holds = diff.c == 0
		case ast.OpNe:
			holds = diff.c != 0
		case ast.OpLt:
			holds = diff.c < 0
		case ast.OpLe:
			holds = diff.c <= 0
		case ast.OpGt:
			holds = diff.c > 0
		case ast.OpGe:
			holds = diff.c >= 0
		}

		if holds {
			return triTrue
		}

		return triFalse

	default:
		return triUnknown
	}
}

type interval struct {
	lo, hi float64
}

// hasEmptyInterval walks the asserted conjunction (De Morgan through
// negation) and tightens one range per single-variable comparison
// atom. Only integer constants participate: the ceil/floor rounding
// is exact for them and would invent contradictions for reals. A
// range with no integers left is a proof that no assignment at all
// can satisfy the assertions.
func hasEmptyInterval(asserts []Term, consts map[string]Sort) bool {
	bounds := map[string]*interval{}

	var visit func(t Term, neg bool)
	visit = func(t Term, neg bool) {
		switch n := t.(type) {
		case *Not:
			visit(n.Operand, !neg)

		case *Binary:
			switch {
			case n.Op == ast.OpAnd && !neg, n.Op == ast.OpOr && neg:
				visit(n.Left, neg)
				visit(n.Right, neg)

			case n.Op.IsComparison():
				tightenBound(n, neg, bounds, consts)
			}
		}
	}

	for _, a := range asserts {
		visit(a, false)
	}

	for _, b := range bounds {
		if b.lo > b.hi {
			return true
		}
	}

	return false
}

func tightenBound(n *Binary, neg bool, bounds map[string]*interval, consts map[string]Sort) {
	diff, ok := linearDiff(n.Left, n.Right)
	if !ok || len(diff.coef) != 1 {
		return
	}

	op := n.Op
	if neg {
		switch op {
		case ast.OpEq:
			op = ast.OpNe
		case ast.OpNe:
			op = ast.OpEq
		case ast.OpLt:
			op = ast.OpGe
		case ast.OpLe:
			op = ast.OpGt
		case ast.OpGt:
			op = ast.OpLe
		case ast.OpGe:
			op = ast.OpLt
		}
	}

	if op == ast.OpNe {
		return
	}

	var name string
	var k float64
	for v, cf := range diff.coef {
		name, k = v, cf
	}

	if consts[name] != SortInt {
		return
	}

	// k*x + c  op  0 rearranges to x op' q; a negative k flips the
	// inequality sense.
	q := -diff.c / k
	if k < 0 {
		switch op {
		case ast.OpLt:
			op = ast.OpGt
		case ast.OpLe:
			op = ast.OpGe
		case ast.OpGt:
			op = ast.OpLt
		case ast.OpGe:
			op = ast.OpLe
		}
	}

	b := bounds[name]
	if b == nil {
		b = &interval{lo: math.Inf(-1), hi: math.Inf(1)}
		bounds[name] = b
	}

	switch op {
	case ast.OpGe:
		b.lo = math.Max(b.lo, math.Ceil(q))
	case ast.OpGt:
		b.lo = math.Max(b.lo, math.Floor(q)+1)
	case ast.OpLe:
		b.hi = math.Min(b.hi, math.Floor(q))
	case ast.OpLt:
		b.hi = math.Min(b.hi, math.Ceil(q)-1)
	case ast.OpEq:
		b.lo = math.Max(b.lo, math.Ceil(q))
		b.hi = math.Min(b.hi, math.Floor(q))
	}
}

// candidateValues drains the constants occurring in the assertions into
// a candidate set around each boundary. Zero and its neighbours come
// first so reported counterexamples stay small.
func candidateValues(s Sort, asserts []Term) []value {
	switch s {
	case SortBool:
		return []value{boolValue(false), boolValue(true)}

	case SortInt:
		seen := map[int64]bool{}
		var out []value

		add := func(v int64) {
			if !seen[v] {
				seen[v] = true
				out = append(out, intValue(v))
			}
		}

		add(0)
		add(1)
		add(-1)

		var consts []int64
		for _, a := range asserts {
			collectIntConsts(a, &consts)
		}

		sort.Slice(consts, func(i, j int) bool { return consts[i] < consts[j] })

		for _, cv := range consts {
			add(cv - 1)
			add(cv)
			add(cv + 1)
		}

		return out

	case SortReal:
		seen := map[float64]bool{}
		var out []value

		add := func(v float64) {
			if !seen[v] {
				seen[v] = true
				out = append(out, realValue(v))
			}
		}

		add(0)
		add(1)
		add(-1)

		var consts []float64
		for _, a := range asserts {
			collectRealConsts(a, &consts)
		}

		sort.Float64s(consts)

		for _, cv := range consts {
			add(cv - 1)
			add(cv)
			add(cv + 1)
		}

		return out

	default:
		return nil
	}
}

func collectIntConsts(t Term, out *[]int64) {
	switch n := t.(type) {
	case *IntConst:
		*out = append(*out, n.Value)
	case *Binary:
		collectIntConsts(n.Left, out)
		collectIntConsts(n.Right, out)
	case *Not:
		collectIntConsts(n.Operand, out)
	case *Neg:
		collectIntConsts(n.Operand, out)
	}
}

func collectRealConsts(t Term, out *[]float64) {
	switch n := t.(type) {
	case *RealConst:
		*out = append(*out, n.Value)
	case *IntConst:
		*out = append(*out, float64(n.Value))
	case *Binary:
		collectRealConsts(n.Left, out)
		collectRealConsts(n.Right, out)
	case *Not:
		collectRealConsts(n.Operand, out)
	case *Neg:
		collectRealConsts(n.Operand, out)
	}
}

func evalTerm(t Term, env map[string]value) (value, error) {
	switch n := t.(type) {
	case *IntConst:
		return intValue(n.Value), nil

	case *RealConst:
		return realValue(n.Value), nil

	case *BoolConst:
		return boolValue(n.Value), nil

	case *Var:
		v, ok := env[n.Name]
		if !ok {
			return value{}, fmt.Errorf("unbound constant %s", n.Name)
		}

		return v, nil

	case *Not:
		v, err := evalTerm(n.Operand, env)
		if err != nil {
			return value{}, err
		}

		if v.sort != SortBool {
			return value{}, fmt.Errorf("not applied to %s", v.sort)
		}

		return boolValue(!v.b), nil

	case *Neg:
		v, err := evalTerm(n.Operand, env)
		if err != nil {
			return value{}, err
		}

		switch v.sort {
		case SortInt:
			return intValue(-v.i), nil
		case SortReal:
			return realValue(-v.f), nil
		default:
			return value{}, fmt.Errorf("negation applied to %s", v.sort)
		}

	case *Binary:
		return evalBinary(n, env)

	default:
		return value{}, fmt.Errorf("unsupported term %T", t)
	}
}

func evalBinary(n *Binary, env map[string]value) (value, error) {
	l, err := evalTerm(n.Left, env)
	if err != nil {
		return value{}, err
	}

	r, err := evalTerm(n.Right, env)
	if err != nil {
		return value{}, err
	}

	if n.Op.IsLogical() {
		if l.sort != SortBool || r.sort != SortBool {
			return value{}, fmt.Errorf("%s applied to non-boolean operands", n.Op)
		}

		if n.Op == ast.OpAnd {
			return boolValue(l.b && r.b), nil
		}

		return boolValue(l.b || r.b), nil
	}

	if n.Op == ast.OpEq || n.Op == ast.OpNe {
		if l.sort == SortBool && r.sort == SortBool {
			return boolValue((l.b == r.b) == (n.Op == ast.OpEq)), nil
		}
	}

	if l.sort == SortBool || r.sort == SortBool {
		return value{}, fmt.Errorf("%s applied to boolean operand", n.Op)
	}

	// Mixed numeric operands promote to real.
	if l.sort == SortReal || r.sort == SortReal {
		lf, rf := l.asReal(), r.asReal()

		switch n.Op {
		case ast.OpAdd:
			return realValue(lf + rf), nil
		case ast.OpSub:
			return realValue(lf - rf), nil
		case ast.OpMul:
			return realValue(lf * rf), nil
		case ast.OpDiv:
			if rf == 0 {
				return value{}, fmt.Errorf("division by zero")
			}

			return realValue(lf / rf), nil
		case ast.OpMod:
			return value{}, fmt.Errorf("modulo on real operands")
		case ast.OpEq:
			return boolValue(lf == rf), nil
		case ast.OpNe:
			return boolValue(lf != rf), nil
		case ast.OpLt:
			return boolValue(lf < rf), nil
		case ast.OpLe:
			return boolValue(lf <= rf), nil
		case ast.OpGt:
			return boolValue(lf > rf), nil
		case ast.OpGe:
			return boolValue(lf >= rf), nil
		}

		return value{}, fmt.Errorf("unsupported operator %s", n.Op)
	}

	li, ri := l.i, r.i

	switch n.Op {
	case ast.OpAdd:
		return intValue(li + ri), nil
	case ast.OpSub:
		return intValue(li - ri), nil
	case ast.OpMul:
		return intValue(li * ri), nil
	case ast.OpDiv:
		if ri == 0 {
			return value{}, fmt.Errorf("division by zero")
		}

		return intValue(li / ri), nil
	case ast.OpMod:
		if ri == 0 {
			return value{}, fmt.Errorf("modulo by zero")
		}

		return intValue(li % ri), nil
	case ast.OpEq:
		return boolValue(li == ri), nil
	case ast.OpNe:
		return boolValue(li != ri), nil
	case ast.OpLt:
		return boolValue(li < ri), nil
	case ast.OpLe:
		return boolValue(li <= ri), nil
	case ast.OpGt:
		return boolValue(li > ri), nil
	case ast.OpGe:
		return boolValue(li >= ri), nil
	default:
		return value{}, fmt.Errorf("unsupported operator %s", n.Op)
	}
}
