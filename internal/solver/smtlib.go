package solver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vela-lang/vela/internal/ast"
)

// SMTLibBackend drives an external SMT-LIB v2 solver process (z3 and
// cvc5 both conform) over stdin/stdout. One process is spawned per
// context and killed when the context closes or its deadline passes.
type SMTLibBackend struct {
	// Path is the solver executable; "z3" when empty.
	Path string
	// Args are the process arguments; z3's "-in -smt2" when empty.
	Args []string
	// CPULimit and MemoryLimit confine the process where the platform
	// supports it (see confine_linux.go). Zero disables the limit.
	CPULimit    time.Duration
	MemoryLimit uint64
}

// Name implements Backend.
func (b *SMTLibBackend) Name() string { return "smtlib" }

// CreateContext implements Backend, spawning one solver process.
func (b *SMTLibBackend) CreateContext(ctx context.Context) (Context, error) {
	path := b.Path
	if path == "" {
		path = "z3"
	}

	args := b.Args
	if len(args) == 0 {
		args = []string{"-in", "-smt2"}
	}

	cmd := exec.CommandContext(ctx, path, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "smtlib: open stdin")
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "smtlib: open stdout")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "smtlib: start %s", path)
	}

	if err := confineProcess(cmd.Process.Pid, b.CPULimit, b.MemoryLimit); err != nil {
		_ = cmd.Process.Kill()

		return nil, errors.Wrap(err, "smtlib: confine solver process")
	}

	sc := &smtContext{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
	}

	if err := sc.send("(set-option :print-success false)"); err != nil {
		_ = sc.Close()

		return nil, err
	}

	return sc, nil
}

type smtContext struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	sorts  map[string]Sort
	closed bool
}

func (c *smtContext) send(line string) error {
	if _, err := io.WriteString(c.stdin, line+"\n"); err != nil {
		return errors.Wrap(err, "smtlib: write to solver")
	}

	return nil
}

func (c *smtContext) DeclareConst(name string, s Sort) error {
	if c.sorts == nil {
		c.sorts = make(map[string]Sort)
	}

	if _, exists := c.sorts[name]; exists {
		return fmt.Errorf("constant %s already declared", name)
	}

	c.sorts[name] = s

	return c.send(fmt.Sprintf("(declare-const %s %s)", name, s.String()))
}

func (c *smtContext) Assert(term Term) error {
	formula, err := c.format(term)
	if err != nil {
		return err
	}

	return c.send(fmt.Sprintf("(assert %s)", formula))
}

func (c *smtContext) Push() error { return c.send("(push 1)") }
func (c *smtContext) Pop() error  { return c.send("(pop 1)") }

func (c *smtContext) Check(ctx context.Context) (Result, error) {
	// The solver-side timeout mirrors the context deadline; if the
	// process ignores it, CommandContext kills it and the read below
	// fails, which still degrades to unknown at the bridge.
	if deadline, ok := ctx.Deadline(); ok {
		ms := time.Until(deadline).Milliseconds()
		if ms < 1 {
			return ResultUnknown, nil
		}

		if err := c.send(fmt.Sprintf("(set-option :timeout %d)", ms)); err != nil {
			return ResultUnknown, err
		}
	}

	if err := c.send("(check-sat)"); err != nil {
		return ResultUnknown, err
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		return ResultUnknown, errors.Wrap(err, "smtlib: read check-sat answer")
	}

	switch strings.TrimSpace(line) {
	case "sat":
		return ResultSat, nil
	case "unsat":
		return ResultUnsat, nil
	case "unknown", "timeout":
		return ResultUnknown, nil
	default:
		return ResultUnknown, errors.Errorf("smtlib: unexpected answer %q", strings.TrimSpace(line))
	}
}

var defineFunRe = regexp.MustCompile(`\(define-fun\s+(\S+)\s+\(\)\s+\S+\s+(.+?)\s*\)\s*$`)

func (c *smtContext) Model() ([]Assignment, error) {
	if err := c.send("(get-model)"); err != nil {
		return nil, err
	}

	// Read until the model s-expression balances.
	depth := 0
	started := false

	var body strings.Builder

	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(err, "smtlib: read model")
		}

		body.WriteString(line)

		for _, r := range line {
			switch r {
			case '(':
				depth++
				started = true
			case ')':
				depth--
			}
		}

		if started && depth <= 0 {
			break
		}
	}

	var model []Assignment
	for _, line := range strings.Split(body.String(), "\n") {
		m := defineFunRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		model = append(model, Assignment{Name: m[1], Value: normalizeValue(m[2])})
	}

	return model, nil
}

// normalizeValue rewrites SMT-LIB negative literals like (- 5) to -5.
func normalizeValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "(-") && strings.HasSuffix(v, ")") {
		inner := strings.TrimSpace(v[2 : len(v)-1])

		return "-" + inner
	}

	return v
}

func (c *smtContext) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true
	_ = c.send("(exit)")
	_ = c.stdin.Close()

	// Reap the process; it exits on (exit) or is killed by the
	// command context.
	err := c.cmd.Wait()
	if err != nil && c.cmd.ProcessState != nil && c.cmd.ProcessState.Exited() {
		err = nil
	}

	return err
}

// format renders a term as an SMT-LIB s-expression.
func (c *smtContext) format(t Term) (string, error) {
	switch n := t.(type) {
	case *IntConst:
		if n.Value < 0 {
			return fmt.Sprintf("(- %d)", -n.Value), nil
		}

		return fmt.Sprintf("%d", n.Value), nil

	case *RealConst:
		if n.Value < 0 {
			return fmt.Sprintf("(- %g)", -n.Value), nil
		}

		return fmt.Sprintf("%g", n.Value), nil

	case *BoolConst:
		return fmt.Sprintf("%t", n.Value), nil

	case *Var:
		return n.Name, nil

	case *Not:
		inner, err := c.format(n.Operand)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("(not %s)", inner), nil

	case *Neg:
		inner, err := c.format(n.Operand)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("(- %s)", inner), nil

	case *Binary:
		left, err := c.format(n.Left)
		if err != nil {
			return "", err
		}

		right, err := c.format(n.Right)
		if err != nil {
			return "", err
		}

		op, err := c.opName(n)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("(%s %s %s)", op, left, right), nil

	default:
		return "", errors.Errorf("smtlib: unsupported term %T", t)
	}
}

func (c *smtContext) opName(n *Binary) (string, error) {
	switch n.Op {
	case ast.OpAdd:
		return "+", nil
	case ast.OpSub:
		return "-", nil
	case ast.OpMul:
		return "*", nil
	case ast.OpDiv:
		if c.termSort(n.Left) == SortInt && c.termSort(n.Right) == SortInt {
			return "div", nil
		}

		return "/", nil
	case ast.OpMod:
		return "mod", nil
	case ast.OpEq:
		return "=", nil
	case ast.OpNe:
		return "distinct", nil
	case ast.OpLt:
		return "<", nil
	case ast.OpLe:
		return "<=", nil
	case ast.OpGt:
		return ">", nil
	case ast.OpGe:
		return ">=", nil
	case ast.OpAnd:
		return "and", nil
	case ast.OpOr:
		return "or", nil
	default:
		return "", errors.Errorf("smtlib: unsupported operator %s", n.Op)
	}
}

func (c *smtContext) termSort(t Term) Sort {
	switch n := t.(type) {
	case *IntConst:
		return SortInt
	case *RealConst:
		return SortReal
	case *BoolConst:
		return SortBool
	case *Var:
		return n.Sort
	case *Neg:
		return c.termSort(n.Operand)
	case *Not:
		return SortBool
	case *Binary:
		if n.Op.IsComparison() || n.Op.IsLogical() {
			return SortBool
		}

		if c.termSort(n.Left) == SortReal || c.termSort(n.Right) == SortReal {
			return SortReal
		}

		return SortInt
	default:
		return SortInt
	}
}
