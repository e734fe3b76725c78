// Package modules tracks compilation units and drives checking across
// them: all units' export surfaces are collected before any unit's
// check pass performs cross-module resolution, and the two phases are
// parallel per unit with a barrier between them.
package modules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/checker"
	"github.com/vela-lang/vela/internal/diagnostics"
	"github.com/vela-lang/vela/internal/solver"
)

// Unit is one compilation unit: a parsed program plus its declared
// name and version.
type Unit struct {
	Name    string
	Version *semver.Version // nil when the unit declares none
	Program *ast.Program
}

// Graph holds the units of one build and their use edges.
type Graph struct {
	units map[string]*Unit
	order []string
}

// NewGraph creates an empty unit graph.
func NewGraph() *Graph {
	return &Graph{units: make(map[string]*Unit)}
}

// Add registers a parsed program as a unit. A second unit with the
// same name fails; an unparsable declared version fails.
func (g *Graph) Add(prog *ast.Program) error {
	name := prog.Unit
	if name == "" {
		name = "main"
	}

	if _, exists := g.units[name]; exists {
		return fmt.Errorf("unit %s is already registered", name)
	}

	unit := &Unit{Name: name, Program: prog}

	if prog.Version != "" {
		v, err := semver.NewVersion(prog.Version)
		if err != nil {
			return fmt.Errorf("unit %s declares invalid version %q: %w", name, prog.Version, err)
		}

		unit.Version = v
	}

	g.units[name] = unit
	g.order = append(g.order, name)

	return nil
}

// Unit returns a registered unit by name.
func (g *Graph) Unit(name string) (*Unit, bool) {
	u, ok := g.units[name]

	return u, ok
}

// Names returns the unit names in registration order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)

	return out
}

// uses returns the use declarations of a unit.
func (u *Unit) uses() []*ast.UseDecl {
	var out []*ast.UseDecl

	for _, decl := range u.Program.Declarations {
		if use, ok := decl.(*ast.UseDecl); ok {
			out = append(out, use)
		}
	}

	return out
}

// detectCycles reports each unit participating in a use cycle.
func (g *Graph) detectCycles(errs *diagnostics.ErrorSet) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	state := make(map[string]int, len(g.units))

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return true
		case done:
			return false
		}

		state[name] = visiting

		u := g.units[name]
		for _, use := range u.uses() {
			if _, ok := g.units[use.Unit]; !ok {
				continue
			}

			if visit(use.Unit) {
				errs.Add(diagnostics.NewError(diagnostics.RecursiveType, use.GetSpan(),
					"unit dependency cycle through %s", use.Unit))

				break
			}
		}

		state[name] = done

		return false
	}

	names := make([]string, 0, len(g.units))
	for name := range g.units {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		visit(name)
	}
}

// checkUses validates one unit's use declarations: the target unit
// must exist and, when a requirement is present, its declared version
// must satisfy it.
func (g *Graph) checkUses(u *Unit, errs *diagnostics.ErrorSet) {
	for _, use := range u.uses() {
		target, ok := g.units[use.Unit]
		if !ok {
			errs.Add(diagnostics.NewError(diagnostics.UndefinedType, use.GetSpan(),
				"unknown unit: %s", use.Unit))

			continue
		}

		if use.Requirement == "" {
			continue
		}

		constraint, err := semver.NewConstraint(use.Requirement)
		if err != nil {
			errs.Add(diagnostics.NewError(diagnostics.ConstraintViolation, use.GetSpan(),
				"invalid version requirement %q on unit %s", use.Requirement, use.Unit))

			continue
		}

		if target.Version == nil {
			errs.Add(diagnostics.NewError(diagnostics.ConstraintViolation, use.GetSpan(),
				"unit %s declares no version but %s requires %s", use.Unit, u.Name, use.Requirement))

			continue
		}

		if !constraint.Check(target.Version) {
			errs.Add(diagnostics.NewError(diagnostics.ConstraintViolation, use.GetSpan(),
				"unit %s version %s does not satisfy requirement %s",
				use.Unit, target.Version, use.Requirement))
		}
	}
}

// Result is the outcome of checking one unit.
type Result struct {
	Unit    string
	Checker *checker.Checker
	Errs    *diagnostics.ErrorSet
}

// CheckAll verifies every unit. Phase one resolves the unit graph
// (cycles, use targets, version requirements); phase two checks each
// unit's declarations, importing the export surfaces of used units.
// Units are checked in parallel; the shared solver pool bounds
// concurrent solver contexts. Results come back in registration order.
func (g *Graph) CheckAll(ctx context.Context, pool *solver.Pool, opts checker.Options) ([]Result, error) {
	graphErrs := diagnostics.NewErrorSet(opts.MaxErrors)
	g.detectCycles(graphErrs)

	for _, name := range g.order {
		g.checkUses(g.units[name], graphErrs)
	}

	results := make([]Result, len(g.order))

	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	for i, name := range g.order {
		i, unit := i, g.units[name]

		eg.Go(func() error {
			ck := checker.New(egCtx, pool, opts)

			for _, use := range unit.uses() {
				if target, ok := g.units[use.Unit]; ok {
					ck.ImportUnit(target.Program)
				}
			}

			_ = ck.Check(unit.Program)

			mu.Lock()
			results[i] = Result{Unit: unit.Name, Checker: ck, Errs: ck.Errs}
			mu.Unlock()

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Graph-level faults attach to the first unit's result set, or
	// surface on their own when the graph is empty.
	if graphErrs.Len() > 0 {
		if len(results) > 0 {
			merged := diagnostics.NewErrorSet(opts.MaxErrors)
			merged.Merge(graphErrs)
			merged.Merge(results[0].Errs)
			results[0].Errs = merged
		} else if graphErrs.HasErrors() {
			return nil, graphErrs
		}
	}

	return results, nil
}
