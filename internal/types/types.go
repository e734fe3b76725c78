// Package types implements the canonical type representation for the
// Vela checker: a closed type algebra stored in an arena of nodes
// addressed by stable integer IDs. Named and generic references are
// stored as IDs rather than embedded copies, so recursive type graphs
// stay finite. One Registry exists per compilation unit.
package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/diagnostics"
)

// ID is a stable arena index identifying one type node.
type ID int

// NoType marks the absence of a type (e.g. unit-returning functions
// before normalization).
const NoType ID = -1

// Kind is the closed tag over the type algebra. Every consumer switches
// exhaustively over it; adding a variant must be reflected in the
// subtype engine, the builder, and the printer.
type Kind int

const (
	KindPrimitive Kind = iota
	KindComposite
	KindFunction
	KindLinear
	KindDependent
	KindRefinement
	KindEffect
	KindNamed
	KindTypeVar
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindComposite:
		return "composite"
	case KindFunction:
		return "function"
	case KindLinear:
		return "linear"
	case KindDependent:
		return "dependent"
	case KindRefinement:
		return "refinement"
	case KindEffect:
		return "effect"
	case KindNamed:
		return "named"
	case KindTypeVar:
		return "typevar"
	default:
		return "invalid"
	}
}

// PrimKind identifies a primitive type.
type PrimKind int

const (
	PrimUnit PrimKind = iota
	PrimBool
	PrimInt
	PrimFloat
	PrimString
)

// String returns the surface name of the primitive.
func (pk PrimKind) String() string {
	switch pk {
	case PrimUnit:
		return "unit"
	case PrimBool:
		return "bool"
	case PrimInt:
		return "int"
	case PrimFloat:
		return "float"
	case PrimString:
		return "string"
	default:
		return "invalid"
	}
}

// Type is one node in the arena. Data holds the kind-specific payload.
type Type struct {
	ID   ID
	Kind Kind
	Data interface{}
}

// ===== Kind payloads =====

// Primitive is the payload of a KindPrimitive node. Min/Max carry
// declared numeric bounds; they feed the solver bridge as base
// constraints and are nil when unbounded.
type Primitive struct {
	Prim PrimKind
	Min  *int64
	Max  *int64
}

// FieldInfo is one ordered field of a composite type.
type FieldInfo struct {
	Name string
	Type ID
}

// Composite is the payload of a KindComposite node. Fields are ordered;
// structural subtyping is positional over them.
type Composite struct {
	Name    string
	Fields  []FieldInfo
	Methods map[string]ID
}

// Function is the payload of a KindFunction node. Effects holds the
// declared effect names sorted ascending; an empty slice marks the
// function pure.
type Function struct {
	Params  []ID
	Return  ID
	Effects []string
}

// IsPure reports whether the function declares no effects.
func (f *Function) IsPure() bool {
	return len(f.Effects) == 0
}

// Linear is the payload of a KindLinear node. Linear compatibility is
// nominal: two linear types with identical inner types but different
// names are unrelated. Destructor is empty when none is declared; at
// most one may ever be registered.
type Linear struct {
	Name       string
	Inner      ID
	Operations []string
	Destructor string
}

// DependentParam is one term-level parameter of a dependent type.
type DependentParam struct {
	Name string
	Sort ID
}

// Dependent is the payload of a KindDependent node. The predicate is
// stored unevaluated; only the solver bridge interprets it.
type Dependent struct {
	Params    []DependentParam
	Predicate ast.Expression
}

// Refinement is the payload of a KindRefinement node. The predicate is
// stored unevaluated; only the solver bridge interprets it.
type Refinement struct {
	Var       string
	Base      ID
	Predicate ast.Expression
}

// EffectType is the payload of a KindEffect node: an effect viewed as a
// type, carrying its operation names and the handlers attached so far.
type EffectType struct {
	Name       string
	Operations []string
	Handlers   []string
}

// Named is the payload of a KindNamed node: a reference to a registered
// declaration, possibly instantiating a generic one. Target is the
// resolved node, NoType while unresolved.
type Named struct {
	Name   string
	Args   []ID
	Target ID
}

// TypeVar is the payload of a KindTypeVar node.
type TypeVar struct {
	Name string
}

// ===== Registry =====

// GenericDecl records a generic declaration awaiting instantiation.
type GenericDecl struct {
	Name   string
	Params []GenericParam
	Build  func(args []ID) ID // Instantiates the body with the given arguments
}

// GenericParam is one declared type parameter with an optional bound.
type GenericParam struct {
	Name  string
	Bound ID // NoType when unbounded
}

// Registry is the per-unit arena of type nodes plus the module-wide
// name table. The ID counter is owned by the instance; nothing in this
// package touches process-global state.
type Registry struct {
	arena    []*Type
	names    map[string]ID
	generics map[string]*GenericDecl
	prims    map[PrimKind]ID
	unknown  ID
	nextVar  int
}

// NewRegistry creates a registry pre-populated with the built-in types.
func NewRegistry() *Registry {
	r := &Registry{
		names:    make(map[string]ID),
		generics: make(map[string]*GenericDecl),
		prims:    make(map[PrimKind]ID),
	}

	for _, pk := range []PrimKind{PrimUnit, PrimBool, PrimInt, PrimFloat, PrimString} {
		id := r.alloc(KindPrimitive, &Primitive{Prim: pk})
		r.prims[pk] = id
		r.names[pk.String()] = id
	}

	r.unknown = r.alloc(KindTypeVar, &TypeVar{Name: "?"})

	return r
}

func (r *Registry) alloc(kind Kind, data interface{}) ID {
	id := ID(len(r.arena))
	r.arena = append(r.arena, &Type{ID: id, Kind: kind, Data: data})

	return id
}

// Lookup returns the arena node for id. An out-of-range id is a defect
// in the checker, not a user error.
func (r *Registry) Lookup(id ID) *Type {
	if id < 0 || int(id) >= len(r.arena) {
		diagnostics.Internalf("types.Registry", id, "type id %d outside arena of %d nodes", id, len(r.arena))
	}

	return r.arena[int(id)]
}

// Unknown returns the placeholder node used where building a type failed;
// a diagnostic has always been recorded alongside.
func (r *Registry) Unknown() ID {
	return r.unknown
}

// Primitive returns the shared node for an unbounded primitive kind.
func (r *Registry) Primitive(pk PrimKind) ID {
	return r.prims[pk]
}

// BoundedInt allocates an int type carrying declared bounds.
func (r *Registry) BoundedInt(min, max *int64) ID {
	if min == nil && max == nil {
		return r.prims[PrimInt]
	}

	return r.alloc(KindPrimitive, &Primitive{Prim: PrimInt, Min: min, Max: max})
}

// NewFunction allocates a function type. Effects are copied and sorted
// so effect rows compare deterministically.
func (r *Registry) NewFunction(params []ID, ret ID, effects []string) ID {
	row := make([]string, len(effects))
	copy(row, effects)
	sort.Strings(row)

	if ret == NoType {
		ret = r.prims[PrimUnit]
	}

	return r.alloc(KindFunction, &Function{Params: params, Return: ret, Effects: row})
}

// NewComposite allocates a composite type with ordered fields.
func (r *Registry) NewComposite(name string, fields []FieldInfo) ID {
	return r.alloc(KindComposite, &Composite{
		Name:    name,
		Fields:  fields,
		Methods: make(map[string]ID),
	})
}

// NewLinear allocates a linear wrapper around inner with no operations.
func (r *Registry) NewLinear(name string, inner ID) ID {
	return r.alloc(KindLinear, &Linear{Name: name, Inner: inner})
}

// NewRefinement allocates a refinement of base by predicate.
func (r *Registry) NewRefinement(v string, base ID, predicate ast.Expression) ID {
	return r.alloc(KindRefinement, &Refinement{Var: v, Base: base, Predicate: predicate})
}

// NewDependent allocates a dependent type over params.
func (r *Registry) NewDependent(params []DependentParam, predicate ast.Expression) ID {
	return r.alloc(KindDependent, &Dependent{Params: params, Predicate: predicate})
}

// NewEffectType allocates an effect type node.
func (r *Registry) NewEffectType(name string, operations []string) ID {
	ops := make([]string, len(operations))
	copy(ops, operations)
	sort.Strings(ops)

	return r.alloc(KindEffect, &EffectType{Name: name, Operations: ops})
}

// NewNamed allocates a named reference resolved to target.
func (r *Registry) NewNamed(name string, args []ID, target ID) ID {
	return r.alloc(KindNamed, &Named{Name: name, Args: args, Target: target})
}

// NewTypeVar allocates a fresh type variable. The counter is owned by
// the registry, so IDs never collide within a unit.
func (r *Registry) NewTypeVar(name string) ID {
	r.nextVar++
	if name == "" {
		name = fmt.Sprintf("t%d", r.nextVar)
	}

	return r.alloc(KindTypeVar, &TypeVar{Name: name})
}

// Bind records a module-wide name binding. The environment layer is
// responsible for duplicate detection; Bind itself last-writer-wins.
func (r *Registry) Bind(name string, id ID) {
	r.names[name] = id
}

// Resolve looks up a module-wide name.
func (r *Registry) Resolve(name string) (ID, bool) {
	id, ok := r.names[name]

	return id, ok
}

// BindGeneric records a generic declaration for later instantiation.
func (r *Registry) BindGeneric(decl *GenericDecl) {
	r.generics[decl.Name] = decl
}

// ResolveGeneric looks up a generic declaration by name.
func (r *Registry) ResolveGeneric(name string) (*GenericDecl, bool) {
	g, ok := r.generics[name]

	return g, ok
}

// AddLinearOperation registers a named operation on a linear type.
// Registering a second destructor fails and leaves the type unchanged.
func (r *Registry) AddLinearOperation(id ID, op string, destructor bool) error {
	t := r.Lookup(id)
	if t.Kind != KindLinear {
		diagnostics.Internalf("types.Registry", t, "AddLinearOperation on %s node", t.Kind)
	}

	lin := t.Data.(*Linear)
	if destructor {
		if lin.Destructor != "" {
			return fmt.Errorf("linear type %s already has destructor %s", lin.Name, lin.Destructor)
		}

		lin.Destructor = op
	}

	lin.Operations = append(lin.Operations, op)

	return nil
}

// ===== Printing =====

// String renders the type identified by id for diagnostics.
func (r *Registry) String(id ID) string {
	if id == NoType {
		return "unit"
	}

	t := r.Lookup(id)

	switch t.Kind {
	case KindPrimitive:
		p := t.Data.(*Primitive)
		if p.Min == nil && p.Max == nil {
			return p.Prim.String()
		}

		lo, hi := "..", ".."
		if p.Min != nil {
			lo = fmt.Sprintf("%d", *p.Min)
		}

		if p.Max != nil {
			hi = fmt.Sprintf("%d", *p.Max)
		}

		return fmt.Sprintf("%s[%s..%s]", p.Prim.String(), lo, hi)

	case KindComposite:
		c := t.Data.(*Composite)
		if c.Name != "" {
			return c.Name
		}

		var fields []string
		for _, f := range c.Fields {
			fields = append(fields, fmt.Sprintf("%s: %s", f.Name, r.String(f.Type)))
		}

		return fmt.Sprintf("struct { %s }", strings.Join(fields, ", "))

	case KindFunction:
		f := t.Data.(*Function)

		var params []string
		for _, p := range f.Params {
			params = append(params, r.String(p))
		}

		sig := fmt.Sprintf("fn(%s) -> %s", strings.Join(params, ", "), r.String(f.Return))
		if len(f.Effects) > 0 {
			sig += " with " + strings.Join(f.Effects, ", ")
		}

		return sig

	case KindLinear:
		l := t.Data.(*Linear)

		return fmt.Sprintf("linear %s(%s)", l.Name, r.String(l.Inner))

	case KindDependent:
		d := t.Data.(*Dependent)

		var params []string
		for _, p := range d.Params {
			params = append(params, fmt.Sprintf("%s: %s", p.Name, r.String(p.Sort)))
		}

		return fmt.Sprintf("dep(%s) where %s", strings.Join(params, ", "), d.Predicate.String())

	case KindRefinement:
		ref := t.Data.(*Refinement)

		return fmt.Sprintf("{%s: %s | %s}", ref.Var, r.String(ref.Base), ref.Predicate.String())

	case KindEffect:
		e := t.Data.(*EffectType)

		return fmt.Sprintf("effect %s", e.Name)

	case KindNamed:
		n := t.Data.(*Named)
		if len(n.Args) == 0 {
			return n.Name
		}

		var args []string
		for _, a := range n.Args {
			args = append(args, r.String(a))
		}

		return fmt.Sprintf("%s<%s>", n.Name, strings.Join(args, ", "))

	case KindTypeVar:
		v := t.Data.(*TypeVar)

		return "'" + v.Name

	default:
		return fmt.Sprintf("<%s>", t.Kind.String())
	}
}

// ===== Equality =====

// Equal reports structural equality of two types, resolving named
// references through the arena. Nominal variants (linear, effect)
// compare by name.
func (r *Registry) Equal(a, b ID) bool {
	if a == b {
		return true
	}

	if a == NoType || b == NoType {
		return false
	}

	ta, tb := r.Lookup(a), r.Lookup(b)
	if ta.Kind != tb.Kind {
		return false
	}

	switch ta.Kind {
	case KindPrimitive:
		pa, pb := ta.Data.(*Primitive), tb.Data.(*Primitive)

		return pa.Prim == pb.Prim && int64PtrEq(pa.Min, pb.Min) && int64PtrEq(pa.Max, pb.Max)

	case KindComposite:
		ca, cb := ta.Data.(*Composite), tb.Data.(*Composite)
		if ca.Name != cb.Name || len(ca.Fields) != len(cb.Fields) {
			return false
		}

		for i := range ca.Fields {
			if ca.Fields[i].Name != cb.Fields[i].Name || !r.Equal(ca.Fields[i].Type, cb.Fields[i].Type) {
				return false
			}
		}

		return true

	case KindFunction:
		fa, fb := ta.Data.(*Function), tb.Data.(*Function)
		if len(fa.Params) != len(fb.Params) || !r.Equal(fa.Return, fb.Return) {
			return false
		}

		if !stringSliceEq(fa.Effects, fb.Effects) {
			return false
		}

		for i := range fa.Params {
			if !r.Equal(fa.Params[i], fb.Params[i]) {
				return false
			}
		}

		return true

	case KindLinear:
		la, lb := ta.Data.(*Linear), tb.Data.(*Linear)

		return la.Name == lb.Name

	case KindEffect:
		ea, eb := ta.Data.(*EffectType), tb.Data.(*EffectType)

		return ea.Name == eb.Name

	case KindNamed:
		na, nb := ta.Data.(*Named), tb.Data.(*Named)
		if na.Name != nb.Name || len(na.Args) != len(nb.Args) {
			return false
		}

		for i := range na.Args {
			if !r.Equal(na.Args[i], nb.Args[i]) {
				return false
			}
		}

		return true

	case KindTypeVar:
		va, vb := ta.Data.(*TypeVar), tb.Data.(*TypeVar)

		return va.Name == vb.Name && a == b

	case KindRefinement, KindDependent:
		// Predicates are opaque to equality; distinct nodes stay distinct.
		return false

	default:
		return false
	}
}

func int64PtrEq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func stringSliceEq(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
