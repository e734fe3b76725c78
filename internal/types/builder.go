package types

import (
	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/diagnostics"
)

// Builder turns declaration nodes into canonical arena types. Failures
// are recorded as diagnostics and yield the registry's Unknown
// placeholder, so building always produces a usable ID and checking
// can continue past any fault.
type Builder struct {
	Registry *Registry
	Env      *Environment
	Errs     *diagnostics.ErrorSet

	aliases   map[string]*ast.TypeAliasDecl
	expanding map[string]bool
}

// NewBuilder creates a builder over the given registry and environment.
func NewBuilder(reg *Registry, env *Environment, errs *diagnostics.ErrorSet) *Builder {
	return &Builder{
		Registry:  reg,
		Env:       env,
		Errs:      errs,
		aliases:   make(map[string]*ast.TypeAliasDecl),
		expanding: make(map[string]bool),
	}
}

// BuildTypeExpr builds a canonical type from a type expression.
func (b *Builder) BuildTypeExpr(te ast.TypeExpr) ID {
	switch t := te.(type) {
	case *ast.NamedType:
		return b.buildNamed(t)

	case *ast.FunctionType:
		params := make([]ID, len(t.Params))
		for i, p := range t.Params {
			params[i] = b.BuildTypeExpr(p)
		}

		ret := NoType
		if t.Return != nil {
			ret = b.BuildTypeExpr(t.Return)
		}

		return b.Registry.NewFunction(params, ret, t.Effects)

	case *ast.RefinementType:
		base := b.BuildTypeExpr(t.Base)
		v := t.Var
		if v == "" {
			v = "self"
		}

		// The predicate is stored unevaluated; only the solver bridge
		// interprets it.
		return b.Registry.NewRefinement(v, base, t.Predicate)

	case *ast.DependentType:
		params := make([]DependentParam, len(t.Params))
		for i, p := range t.Params {
			params[i] = DependentParam{Name: p.Name, Sort: b.BuildTypeExpr(p.Type)}
		}

		return b.Registry.NewDependent(params, t.Predicate)

	default:
		diagnostics.Internalf("types.Builder", te, "unhandled type expression %T", te)

		return b.Registry.Unknown()
	}
}

func (b *Builder) buildNamed(t *ast.NamedType) ID {
	// Generic instantiation: arity first, then each argument against
	// its declared bound.
	if g, ok := b.Registry.ResolveGeneric(t.Name); ok {
		if len(t.Args) != len(g.Params) {
			b.Errs.Add(diagnostics.NewError(diagnostics.WrongNumberOfTypeArguments, t.Span,
				"%s expects %d type argument(s), got %d", t.Name, len(g.Params), len(t.Args)))

			return b.Registry.Unknown()
		}

		args := make([]ID, len(t.Args))
		for i, a := range t.Args {
			args[i] = b.BuildTypeExpr(a)
		}

		for i, p := range g.Params {
			if p.Bound != NoType && !b.Registry.IsSubtype(args[i], p.Bound) {
				b.Errs.Add(diagnostics.NewError(diagnostics.TypeMismatch, t.Args[i].GetSpan(),
					"type argument %s does not satisfy bound %s of %s",
					b.Registry.String(args[i]), b.Registry.String(p.Bound), t.Name))
			}
		}

		return b.Registry.NewNamed(t.Name, args, g.Build(args))
	}

	if len(t.Args) > 0 {
		b.Errs.Add(diagnostics.NewError(diagnostics.WrongNumberOfTypeArguments, t.Span,
			"%s is not generic but was given %d type argument(s)", t.Name, len(t.Args)))

		return b.Registry.Unknown()
	}

	if alias, pending := b.aliases[t.Name]; pending {
		return b.expandAlias(alias, t)
	}

	if id, ok := b.Env.LookupType(t.Name); ok {
		return id
	}

	if id, ok := b.Registry.Resolve(t.Name); ok {
		return id
	}

	b.Errs.Add(diagnostics.NewError(diagnostics.UndefinedType, t.Span, "undefined type: %s", t.Name))

	return b.Registry.Unknown()
}

func (b *Builder) expandAlias(alias *ast.TypeAliasDecl, ref *ast.NamedType) ID {
	if b.expanding[alias.Name] {
		b.Errs.Add(diagnostics.NewError(diagnostics.RecursiveType, ref.Span,
			"type alias %s refers to itself", alias.Name))

		return b.Registry.Unknown()
	}

	b.expanding[alias.Name] = true
	id := b.BuildTypeExpr(alias.Aliased)
	delete(b.expanding, alias.Name)

	// Expanded once; later references resolve through the registry.
	delete(b.aliases, alias.Name)
	b.Registry.Bind(alias.Name, id)

	return id
}

// DeferAlias records an alias for on-demand expansion so aliases may
// reference declarations appearing later in the unit.
func (b *Builder) DeferAlias(decl *ast.TypeAliasDecl) {
	b.aliases[decl.Name] = decl
}

// BuildStruct builds a composite type, or registers a generic
// declaration when the struct has type parameters.
func (b *Builder) BuildStruct(decl *ast.StructDecl) ID {
	if len(decl.TypeParams) > 0 {
		b.registerGenericStruct(decl)

		return NoType
	}

	fields := make([]FieldInfo, len(decl.Fields))
	for i, f := range decl.Fields {
		fields[i] = FieldInfo{Name: f.Name, Type: b.BuildTypeExpr(f.Type)}
	}

	return b.Registry.NewComposite(decl.Name, fields)
}

func (b *Builder) registerGenericStruct(decl *ast.StructDecl) {
	params := make([]GenericParam, len(decl.TypeParams))
	for i, tp := range decl.TypeParams {
		bound := NoType
		if tp.Bound != nil {
			bound = b.BuildTypeExpr(tp.Bound)
		}

		params[i] = GenericParam{Name: tp.Name, Bound: bound}
	}

	b.Registry.BindGeneric(&GenericDecl{
		Name:   decl.Name,
		Params: params,
		Build: func(args []ID) ID {
			b.Env.EnterScope()
			for i, p := range params {
				// Shadowing a param name is a declaration bug already
				// reported when the generic was registered.
				_ = b.Env.RegisterType(p.Name, args[i])
			}

			fields := make([]FieldInfo, len(decl.Fields))
			for i, f := range decl.Fields {
				fields[i] = FieldInfo{Name: f.Name, Type: b.BuildTypeExpr(f.Type)}
			}

			if err := b.Env.ExitScope(); err != nil {
				diagnostics.Internalf("types.Builder", b.Env, "generic instantiation unbalanced scopes: %v", err)
			}

			return b.Registry.NewComposite(decl.Name, fields)
		},
	})
}

// BuildLinear builds a linear type, enforcing the single-destructor
// invariant.
func (b *Builder) BuildLinear(decl *ast.LinearDecl) ID {
	inner := b.BuildTypeExpr(decl.Inner)
	id := b.Registry.NewLinear(decl.Name, inner)

	for _, op := range decl.Operations {
		if err := b.Registry.AddLinearOperation(id, op.Name, op.IsDestructor); err != nil {
			b.Errs.Add(diagnostics.NewError(diagnostics.DuplicateDefinition, op.Span,
				"linear type %s declares multiple destructors", decl.Name))
		}
	}

	return id
}

// BuildFunctionSignature builds the function type of a declaration.
// Type parameters are bound to fresh type variables for the signature's
// extent. The effect row is the union of the declared effect names;
// an empty row marks the function pure.
func (b *Builder) BuildFunctionSignature(decl *ast.FunctionDecl) ID {
	b.Env.EnterScope()

	for _, tp := range decl.TypeParams {
		_ = b.Env.RegisterType(tp.Name, b.Registry.NewTypeVar(tp.Name))
	}

	params := make([]ID, len(decl.Params))
	for i, p := range decl.Params {
		params[i] = b.BuildTypeExpr(p.Type)
	}

	ret := NoType
	if decl.ReturnType != nil {
		ret = b.BuildTypeExpr(decl.ReturnType)
	}

	if err := b.Env.ExitScope(); err != nil {
		diagnostics.Internalf("types.Builder", b.Env, "signature build unbalanced scopes: %v", err)
	}

	return b.Registry.NewFunction(params, ret, decl.Effects)
}

// BuildEffect builds the type-level view of an effect declaration.
func (b *Builder) BuildEffect(decl *ast.EffectDecl) ID {
	ops := make([]string, len(decl.Operations))
	for i, op := range decl.Operations {
		ops[i] = op.Name
	}

	return b.Registry.NewEffectType(decl.Name, ops)
}
