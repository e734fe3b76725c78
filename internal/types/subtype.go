package types

// Subtype engine. IsSubtype is total and side-effect free: unsupported
// kind combinations are simply not subtypes, never errors. The switch
// below covers every Kind so a new variant cannot be ignored silently.

// IsSubtype reports whether a value of type a can be used where b is
// expected.
func (r *Registry) IsSubtype(a, b ID) bool {
	if a == b {
		return true
	}

	if a == NoType || b == NoType {
		return a == b
	}

	ta, tb := r.Lookup(a), r.Lookup(b)

	// A resolved named reference on one side only compares through its
	// target; the named/named rule below keeps generic positions
	// covariant.
	if ta.Kind == KindNamed && tb.Kind != KindNamed {
		if n := ta.Data.(*Named); n.Target != NoType {
			return r.IsSubtype(n.Target, b)
		}
	}

	if tb.Kind == KindNamed && ta.Kind != KindNamed {
		if n := tb.Data.(*Named); n.Target != NoType {
			return r.IsSubtype(a, n.Target)
		}
	}

	if ta.Kind != tb.Kind {
		return false
	}

	switch ta.Kind {
	case KindPrimitive:
		// Identical primitive kinds are compatible; declared bounds are
		// the refinement layer's concern, not the subtype engine's.
		return ta.Data.(*Primitive).Prim == tb.Data.(*Primitive).Prim

	case KindFunction:
		return r.isFunctionSubtype(ta.Data.(*Function), tb.Data.(*Function))

	case KindComposite:
		ca, cb := ta.Data.(*Composite), tb.Data.(*Composite)
		if len(ca.Fields) != len(cb.Fields) {
			return false
		}

		// Structural and order-sensitive: fields compare positionally.
		for i := range ca.Fields {
			if !r.IsSubtype(ca.Fields[i].Type, cb.Fields[i].Type) {
				return false
			}
		}

		return true

	case KindLinear:
		// Nominal: identical inner types under different names stay
		// unrelated, so ownership obligations cannot leak across
		// declarations.
		return ta.Data.(*Linear).Name == tb.Data.(*Linear).Name

	case KindNamed:
		na, nb := ta.Data.(*Named), tb.Data.(*Named)
		if na.Name != nb.Name || len(na.Args) != len(nb.Args) {
			return false
		}

		// Every argument position is treated covariantly regardless of
		// how the constructor uses it. Unsound for mutable generic
		// containers; the surface syntax has no variance annotation to
		// drive anything better.
		for i := range na.Args {
			if !r.IsSubtype(na.Args[i], nb.Args[i]) {
				return false
			}
		}

		return true

	case KindEffect:
		return ta.Data.(*EffectType).Name == tb.Data.(*EffectType).Name

	case KindTypeVar:
		return a == b

	case KindRefinement, KindDependent:
		// Refinement and dependent compatibility is a solver question;
		// the structural engine only accepts identity, handled above.
		return false

	default:
		return false
	}
}

func (r *Registry) isFunctionSubtype(fa, fb *Function) bool {
	if len(fa.Params) != len(fb.Params) {
		return false
	}

	// Contravariant parameters: the candidate must accept at least what
	// the context will pass.
	for i := range fa.Params {
		if !r.IsSubtype(fb.Params[i], fa.Params[i]) {
			return false
		}
	}

	// Covariant return.
	if !r.IsSubtype(fa.Return, fb.Return) {
		return false
	}

	// A function promising fewer effects satisfies a context tolerating
	// more: fa.Effects must be a subset of fb.Effects.
	return effectsSubset(fa.Effects, fb.Effects)
}

// effectsSubset reports a ⊆ b over sorted effect rows.
func effectsSubset(a, b []string) bool {
	i := 0
	for _, eff := range a {
		for i < len(b) && b[i] < eff {
			i++
		}

		if i >= len(b) || b[i] != eff {
			return false
		}
	}

	return true
}

// CanCast reports whether an explicit cast from one type to another is
// permitted. Casting is deliberately wider than subtyping: numeric
// kinds interconvert, and refinements erase to their base. Casting
// *into* a refinement is allowed here; the checker emits the predicate
// obligation separately.
func (r *Registry) CanCast(from, to ID) bool {
	if r.IsSubtype(from, to) {
		return true
	}

	tf, tt := r.Lookup(from), r.Lookup(to)

	if tf.Kind == KindPrimitive && tt.Kind == KindPrimitive {
		pf, pt := tf.Data.(*Primitive), tt.Data.(*Primitive)
		if isNumeric(pf.Prim) && isNumeric(pt.Prim) {
			return true
		}

		return pf.Prim == pt.Prim
	}

	if tf.Kind == KindRefinement {
		return r.CanCast(tf.Data.(*Refinement).Base, to)
	}

	if tt.Kind == KindRefinement {
		return r.CanCast(from, tt.Data.(*Refinement).Base)
	}

	return false
}

func isNumeric(pk PrimKind) bool {
	return pk == PrimInt || pk == PrimFloat
}
