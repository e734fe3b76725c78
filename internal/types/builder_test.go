package types

import (
	"testing"

	"github.com/vela-lang/vela/internal/ast"
	"github.com/vela-lang/vela/internal/diagnostics"
)

func newBuilder() (*Builder, *diagnostics.ErrorSet) {
	errs := diagnostics.NewErrorSet(0)

	return NewBuilder(NewRegistry(), NewEnvironment(), errs), errs
}

func named(name string, args ...ast.TypeExpr) *ast.NamedType {
	return &ast.NamedType{Name: name, Args: args}
}

func TestBuildNamedBuiltin(t *testing.T) {
	b, errs := newBuilder()

	id := b.BuildTypeExpr(named("int"))
	if id != b.Registry.Primitive(PrimInt) {
		t.Errorf("built %s, want the shared int node", b.Registry.String(id))
	}

	if errs.Len() != 0 {
		t.Errorf("unexpected diagnostics: %v", errs)
	}
}

func TestBuildNamedUndefined(t *testing.T) {
	b, errs := newBuilder()

	id := b.BuildTypeExpr(named("Mystery"))
	if id != b.Registry.Unknown() {
		t.Error("undefined type should yield the Unknown placeholder")
	}

	if errs.CountKind(diagnostics.UndefinedType) != 1 {
		t.Errorf("diagnostics = %v, want one undefined-type", errs)
	}
}

func TestAliasForwardReference(t *testing.T) {
	b, errs := newBuilder()

	// Alias recorded before its target struct is built, as the collect
	// pass does for declarations later in the unit.
	b.DeferAlias(&ast.TypeAliasDecl{Name: "Temp", Aliased: named("Celsius")})

	celsius := b.BuildStruct(&ast.StructDecl{
		Name:   "Celsius",
		Fields: []*ast.Field{{Name: "degrees", Type: named("int")}},
	})
	if err := b.Env.RegisterType("Celsius", celsius); err != nil {
		t.Fatalf("register Celsius: %v", err)
	}

	id := b.BuildTypeExpr(named("Temp"))
	if id != celsius {
		t.Errorf("alias expanded to %s, want Celsius", b.Registry.String(id))
	}

	if errs.Len() != 0 {
		t.Errorf("unexpected diagnostics: %v", errs)
	}

	// Later references resolve through the registry, not a re-expansion.
	if again := b.BuildTypeExpr(named("Temp")); again != celsius {
		t.Error("second reference should hit the bound name")
	}
}

func TestAliasCycle(t *testing.T) {
	b, errs := newBuilder()

	b.DeferAlias(&ast.TypeAliasDecl{Name: "A", Aliased: named("B")})
	b.DeferAlias(&ast.TypeAliasDecl{Name: "B", Aliased: named("A")})

	id := b.BuildTypeExpr(named("A"))
	if id != b.Registry.Unknown() {
		t.Error("cyclic alias should yield Unknown")
	}

	if errs.CountKind(diagnostics.RecursiveType) == 0 {
		t.Errorf("diagnostics = %v, want recursive-type", errs)
	}
}

func TestGenericStruct(t *testing.T) {
	b, errs := newBuilder()

	b.BuildStruct(&ast.StructDecl{
		Name:       "Box",
		TypeParams: []*ast.TypeParam{{Name: "T"}},
		Fields:     []*ast.Field{{Name: "value", Type: named("T")}},
	})

	t.Run("Instantiation", func(t *testing.T) {
		id := b.BuildTypeExpr(named("Box", named("int")))

		n, ok := b.Registry.Lookup(id).Data.(*Named)
		if !ok {
			t.Fatalf("instantiation built %s, want a named reference", b.Registry.String(id))
		}

		body := b.Registry.Lookup(n.Target).Data.(*Composite)
		if body.Fields[0].Type != b.Registry.Primitive(PrimInt) {
			t.Errorf("field type = %s, want int", b.Registry.String(body.Fields[0].Type))
		}

		if errs.Len() != 0 {
			t.Errorf("unexpected diagnostics: %v", errs)
		}
	})

	t.Run("WrongArity", func(t *testing.T) {
		before := errs.CountKind(diagnostics.WrongNumberOfTypeArguments)
		id := b.BuildTypeExpr(named("Box", named("int"), named("bool")))

		if id != b.Registry.Unknown() {
			t.Error("wrong arity should yield Unknown")
		}

		if errs.CountKind(diagnostics.WrongNumberOfTypeArguments) != before+1 {
			t.Errorf("diagnostics = %v, want wrong-number-of-type-arguments", errs)
		}
	})

	t.Run("NonGenericWithArgs", func(t *testing.T) {
		before := errs.CountKind(diagnostics.WrongNumberOfTypeArguments)
		b.BuildTypeExpr(named("int", named("bool")))

		if errs.CountKind(diagnostics.WrongNumberOfTypeArguments) != before+1 {
			t.Errorf("diagnostics = %v, want wrong-number-of-type-arguments", errs)
		}
	})
}

func TestGenericBound(t *testing.T) {
	b, errs := newBuilder()

	b.BuildStruct(&ast.StructDecl{
		Name:       "Meter",
		TypeParams: []*ast.TypeParam{{Name: "T", Bound: named("int")}},
		Fields:     []*ast.Field{{Name: "reading", Type: named("T")}},
	})

	b.BuildTypeExpr(named("Meter", named("int")))
	if errs.Len() != 0 {
		t.Fatalf("satisfying argument rejected: %v", errs)
	}

	b.BuildTypeExpr(named("Meter", named("string")))
	if errs.CountKind(diagnostics.TypeMismatch) != 1 {
		t.Errorf("diagnostics = %v, want one type-mismatch for the bound", errs)
	}
}

func TestBuildFunctionSignature(t *testing.T) {
	b, _ := newBuilder()

	id := b.BuildFunctionSignature(&ast.FunctionDecl{
		Name:       "map",
		TypeParams: []*ast.TypeParam{{Name: "T"}},
		Params:     []*ast.Param{{Name: "x", Type: named("T")}},
		ReturnType: named("T"),
		Effects:    []string{"IO"},
	})

	fn := b.Registry.Lookup(id).Data.(*Function)
	if len(fn.Params) != 1 || fn.Effects[0] != "IO" {
		t.Fatalf("signature = %s", b.Registry.String(id))
	}

	// The type parameter binds identically in parameter and return
	// positions.
	if fn.Params[0] != fn.Return {
		t.Error("T should resolve to one type variable across the signature")
	}

	if b.Env.ScopeLevel() != 1 {
		t.Error("signature build must leave the scope stack balanced")
	}
}

func TestBuildRefinementDefaultsVar(t *testing.T) {
	b, _ := newBuilder()

	id := b.BuildTypeExpr(&ast.RefinementType{
		Base: named("int"),
		Predicate: &ast.Binary{
			Op:    ast.OpGe,
			Left:  &ast.Ident{Name: "self"},
			Right: &ast.IntLit{Value: 0},
		},
	})

	ref := b.Registry.Lookup(id).Data.(*Refinement)
	if ref.Var != "self" {
		t.Errorf("Var = %q, want elided variable to default to self", ref.Var)
	}
}
