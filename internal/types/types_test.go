package types

import (
	"testing"
)

func TestRegistryBuiltins(t *testing.T) {
	reg := NewRegistry()

	for _, name := range []string{"unit", "bool", "int", "float", "string"} {
		id, ok := reg.Resolve(name)
		if !ok {
			t.Errorf("builtin %s not registered", name)
			continue
		}

		if reg.Lookup(id).Kind != KindPrimitive {
			t.Errorf("builtin %s has kind %s", name, reg.Lookup(id).Kind)
		}
	}
}

func TestFunctionEffectRowSorted(t *testing.T) {
	reg := NewRegistry()
	intT := reg.Primitive(PrimInt)

	id := reg.NewFunction([]ID{intT}, intT, []string{"State", "IO", "Log"})
	fn := reg.Lookup(id).Data.(*Function)

	want := []string{"IO", "Log", "State"}
	for i, eff := range want {
		if fn.Effects[i] != eff {
			t.Fatalf("Effects = %v, want %v", fn.Effects, want)
		}
	}

	if fn.IsPure() {
		t.Error("effectful function reported pure")
	}

	pure := reg.Lookup(reg.NewFunction(nil, intT, nil)).Data.(*Function)
	if !pure.IsPure() {
		t.Error("effect-free function should be pure")
	}
}

func TestNoTypeReturnNormalizesToUnit(t *testing.T) {
	reg := NewRegistry()

	id := reg.NewFunction(nil, NoType, nil)
	fn := reg.Lookup(id).Data.(*Function)

	if fn.Return != reg.Primitive(PrimUnit) {
		t.Errorf("Return = %s, want unit", reg.String(fn.Return))
	}
}

func TestBoundedInt(t *testing.T) {
	reg := NewRegistry()

	if reg.BoundedInt(nil, nil) != reg.Primitive(PrimInt) {
		t.Error("unbounded request should return the shared int node")
	}

	lo, hi := int64(0), int64(255)
	id := reg.BoundedInt(&lo, &hi)
	p := reg.Lookup(id).Data.(*Primitive)

	if p.Min == nil || *p.Min != 0 || p.Max == nil || *p.Max != 255 {
		t.Errorf("bounds = [%v, %v], want [0, 255]", p.Min, p.Max)
	}

	if got := reg.String(id); got != "int[0..255]" {
		t.Errorf("String = %q, want int[0..255]", got)
	}
}

func TestLinearSingleDestructor(t *testing.T) {
	reg := NewRegistry()
	id := reg.NewLinear("FileHandle", reg.Primitive(PrimInt))

	if err := reg.AddLinearOperation(id, "read", false); err != nil {
		t.Fatalf("add operation: %v", err)
	}

	if err := reg.AddLinearOperation(id, "close", true); err != nil {
		t.Fatalf("add destructor: %v", err)
	}

	if err := reg.AddLinearOperation(id, "dispose", true); err == nil {
		t.Fatal("second destructor must be rejected")
	}

	lin := reg.Lookup(id).Data.(*Linear)
	if lin.Destructor != "close" {
		t.Errorf("Destructor = %q, want close (first registration kept)", lin.Destructor)
	}

	if len(lin.Operations) != 2 {
		t.Errorf("Operations = %v, rejected destructor must not be appended", lin.Operations)
	}
}

func TestTypeVarFreshness(t *testing.T) {
	reg := NewRegistry()

	a := reg.NewTypeVar("")
	b := reg.NewTypeVar("")

	if a == b {
		t.Error("fresh type variables must be distinct nodes")
	}

	if reg.Equal(a, b) {
		t.Error("distinct type variables must not compare equal")
	}
}

func TestEqualResolvesStructure(t *testing.T) {
	reg := NewRegistry()
	intT := reg.Primitive(PrimInt)

	a := reg.NewComposite("Pair", []FieldInfo{{Name: "a", Type: intT}, {Name: "b", Type: intT}})
	b := reg.NewComposite("Pair", []FieldInfo{{Name: "a", Type: intT}, {Name: "b", Type: intT}})

	if !reg.Equal(a, b) {
		t.Error("identically shaped composites should be equal")
	}

	f1 := reg.NewFunction([]ID{intT}, intT, []string{"IO"})
	f2 := reg.NewFunction([]ID{intT}, intT, []string{"IO"})
	f3 := reg.NewFunction([]ID{intT}, intT, nil)

	if !reg.Equal(f1, f2) {
		t.Error("identical function types should be equal")
	}

	if reg.Equal(f1, f3) {
		t.Error("differing effect rows must not be equal")
	}
}
