package types

import (
	"errors"
	"testing"
)

func TestScopeLifecycle(t *testing.T) {
	env := NewEnvironment()

	if env.ScopeLevel() != 1 {
		t.Fatalf("fresh environment level = %d, want 1", env.ScopeLevel())
	}

	env.EnterScope()
	env.EnterScope()

	if env.ScopeLevel() != 3 {
		t.Fatalf("level after two enters = %d, want 3", env.ScopeLevel())
	}

	if err := env.ExitScope(); err != nil {
		t.Fatalf("ExitScope: %v", err)
	}

	if err := env.ExitScope(); err != nil {
		t.Fatalf("ExitScope: %v", err)
	}

	// The global scope can never be popped and the failed attempt must
	// not change the stack.
	err := env.ExitScope()

	var se *ScopeError
	if !errors.As(err, &se) {
		t.Fatalf("exiting global scope: got %v, want ScopeError", err)
	}

	if env.ScopeLevel() != 1 {
		t.Errorf("level after failed exit = %d, want 1", env.ScopeLevel())
	}
}

func TestShadowing(t *testing.T) {
	reg := NewRegistry()
	env := NewEnvironment()

	intT := reg.Primitive(PrimInt)
	boolT := reg.Primitive(PrimBool)

	if err := env.RegisterVariable("x", intT, false); err != nil {
		t.Fatalf("register x: %v", err)
	}

	env.EnterScope()

	if err := env.RegisterVariable("x", boolT, true); err != nil {
		t.Fatalf("shadowing in inner scope should succeed: %v", err)
	}

	b, ok := env.LookupVariable("x")
	if !ok || b.Type != boolT || !b.Mutable {
		t.Errorf("inner lookup = %+v, want bool mutable binding", b)
	}

	if err := env.ExitScope(); err != nil {
		t.Fatalf("ExitScope: %v", err)
	}

	b, ok = env.LookupVariable("x")
	if !ok || b.Type != intT || b.Mutable {
		t.Errorf("outer binding should be restored after exit, got %+v", b)
	}
}

func TestDuplicateKeepsFirst(t *testing.T) {
	reg := NewRegistry()
	env := NewEnvironment()

	intT := reg.Primitive(PrimInt)
	boolT := reg.Primitive(PrimBool)

	if err := env.RegisterType("Temp", intT); err != nil {
		t.Fatalf("first register: %v", err)
	}

	err := env.RegisterType("Temp", boolT)

	var de *DuplicateError
	if !errors.As(err, &de) {
		t.Fatalf("second register: got %v, want DuplicateError", err)
	}

	if id, _ := env.LookupType("Temp"); id != intT {
		t.Error("first binding must survive a rejected rebind")
	}
}

func TestEffectVisibility(t *testing.T) {
	env := NewEnvironment()

	if env.HasEffect("IO") {
		t.Error("unregistered effect should not be visible")
	}

	if err := env.RegisterEffect("IO"); err != nil {
		t.Fatalf("RegisterEffect: %v", err)
	}

	env.EnterScope()

	if !env.HasEffect("IO") {
		t.Error("outer effect should be visible from inner scope")
	}
}
