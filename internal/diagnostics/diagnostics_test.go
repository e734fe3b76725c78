package diagnostics

import (
	"strings"
	"testing"

	"github.com/vela-lang/vela/internal/position"
)

func span(line int) position.Span {
	return position.NewSpan(
		position.Position{Filename: "main.vela", Line: line, Column: 1},
		position.Position{Filename: "main.vela", Line: line, Column: 10},
	)
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{UndefinedType, "undefined-type"},
		{TypeMismatch, "type-mismatch"},
		{UnhandledEffect, "unhandled-effect"},
		{DuplicateDefinition, "duplicate-definition"},
		{ConstraintViolation, "constraint-violation"},
		{ErrorKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestTypeErrorFormat(t *testing.T) {
	err := NewError(TypeMismatch, span(3), "expected %s, found %s", "int", "bool")

	got := err.Error()
	if !strings.Contains(got, "main.vela:3:1") {
		t.Errorf("missing location in %q", got)
	}

	if !strings.Contains(got, "[type-mismatch]") {
		t.Errorf("missing kind tag in %q", got)
	}

	if !strings.Contains(got, "expected int, found bool") {
		t.Errorf("missing message in %q", got)
	}
}

func TestErrorSetOrderAndCounts(t *testing.T) {
	s := NewErrorSet(0)
	s.Add(NewError(UndefinedType, span(1), "unknown type: Foo"))
	s.Add(NewWarning(ConstraintViolation, span(2), "could not verify"))
	s.Add(NewError(UndefinedValue, span(3), "undefined variable: x"))

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("Len = %d, want 3", len(all))
	}

	if all[0].Kind != UndefinedType || all[2].Kind != UndefinedValue {
		t.Error("diagnostics not in discovery order")
	}

	if s.ErrorCount() != 2 {
		t.Errorf("ErrorCount = %d, want 2", s.ErrorCount())
	}

	if s.CountKind(ConstraintViolation) != 1 {
		t.Errorf("CountKind(ConstraintViolation) = %d, want 1", s.CountKind(ConstraintViolation))
	}
}

func TestErrorSetLimit(t *testing.T) {
	s := NewErrorSet(2)
	for i := 0; i < 5; i++ {
		s.Add(NewError(TypeMismatch, span(i+1), "mismatch %d", i))
	}

	if s.ErrorCount() != 2 {
		t.Errorf("ErrorCount = %d, want cap of 2", s.ErrorCount())
	}

	// Warnings never count against the cap.
	s.Add(NewWarning(ConstraintViolation, span(9), "advisory"))
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3 (2 errors + 1 warning)", s.Len())
	}
}

func TestAsError(t *testing.T) {
	s := NewErrorSet(0)
	if s.AsError() != nil {
		t.Error("empty set should be nil error")
	}

	s.Add(NewWarning(ConstraintViolation, span(1), "advisory"))
	if s.AsError() != nil {
		t.Error("warnings alone should not make the run fail")
	}

	s.Add(NewError(TypeMismatch, span(2), "mismatch"))
	if s.AsError() == nil {
		t.Error("hard error should surface through AsError")
	}
}

func TestMerge(t *testing.T) {
	a := NewErrorSet(0)
	a.Add(NewError(UndefinedType, span(1), "first"))

	b := NewErrorSet(0)
	b.Add(NewError(UndefinedValue, span(2), "second"))

	a.Merge(b)

	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}

	if a.All()[1].Kind != UndefinedValue {
		t.Error("merged diagnostics should follow existing ones")
	}
}
