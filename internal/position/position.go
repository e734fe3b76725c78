// Package position provides unified source code position tracking
// for the Vela compiler front end. Every diagnostic the checker emits
// carries a Span built from these types, verbatim from the parser.
package position

import (
	"fmt"
	"path/filepath"
)

// Position represents a single point in source code.
type Position struct {
	Filename string // Source file name
	Line     int    // 1-based line number
	Column   int    // 1-based column number
}

// IsValid returns true if the position refers to a real source location.
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0
}

// String returns a string representation of the position.
func (p Position) String() string {
	if p.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", filepath.Base(p.Filename), p.Line, p.Column)
	}

	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before returns true if this position comes before other in the same file.
func (p Position) Before(other Position) bool {
	if p.Filename != other.Filename {
		return p.Filename < other.Filename
	}

	if p.Line != other.Line {
		return p.Line < other.Line
	}

	return p.Column < other.Column
}

// Span represents a range of source code between two positions.
type Span struct {
	Start Position // Starting position (inclusive)
	End   Position // Ending position (exclusive)
}

// NewSpan creates a span covering start up to end.
func NewSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// IsValid returns true if the span covers a well-ordered range in one file.
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End.IsValid() &&
		s.Start.Filename == s.End.Filename &&
		!s.End.Before(s.Start)
}

// String returns a string representation of the span's start.
func (s Span) String() string {
	return s.Start.String()
}

// Merge returns the smallest span covering both s and other.
func (s Span) Merge(other Span) Span {
	result := s
	if other.Start.Before(result.Start) {
		result.Start = other.Start
	}

	if result.End.Before(other.End) {
		result.End = other.End
	}

	return result
}

// Contains reports whether the position falls inside the span.
func (s Span) Contains(p Position) bool {
	if p.Filename != s.Start.Filename {
		return false
	}

	return !p.Before(s.Start) && p.Before(s.End)
}
