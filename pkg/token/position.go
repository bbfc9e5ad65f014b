package token

import "fmt"

// Position represents a location in source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// String returns "line:column" for diagnostics.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span represents a half-open byte range [Start, End) in source text.
type Span struct {
	Start Position
	End   Position
}

// NewSpan builds a span from two positions.
func NewSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Contains returns true if the span contains the given byte offset.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start.Offset && offset < s.End.Offset
}

// ContainsInclusive is like Contains but also accepts the end offset.
// Completion cursors routinely sit immediately after the last typed byte.
func (s Span) ContainsInclusive(offset int) bool {
	return offset >= s.Start.Offset && offset <= s.End.Offset
}

// Len returns the byte length of the span.
func (s Span) Len() int {
	return s.End.Offset - s.Start.Offset
}

// IsValid returns true if both start and end positions are valid.
func (s Span) IsValid() bool {
	return s.Start.IsValid() && s.End.IsValid()
}

// Union returns the smallest span covering both s and other. An invalid
// operand is ignored; two invalid spans yield an invalid span.
func (s Span) Union(other Span) Span {
	if !s.IsValid() {
		return other
	}
	if !other.IsValid() {
		return s
	}
	out := s
	if other.Start.Offset < out.Start.Offset {
		out.Start = other.Start
	}
	if other.End.Offset > out.End.Offset {
		out.End = other.End
	}
	return out
}
