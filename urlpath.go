package webx

import (
	"fmt"
	"regexp"
	"strings"
)

// SegmentKind tags the three kinds of URL-path segment.
type SegmentKind uint8

const (
	LiteralSegment SegmentKind = iota
	ParameterSegment
	RegexSegment
)

// Segment is one component of a UrlPath.
type Segment struct {
	Kind SegmentKind

	// Literal holds the segment text when Kind == LiteralSegment.
	Literal string

	// Name holds the binding name for ParameterSegment and the
	// parser-generated name ("g0", "g1", ...) for RegexSegment.
	Name string

	// Type holds the declared type name for a ParameterSegment, e.g.
	// "Int" in "(user_id: Int)". Advisory only: the matcher binds the raw
	// string token regardless of Type.
	Type string

	// Pattern holds the compiled regular expression for a RegexSegment.
	Pattern *regexp.Regexp
	// rawPattern preserves the source text of Pattern for equality/hash
	// and for round-tripping, since regexp.Regexp doesn't compare by value.
	rawPattern string
}

// UrlPath is an ordered sequence of segments. Equality is structural on
// segments.
type UrlPath struct {
	Segments []Segment
}

// NewUrlPath builds a UrlPath from already-parsed segments.
func NewUrlPath(segments ...Segment) *UrlPath {
	return &UrlPath{Segments: segments}
}

// RootUrlPath is the empty URL path (the root scope's prefix).
func RootUrlPath() *UrlPath { return &UrlPath{} }

// Combine appends other's segments after this path's segments, returning a
// new UrlPath.
func (p *UrlPath) Combine(other *UrlPath) *UrlPath {
	out := make([]Segment, 0, len(p.Segments)+len(other.Segments))
	out = append(out, p.Segments...)
	out = append(out, other.Segments...)
	return &UrlPath{Segments: out}
}

// SegmentCount returns the number of segments.
func (p *UrlPath) SegmentCount() int { return len(p.Segments) }

// Key returns a string that is equal for structurally-equal UrlPaths and
// distinct otherwise, used as the map key in the route map.
func (p *UrlPath) Key() string {
	var b strings.Builder
	for _, s := range p.Segments {
		b.WriteByte('/')
		switch s.Kind {
		case LiteralSegment:
			b.WriteByte('L')
			b.WriteString(s.Literal)
		case ParameterSegment:
			b.WriteByte('P')
			b.WriteString(s.Name)
			b.WriteByte(':')
			b.WriteString(s.Type)
		case RegexSegment:
			b.WriteByte('R')
			b.WriteString(s.Name)
			b.WriteByte(':')
			b.WriteString(s.rawPattern)
		}
	}
	return b.String()
}

// String renders the UrlPath back to source syntax, used by the module
// printer and diagnostics.
func (p *UrlPath) String() string {
	if len(p.Segments) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range p.Segments {
		b.WriteByte('/')
		switch s.Kind {
		case LiteralSegment:
			b.WriteString(s.Literal)
		case ParameterSegment:
			fmt.Fprintf(&b, "(%s: %s)", s.Name, s.Type)
		case RegexSegment:
			b.WriteByte('*')
		}
	}
	return b.String()
}

// ParamNames returns the set of Parameter and Regex segment names present
// in the path. A perfect match binds exactly this set.
func (p *UrlPath) ParamNames() map[string]bool {
	out := map[string]bool{}
	for _, s := range p.Segments {
		if s.Kind == ParameterSegment || s.Kind == RegexSegment {
			out[s.Name] = true
		}
	}
	return out
}
