package webx

import (
	"strings"
)

// reader is a single-pass character reader with one-character lookahead,
// tracking line and column.
type reader struct {
	path    string
	runes   []rune
	pos     int // index of the next rune to be returned by advance
	line    int
	column  int
	peeked  rune
	hasPeek bool
	atEOF   bool
}

const eof = rune(-1)

func newReader(path, content string) *reader {
	r := &reader{
		path:  path,
		runes: []rune(content),
		line:  1,
	}
	r.fill()
	return r
}

func (r *reader) fill() {
	if r.pos >= len(r.runes) {
		r.atEOF = true
		r.peeked = eof
		r.hasPeek = true
		return
	}
	r.peeked = r.runes[r.pos]
	r.hasPeek = true
}

// peek returns the next rune without consuming it, or eof at end of input.
func (r *reader) peek() rune {
	if !r.hasPeek {
		r.fill()
	}
	return r.peeked
}

// position returns the reader's current line/column, pointing at the rune
// peek() would return.
func (r *reader) position() Position {
	return Position{Line: r.line, Column: r.column + 1}
}

// advance consumes and returns the next rune, or eof at end of input.
func (r *reader) advance() rune {
	c := r.peek()
	if c == eof {
		return eof
	}
	r.pos++
	r.hasPeek = false
	if c == '\n' {
		r.line++
		r.column = 0
	} else {
		r.column++
	}
	return c
}

// expect consumes and returns the next rune, erroring if input is
// exhausted.
func (r *reader) expect() (rune, *ParseError) {
	pos := r.position()
	c := r.advance()
	if c == eof {
		return eof, newUnexpectedEOF(r.path, pos)
	}
	return c, nil
}

// expectChar consumes the next rune and errors unless it equals want.
func (r *reader) expectChar(want rune) *ParseError {
	pos := r.position()
	c := r.advance()
	if c == eof {
		return newUnexpectedEOF(r.path, pos)
	}
	if c != want {
		return newExpectedButFound(r.path, pos, string(want), string(c))
	}
	return nil
}

// expectAnyOf consumes the next rune and errors unless it is one of set.
func (r *reader) expectAnyOf(set string) (rune, *ParseError) {
	pos := r.position()
	c := r.advance()
	if c == eof {
		return eof, newUnexpectedEOF(r.path, pos)
	}
	if !strings.ContainsRune(set, c) {
		labels := make([]string, len(set))
		for i, s := range set {
			labels[i] = string(s)
		}
		return eof, newExpectedAnyOfButFound(r.path, pos, labels, string(c))
	}
	return c, nil
}

// expectLiteral consumes len(literal)-alreadyConsumed runes and errors
// unless, together with the alreadyConsumed prefix the caller peeked to
// dispatch on, they spell out literal exactly.
func (r *reader) expectLiteral(literal string, alreadyConsumed int) *ParseError {
	runes := []rune(literal)
	for i := alreadyConsumed; i < len(runes); i++ {
		if err := r.expectChar(runes[i]); err != nil {
			return err
		}
	}
	return nil
}

// skipWhitespace consumes space/tab runes, and also newlines when
// includeNewlines is true.
func (r *reader) skipWhitespace(includeNewlines bool) {
	for {
		c := r.peek()
		if c == ' ' || c == '\t' || c == '\r' {
			r.advance()
			continue
		}
		if includeNewlines && c == '\n' {
			r.advance()
			continue
		}
		break
	}
}

// readWhile consumes and returns runes while predicate holds.
func (r *reader) readWhile(predicate func(rune) bool) string {
	var b strings.Builder
	for predicate(r.peek()) {
		b.WriteRune(r.advance())
	}
	return b.String()
}

// skipComment consumes a `//` line comment or a `/* */` block comment
// (non-nesting), assuming the opening '/' has already been peeked but not
// consumed. Returns false if the next two characters are not a comment
// opener.
func (r *reader) skipComment() (bool, *ParseError) {
	if r.peek() != '/' {
		return false, nil
	}
	r.advance()
	switch r.peek() {
	case '/':
		r.advance()
		r.readWhile(func(c rune) bool { return c != '\n' && c != eof })
		return true, nil
	case '*':
		r.advance()
		for {
			c := r.advance()
			if c == eof {
				return true, newUnexpectedEOF(r.path, r.position())
			}
			if c == '*' && r.peek() == '/' {
				r.advance()
				return true, nil
			}
		}
	default:
		return false, newUnexpectedCharacter(r.path, r.position(), '/')
	}
}

// readBalanced reads a delimiter-balanced block starting at the opening
// delimiter (already peeked, not consumed) through its matching close,
// tracking nesting depth, and returns the content between the outermost
// delimiters (exclusive).
func (r *reader) readBalanced(open, close rune) (string, *ParseError) {
	if err := r.expectChar(open); err != nil {
		return "", err
	}
	depth := 1
	var b strings.Builder
	for depth > 0 {
		c := r.advance()
		if c == eof {
			return "", newUnexpectedEOF(r.path, r.position())
		}
		if c == open {
			depth++
		} else if c == close {
			depth--
			if depth == 0 {
				break
			}
		}
		b.WriteRune(c)
	}
	return b.String(), nil
}
