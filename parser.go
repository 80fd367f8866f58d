package webx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// parser recognizes, at scope level, the first character(s) of each
// construct and dispatches.
type parser struct {
	r *reader
}

// Parse turns a module's source text into its AST.
func Parse(path, content string) (*Module, *ParseError) {
	p := &parser{r: newReader(path, content)}
	root, err := p.parseScope(true)
	if err != nil {
		return nil, err
	}
	return &Module{Path: path, Root: root}, nil
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// readIdentifier reads a bare [A-Za-z_][A-Za-z0-9_]* token.
func (p *parser) readIdentifier() string {
	if !isIdentStart(p.r.peek()) {
		return ""
	}
	first := p.r.advance()
	rest := p.r.readWhile(isIdentPart)
	return string(first) + rest
}

// parseScope parses either the root module scope or a nested `location`
// scope's body.
func (p *parser) parseScope(isRoot bool) (*Scope, *ParseError) {
	scope := &Scope{UrlPathPrefix: RootUrlPath()}
	for {
		p.r.skipWhitespace(true)
		c := p.r.peek()
		if c == eof {
			if !isRoot {
				return nil, newUnexpectedEOF(p.r.path, p.r.position())
			}
			return scope, nil
		}
		if c == '/' {
			handled, err := p.r.skipComment()
			if err != nil {
				return nil, err
			}
			if handled {
				continue
			}
			return nil, newUnexpectedCharacter(p.r.path, p.r.position(), c)
		}
		if c == '}' {
			if isRoot {
				return nil, newUnexpectedCharacter(p.r.path, p.r.position(), c)
			}
			p.r.advance()
			return scope, nil
		}

		loc := Location{Path: p.r.path, Line: p.r.line}
		word := p.readIdentifier()
		if word == "" {
			return nil, newUnexpectedCharacter(p.r.path, p.r.position(), c)
		}

		switch word {
		case "include":
			inc, err := p.parseInclude()
			if err != nil {
				return nil, err
			}
			scope.Includes = append(scope.Includes, inc)
		case "location":
			nested, err := p.parseLocation()
			if err != nil {
				return nil, err
			}
			scope.Scopes = append(scope.Scopes, nested)
		case "model":
			model, err := p.parseModel()
			if err != nil {
				return nil, err
			}
			scope.Models = append(scope.Models, model)
		case "handler":
			h, err := p.parseHandler()
			if err != nil {
				return nil, err
			}
			scope.Handlers = append(scope.Handlers, h)
		case "head":
			route, err := p.parseRoute("HEAD", loc)
			if err != nil {
				return nil, err
			}
			scope.Routes = append(scope.Routes, route)
		case "global":
			p.r.skipWhitespace(true)
			body, err := p.parseBody()
			if err != nil {
				return nil, err
			}
			if body == nil {
				return nil, newExpectedButFound(p.r.path, p.r.position(), "{", "nothing")
			}
			scope.GlobalScript += body.Source
		default:
			upper := strings.ToUpper(word)
			if !ValidMethod(upper) {
				return nil, newExpectedAnyOfButFound(
					p.r.path, p.r.position(),
					[]string{"include", "location", "model", "handler", "global", "<http method>"},
					word,
				)
			}
			route, err := p.parseRoute(upper, loc)
			if err != nil {
				return nil, err
			}
			scope.Routes = append(scope.Routes, route)
		}
	}
}

// parseInclude parses an include statement, optionally terminated by `;`
// or a newline.
func (p *parser) parseInclude() (string, *ParseError) {
	p.r.skipWhitespace(false)
	var path string
	if p.r.peek() == '"' {
		lit, err := p.parseStringLiteral()
		if err != nil {
			return "", err
		}
		path = lit.Str
	} else {
		path = strings.TrimSpace(p.r.readWhile(func(c rune) bool {
			return c != ';' && c != '\n' && c != eof
		}))
	}
	if p.r.peek() == ';' {
		p.r.advance()
	}
	return path, nil
}

// parseLocation parses `location <url-path> { ... }` into a nested scope
// with its own url-path prefix.
func (p *parser) parseLocation() (*Scope, *ParseError) {
	p.r.skipWhitespace(true)
	up, err := p.parseUrlPath()
	if err != nil {
		return nil, err
	}
	p.r.skipWhitespace(true)
	if err := p.r.expectChar('{'); err != nil {
		return nil, err
	}
	scope, perr := p.parseScope(false)
	if perr != nil {
		return nil, perr
	}
	scope.UrlPathPrefix = up
	return scope, nil
}

// parseModel parses `model Name { field: Type, ... }`.
func (p *parser) parseModel() (*Model, *ParseError) {
	p.r.skipWhitespace(true)
	name := p.readIdentifier()
	if name == "" {
		return nil, newExpectedButFound(p.r.path, p.r.position(), "model name", "nothing")
	}
	p.r.skipWhitespace(true)
	raw, err := p.r.readBalanced('{', '}')
	if err != nil {
		return nil, err
	}
	return &Model{Name: name, Fields: parseTypedFieldList(raw)}, nil
}

// parseHandler parses `handler name(params) <body>`.
func (p *parser) parseHandler() (*Handler, *ParseError) {
	p.r.skipWhitespace(true)
	name := p.readIdentifier()
	if name == "" {
		return nil, newExpectedButFound(p.r.path, p.r.position(), "handler name", "nothing")
	}
	p.r.skipWhitespace(true)
	rawParams, err := p.r.readBalanced('(', ')')
	if err != nil {
		return nil, err
	}
	p.r.skipWhitespace(true)
	body, berr := p.parseBody()
	if berr != nil {
		return nil, berr
	}
	if body == nil {
		return nil, newExpectedAnyOfButFound(p.r.path, p.r.position(), []string{"{", "("}, "nothing")
	}
	return &Handler{Name: name, Params: parseTypedFieldList(rawParams), Body: body}, nil
}

// parseTypedFieldList splits raw text on ',' and '\n' and parses each
// non-empty piece as "name: Type".
func parseTypedFieldList(raw string) []TypedField {
	var fields []TypedField
	for _, part := range strings.FieldsFunc(raw, func(c rune) bool { return c == ',' || c == '\n' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.IndexByte(part, ':')
		if idx < 0 {
			continue
		}
		fields = append(fields, TypedField{
			Name: strings.TrimSpace(part[:idx]),
			Type: strings.TrimSpace(part[idx+1:]),
		})
	}
	return fields
}

// parseBody parses a `{ ... }` (statement) or `( ... )` (template) block.
// Returns (nil, nil) if neither delimiter is next.
func (p *parser) parseBody() (*Body, *ParseError) {
	switch p.r.peek() {
	case '{':
		raw, err := p.r.readBalanced('{', '}')
		if err != nil {
			return nil, err
		}
		return &Body{Kind: StatementBody, Source: deindent(raw)}, nil
	case '(':
		raw, err := p.r.readBalanced('(', ')')
		if err != nil {
			return nil, err
		}
		return &Body{Kind: TemplateBody, Source: deindent(raw)}, nil
	default:
		return nil, nil
	}
}

// deindent strips the indentation of the last line common to the whole
// block. Lines with less indentation than that common prefix are preserved
// verbatim.
//
// raw is the text strictly between the block's delimiters, so a leading
// blank line (the newline right after the opening delimiter) and a
// trailing blank line (the newline right before the closing delimiter,
// which normally sits flush on its own line) are formatting artifacts, not
// content; they're dropped before the common indent is measured from the
// last remaining content line.
func deindent(raw string) string {
	lines := strings.Split(raw, "\n")
	if len(lines) <= 1 {
		return strings.TrimSpace(raw)
	}

	body := lines
	if body[0] == "" {
		body = body[1:]
	}
	if len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return ""
	}

	indent := leadingWhitespace(body[len(body)-1])
	out := make([]string, 0, len(body))
	for _, ln := range body {
		if indent != "" && strings.HasPrefix(ln, indent) {
			out = append(out, ln[len(indent):])
		} else {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}

func leadingWhitespace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[:i]
}

// parseUrlPath parses a URL path, running until the next whitespace.
func (p *parser) parseUrlPath() (*UrlPath, *ParseError) {
	var segs []Segment
	gen := 0

	if p.r.peek() == '/' {
		p.r.advance()
	}

	for {
		c := p.r.peek()
		if c == eof || isSpace(c) {
			break
		}
		switch c {
		case '(':
			seg, err := p.parseParamSegment()
			if err != nil {
				return nil, err
			}
			segs = append(segs, seg)
		case '*':
			p.r.advance()
			segs = append(segs, Segment{
				Kind:       RegexSegment,
				Name:       fmt.Sprintf("g%d", gen),
				Pattern:    regexp.MustCompile(".*"),
				rawPattern: ".*",
			})
			gen++
		case '/':
			p.r.advance()
		default:
			lit := p.r.readWhile(func(c rune) bool {
				return c != '/' && c != '(' && c != '*' && !isSpace(c) && c != eof
			})
			if lit == "" {
				return nil, newUnexpectedCharacter(p.r.path, p.r.position(), c)
			}
			segs = append(segs, Segment{Kind: LiteralSegment, Literal: lit})
		}
	}

	return &UrlPath{Segments: segs}, nil
}

func (p *parser) parseParamSegment() (Segment, *ParseError) {
	if err := p.r.expectChar('('); err != nil {
		return Segment{}, err
	}
	name := strings.TrimSpace(p.r.readWhile(func(c rune) bool { return c != ':' && c != eof }))
	if err := p.r.expectChar(':'); err != nil {
		return Segment{}, err
	}
	p.r.skipWhitespace(false)
	typ := strings.TrimSpace(p.r.readWhile(func(c rune) bool { return c != ')' && c != eof }))
	if err := p.r.expectChar(')'); err != nil {
		return Segment{}, err
	}
	return Segment{Kind: ParameterSegment, Name: name, Type: typ}, nil
}

// parseRoute parses one route declaration: method already consumed, loc
// is the source location of the method keyword.
func (p *parser) parseRoute(method string, loc Location) (*Route, *ParseError) {
	p.r.skipWhitespace(false)
	urlPath, err := p.parseUrlPath()
	if err != nil {
		return nil, err
	}

	bodyShape, err := p.parseBodyShape()
	if err != nil {
		return nil, err
	}

	p.r.skipWhitespace(true)
	pre, err := p.parseHandlerCalls()
	if err != nil {
		return nil, err
	}

	p.r.skipWhitespace(true)
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}

	p.r.skipWhitespace(true)
	post, err := p.parseHandlerCalls()
	if err != nil {
		return nil, err
	}

	return &Route{
		Method:    method,
		Path:      urlPath,
		BodyShape: bodyShape,
		Pre:       pre,
		Body:      body,
		Post:      post,
		Location:  loc,
	}, nil
}

// parseBodyShape parses an optional request-body shape: a bare model name,
// or `name(field: Type, ...)`.
func (p *parser) parseBodyShape() (*RouteBodyShape, *ParseError) {
	p.r.skipWhitespace(false)
	c := p.r.peek()
	if !isIdentStart(c) {
		return nil, nil
	}
	name := p.readIdentifier()
	if p.r.peek() == '(' {
		raw, err := p.r.readBalanced('(', ')')
		if err != nil {
			return nil, err
		}
		return &RouteBodyShape{
			Kind:      InlineShape,
			ShapeName: name,
			Fields:    parseTypedFieldList(raw),
		}, nil
	}
	return &RouteBodyShape{Kind: ModelReferenceShape, ModelName: name}, nil
}

// parseHandlerCalls parses an optional `-> name(args): out, name2(args)`
// list. Returns nil if the next token isn't `->`.
func (p *parser) parseHandlerCalls() ([]HandlerCall, *ParseError) {
	p.r.skipWhitespace(true)
	if p.r.peek() != '-' {
		return nil, nil
	}
	if err := p.r.expectLiteral("->", 0); err != nil {
		return nil, err
	}

	var calls []HandlerCall
	for {
		p.r.skipWhitespace(true)
		call, err := p.parseHandlerCall()
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
		p.r.skipWhitespace(true)
		if p.r.peek() != ',' {
			break
		}
		p.r.advance()
	}
	return calls, nil
}

func (p *parser) parseHandlerCall() (HandlerCall, *ParseError) {
	name := p.readIdentifier()
	if name == "" {
		return HandlerCall{}, newExpectedButFound(p.r.path, p.r.position(), "handler name", "nothing")
	}
	p.r.skipWhitespace(true)
	if err := p.r.expectChar('('); err != nil {
		return HandlerCall{}, err
	}
	args, err := p.parseArgList()
	if err != nil {
		return HandlerCall{}, err
	}

	p.r.skipWhitespace(true)
	output := ""
	if p.r.peek() == ':' {
		p.r.advance()
		p.r.skipWhitespace(true)
		output = p.readIdentifier()
	}
	return HandlerCall{Name: name, Args: args, Output: output}, nil
}

// parseArgList parses a comma-separated literal-AST argument list up to
// and including the closing ')'.
func (p *parser) parseArgList() ([]Literal, *ParseError) {
	p.r.skipWhitespace(true)
	if p.r.peek() == ')' {
		p.r.advance()
		return nil, nil
	}

	var args []Literal
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		args = append(args, lit)

		p.r.skipWhitespace(true)
		c, err := p.r.expectAnyOf(",)")
		if err != nil {
			return nil, err
		}
		if c == ')' {
			break
		}
		p.r.skipWhitespace(true)
	}
	return args, nil
}

// parseLiteral parses one JSON-like literal.
func (p *parser) parseLiteral() (Literal, *ParseError) {
	p.r.skipWhitespace(true)
	c := p.r.peek()
	switch {
	case c == '"':
		return p.parseStringLiteral()
	case c == '[':
		return p.parseArrayLiteral()
	case c == '{':
		return p.parseObjectLiteral()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumberLiteral()
	case isIdentStart(c):
		word := p.readIdentifier()
		switch word {
		case "true":
			return Literal{Kind: BoolLiteral, Bool: true}, nil
		case "false":
			return Literal{Kind: BoolLiteral, Bool: false}, nil
		case "null":
			return Literal{Kind: NullLiteral}, nil
		default:
			return Literal{Kind: IdentifierLiteral, Str: word}, nil
		}
	default:
		return Literal{}, newUnexpectedCharacter(p.r.path, p.r.position(), c)
	}
}

func (p *parser) parseStringLiteral() (Literal, *ParseError) {
	if err := p.r.expectChar('"'); err != nil {
		return Literal{}, err
	}
	var b strings.Builder
	for {
		c, err := p.r.expect()
		if err != nil {
			return Literal{}, err
		}
		if c == '"' {
			break
		}
		if c == '\\' {
			esc, err := p.r.expect()
			if err != nil {
				return Literal{}, err
			}
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"', '\\', '/':
				b.WriteRune(esc)
			default:
				b.WriteRune(esc)
			}
			continue
		}
		b.WriteRune(c)
	}
	return Literal{Kind: StringLiteral, Str: b.String()}, nil
}

func (p *parser) parseNumberLiteral() (Literal, *ParseError) {
	text := p.r.readWhile(func(c rune) bool {
		return c == '-' || c == '.' || (c >= '0' && c <= '9')
	})
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Literal{}, newExpectedButFound(p.r.path, p.r.position(), "number", text)
	}
	return Literal{Kind: NumberLiteral, Num: n}, nil
}

func (p *parser) parseArrayLiteral() (Literal, *ParseError) {
	if err := p.r.expectChar('['); err != nil {
		return Literal{}, err
	}
	p.r.skipWhitespace(true)
	if p.r.peek() == ']' {
		p.r.advance()
		return Literal{Kind: ArrayLiteral}, nil
	}
	var elems []Literal
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return Literal{}, err
		}
		elems = append(elems, lit)
		p.r.skipWhitespace(true)
		c, err := p.r.expectAnyOf(",]")
		if err != nil {
			return Literal{}, err
		}
		if c == ']' {
			break
		}
		p.r.skipWhitespace(true)
	}
	return Literal{Kind: ArrayLiteral, Array: elems}, nil
}

func (p *parser) parseObjectLiteral() (Literal, *ParseError) {
	if err := p.r.expectChar('{'); err != nil {
		return Literal{}, err
	}
	p.r.skipWhitespace(true)
	if p.r.peek() == '}' {
		p.r.advance()
		return Literal{Kind: ObjectLiteral}, nil
	}
	var fields []ObjectField
	for {
		p.r.skipWhitespace(true)
		var key string
		if p.r.peek() == '"' {
			lit, err := p.parseStringLiteral()
			if err != nil {
				return Literal{}, err
			}
			key = lit.Str
		} else {
			key = p.readIdentifier()
			if key == "" {
				return Literal{}, newExpectedButFound(p.r.path, p.r.position(), "object key", string(p.r.peek()))
			}
		}
		p.r.skipWhitespace(true)
		if err := p.r.expectChar(':'); err != nil {
			return Literal{}, err
		}
		val, err := p.parseLiteral()
		if err != nil {
			return Literal{}, err
		}
		fields = append(fields, ObjectField{Key: key, Value: val})

		p.r.skipWhitespace(true)
		c, err := p.r.expectAnyOf(",}")
		if err != nil {
			return Literal{}, err
		}
		if c == '}' {
			break
		}
		p.r.skipWhitespace(true)
	}
	return Literal{Kind: ObjectLiteral, Object: fields}, nil
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
