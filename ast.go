package webx

import "strings"

// Package-level AST types for a parsed WebX module.
//
// A Module is the typed representation of one source file: a canonical
// filesystem path and a root Scope. Everything else in this file builds up
// the shape of a Scope.

// Module is one parsed source file and its root scope.
type Module struct {
	// Path is the canonical filesystem path of the module, relative to
	// the project's source directory. It is the key used throughout the
	// runtime (script host map, route owner reference, hot-swap target).
	Path string

	// Root is the module's root scope. Its UrlPathPrefix is always empty.
	Root *Scope
}

// Scope is a url-path-prefixed block inside a module. The root scope of a
// Module has an empty UrlPathPrefix; nested scopes are created by the
// `location` keyword.
type Scope struct {
	// UrlPathPrefix is the url-path segment sequence this scope
	// contributes to every route nested (directly or transitively)
	// beneath it.
	UrlPathPrefix *UrlPath

	// Includes is the ordered list of include paths, relative to the
	// module's directory, exactly as written in the source.
	Includes []string

	// GlobalScript is the concatenation of every `global { ... }` block
	// encountered at this scope, in source order.
	GlobalScript string

	Models   []*Model
	Handlers []*Handler
	Routes   []*Route
	Scopes   []*Scope
}

// Model is a named record type: an ordered list of (field name, type name)
// pairs.
type Model struct {
	Name   string
	Fields []TypedField
}

// TypedField is a (name, type-name) pair, used by Model fields, Handler
// parameters, and inline request-body shapes.
type TypedField struct {
	Name string
	Type string
}

// BodyKind distinguishes the two delimiter styles a body block can use.
type BodyKind uint8

const (
	// StatementBody is a `{ ... }`-delimited block: arbitrary script
	// statements.
	StatementBody BodyKind = iota
	// TemplateBody is a `( ... )`-delimited block: a template expression.
	TemplateBody
)

func (k BodyKind) String() string {
	if k == TemplateBody {
		return "template"
	}
	return "statement"
}

// Body is a block of script source with its delimiter kind attached. The
// Source is already de-indented.
type Body struct {
	Kind   BodyKind
	Source string
}

// Handler is a named procedure: an ordered list of typed parameters plus a
// body block.
type Handler struct {
	Name   string
	Params []TypedField
	Body   *Body
}

// collectHandlers gathers every handler definition reachable from scope,
// including those declared in nested `location` scopes: a module's script
// host has one flat global namespace, so a handler is callable from any
// pre/post-handler call anywhere in the module regardless of which scope
// declared it.
func collectHandlers(scope *Scope) []*Handler {
	handlers := append([]*Handler(nil), scope.Handlers...)
	for _, nested := range scope.Scopes {
		handlers = append(handlers, collectHandlers(nested)...)
	}
	return handlers
}

// handlerFunctionSource renders a Handler as a JS function declaration
// suitable for evaluating once at module load; the pipeline later invokes
// it as a plain call expression against whatever the engine has bound
// under that name. Template bodies are compiled via compileTemplate so
// `renderTodo(t: Todo) (<li>{t.title}</li>)` becomes a function that
// returns the interpolated string.
func handlerFunctionSource(h *Handler) string {
	var b strings.Builder
	b.WriteString("function ")
	b.WriteString(h.Name)
	b.WriteByte('(')
	for i, p := range h.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
	}
	b.WriteString(") {\n")
	if h.Body.Kind == TemplateBody {
		b.WriteString("return ")
		b.WriteString(compileTemplate(h.Body.Source))
		b.WriteString(";\n")
	} else {
		b.WriteString(h.Body.Source)
		b.WriteByte('\n')
	}
	b.WriteString("}")
	return b.String()
}

// RouteBodyShapeKind distinguishes a reference to a named model from an
// inline record of typed fields.
type RouteBodyShapeKind uint8

const (
	ModelReferenceShape RouteBodyShapeKind = iota
	InlineShape
)

// RouteBodyShape is a route's declared request-body shape: either a
// reference to a model name, or an inline record of typed fields with its
// own name tag (e.g. `json(a: string)`).
type RouteBodyShape struct {
	Kind       RouteBodyShapeKind
	ModelName  string       // set when Kind == ModelReferenceShape
	ShapeName  string       // set when Kind == InlineShape, e.g. "json"
	Fields     []TypedField // set when Kind == InlineShape
}

// HandlerCall is one pre- or post-handler invocation: a name, an ordered
// list of literal-AST arguments, and an optional output binding name.
type HandlerCall struct {
	Name   string
	Args   []Literal
	Output string // "" if no output binding was declared
}

// Location is a source position reference: file path plus 1-based line.
type Location struct {
	Path string
	Line int
}

// Route is a single HTTP route declaration.
type Route struct {
	Method     string
	Path       *UrlPath
	BodyShape  *RouteBodyShape // nil if absent
	Pre        []HandlerCall
	Body       *Body // nil if absent
	Post       []HandlerCall
	Location   Location
}

// The nine methods the grammar recognizes.
var Methods = []string{
	"GET", "HEAD", "POST", "PUT", "PATCH",
	"DELETE", "CONNECT", "OPTIONS", "TRACE",
}

// ValidMethod reports whether m (already upper-cased) is one of the nine
// methods the grammar recognizes.
func ValidMethod(m string) bool {
	for _, x := range Methods {
		if x == m {
			return true
		}
	}
	return false
}

// RequiresBody reports whether method requires a route to declare a
// request-body shape.
func RequiresBody(method string) bool {
	return method == "POST" || method == "PUT"
}

// ForbidsBody reports whether method forbids a route from declaring a
// request-body shape.
func ForbidsBody(method string) bool {
	return method == "GET" || method == "DELETE"
}
