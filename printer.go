package webx

import "strings"

// FormatModule renders a parsed module back to source text. Re-parsing the
// output yields a structurally equal AST, which is what makes this usable
// as the reference printer for parser round-trip tests; it is also handy
// for diagnostics that want to show a normalized view of a module.
func FormatModule(m *Module) string {
	var b strings.Builder
	formatScope(&b, m.Root, 0)
	return b.String()
}

func formatScope(b *strings.Builder, scope *Scope, depth int) {
	indent := strings.Repeat("  ", depth)

	for _, inc := range scope.Includes {
		b.WriteString(indent)
		b.WriteString("include ")
		b.WriteString(quoteString(inc))
		b.WriteByte('\n')
	}

	if scope.GlobalScript != "" {
		b.WriteString(indent)
		b.WriteString("global ")
		formatBody(b, &Body{Kind: StatementBody, Source: scope.GlobalScript}, indent)
		b.WriteByte('\n')
	}

	for _, m := range scope.Models {
		b.WriteString(indent)
		b.WriteString("model ")
		b.WriteString(m.Name)
		b.WriteString(" {\n")
		for i, f := range m.Fields {
			b.WriteString(indent)
			b.WriteString("  ")
			b.WriteString(f.Name)
			b.WriteString(": ")
			b.WriteString(f.Type)
			if i < len(m.Fields)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(indent)
		b.WriteString("}\n")
	}

	for _, h := range scope.Handlers {
		b.WriteString(indent)
		b.WriteString("handler ")
		b.WriteString(h.Name)
		b.WriteByte('(')
		writeTypedFields(b, h.Params)
		b.WriteString(") ")
		formatBody(b, h.Body, indent)
		b.WriteByte('\n')
	}

	for _, r := range scope.Routes {
		b.WriteString(indent)
		b.WriteString(strings.ToLower(r.Method))
		b.WriteByte(' ')
		b.WriteString(r.Path.String())
		if r.BodyShape != nil {
			b.WriteByte(' ')
			if r.BodyShape.Kind == ModelReferenceShape {
				b.WriteString(r.BodyShape.ModelName)
			} else {
				b.WriteString(r.BodyShape.ShapeName)
				b.WriteByte('(')
				writeTypedFields(b, r.BodyShape.Fields)
				b.WriteByte(')')
			}
		}
		if len(r.Pre) > 0 {
			b.WriteString(" -> ")
			writeHandlerCalls(b, r.Pre)
		}
		if r.Body != nil {
			b.WriteByte(' ')
			formatBody(b, r.Body, indent)
		}
		if len(r.Post) > 0 {
			b.WriteString(" -> ")
			writeHandlerCalls(b, r.Post)
		}
		b.WriteByte('\n')
	}

	for _, nested := range scope.Scopes {
		b.WriteString(indent)
		b.WriteString("location ")
		b.WriteString(nested.UrlPathPrefix.String())
		b.WriteString(" {\n")
		formatScope(b, nested, depth+1)
		b.WriteString(indent)
		b.WriteString("}\n")
	}
}

func writeTypedFields(b *strings.Builder, fields []TypedField) {
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Type)
	}
}

func writeHandlerCalls(b *strings.Builder, calls []HandlerCall) {
	for i, c := range calls {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte('(')
		for j, arg := range c.Args {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg.String())
		}
		b.WriteByte(')')
		if c.Output != "" {
			b.WriteString(": ")
			b.WriteString(c.Output)
		}
	}
}

// formatBody re-emits a body block. A parsed Source is already de-indented,
// so its last content line sits flush left; re-indenting every non-empty
// line by one level and closing at the enclosing indent makes the block
// de-indent back to the identical Source on re-parse.
func formatBody(b *strings.Builder, body *Body, indent string) {
	open, closing := byte('{'), byte('}')
	if body.Kind == TemplateBody {
		open, closing = '(', ')'
	}

	if !strings.Contains(body.Source, "\n") {
		b.WriteByte(open)
		b.WriteString(body.Source)
		b.WriteByte(closing)
		return
	}

	b.WriteByte(open)
	b.WriteByte('\n')
	for _, ln := range strings.Split(body.Source, "\n") {
		if ln != "" {
			b.WriteString(indent)
			b.WriteString("  ")
			b.WriteString(ln)
		}
		b.WriteByte('\n')
	}
	b.WriteString(indent)
	b.WriteByte(closing)
}
