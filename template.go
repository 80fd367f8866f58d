package webx

import "strings"

// compileTemplate turns a TemplateBody's de-indented source into a JS
// template-literal expression. WebX template interpolation uses `{expr}`
// where JS template literals use `${expr}`; everything outside a `{...}`
// span is literal text. Compiling down to a template literal lets goja do
// the actual evaluation instead of a second template interpreter.
func compileTemplate(source string) string {
	var b strings.Builder
	b.Grow(len(source) + 2)
	b.WriteByte('`')

	n := len(source)
	for i := 0; i < n; {
		c := source[i]
		switch c {
		case '`':
			b.WriteString("\\`")
			i++
		case '\\':
			b.WriteString("\\\\")
			i++
		case '{':
			depth := 1
			j := i + 1
			for j < n && depth > 0 {
				switch source[j] {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						goto done
					}
				}
				j++
			}
		done:
			expr := source[i+1 : j]
			b.WriteString("${")
			b.WriteString(expr)
			b.WriteByte('}')
			if j < n {
				j++
			}
			i = j
		case '$':
			// Escape a bare '$' so an accidental "${" in literal text
			// (not produced by our own interpolation above) can't be
			// mistaken for a JS template substitution.
			if i+1 < n && source[i+1] == '{' {
				b.WriteString("\\$")
				i++
			} else {
				b.WriteByte(c)
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
	}

	b.WriteByte('`')
	return b.String()
}

// bodyExpression returns the JS source to evaluate for body, compiling
// template bodies via compileTemplate and passing statement bodies through
// unchanged.
func bodyExpression(body *Body) string {
	if body.Kind == TemplateBody {
		return compileTemplate(body.Source)
	}
	return body.Source
}
