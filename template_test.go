package webx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileTemplatePlainLiteral(t *testing.T) {
	assert.Equal(t, "`<h1>About</h1>`", compileTemplate("<h1>About</h1>"))
}

func TestCompileTemplateInterpolatesExpression(t *testing.T) {
	assert.Equal(t, "`<li>${t.title}</li>`", compileTemplate("<li>{t.title}</li>"))
}

func TestCompileTemplateHandlesNestedBraceExpression(t *testing.T) {
	assert.Equal(t, "`x${ {a: 1}.a }y`", compileTemplate("x{ {a: 1}.a }y"))
}

func TestCompileTemplateEscapesBacktick(t *testing.T) {
	assert.Equal(t, "`a\\`b`", compileTemplate("a`b"))
}

func TestHandlerFunctionSourceWrapsTemplateBody(t *testing.T) {
	h := &Handler{
		Name:   "renderTodo",
		Params: []TypedField{{Name: "t", Type: "Todo"}},
		Body:   &Body{Kind: TemplateBody, Source: "<li>{t.title}</li>"},
	}
	src := handlerFunctionSource(h)
	assert.Contains(t, src, "function renderTodo(t)")
	assert.Contains(t, src, "return `<li>${t.title}</li>`;")
}

func TestCollectHandlersIncludesNestedScopes(t *testing.T) {
	mod := mustParse(t, "a.webx", "handler top(x: Int) (top)\nlocation /api {\n  handler nested(y: Int) (nested)\n}\n")
	handlers := collectHandlers(mod.Root)
	names := map[string]bool{}
	for _, h := range handlers {
		names[h.Name] = true
	}
	assert.True(t, names["top"])
	assert.True(t, names["nested"])
}
