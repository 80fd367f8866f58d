package webx

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routeMapKeys flattens a RouteMap to a comparable method -> sorted path
// keys view.
func routeMapKeys(rm *RouteMap) map[string][]string {
	out := map[string][]string{}
	for method, routes := range rm.byMethod {
		for _, r := range routes {
			out[method] = append(out[method], r.Path.Key())
		}
		sort.Strings(out[method])
	}
	return out
}

// After any sequence of New/Swap/Remove messages, the route map equals the
// one produced by loading the resulting module set from scratch.
func TestRouteMapAfterMutationsEqualsFromScratch(t *testing.T) {
	rt := newTestRuntime(t)

	a1 := mustParse(t, "a.webx", "get /a (one)\nget /a/extra (extra)\n")
	b := mustParse(t, "b.webx", "get /b (two)\n")
	rt.handle(NewModuleMsg{Module: a1})
	rt.handle(NewModuleMsg{Module: b})

	a2 := mustParse(t, "a.webx", "get /a (changed)\npost /a json(v: String) (posted)\n")
	rt.handle(SwapModuleMsg{Module: a2})
	rt.handle(RemoveModuleMsg{Path: "b.webx"})

	fresh, err := Analyze([]*Module{a2})
	require.Nil(t, err)

	assert.Equal(t, routeMapKeys(BuildRouteMap(fresh)), routeMapKeys(rt.routes))
}

// A module's script host exists iff the module is in the live set.
func TestRemoveDropsModuleHostAndRoutes(t *testing.T) {
	rt := newTestRuntime(t)
	mod := mustParse(t, "a.webx", "get /a (one)\n")
	rt.handle(NewModuleMsg{Module: mod})
	require.Contains(t, rt.hosts, "a.webx")

	rt.handle(RemoveModuleMsg{Path: "a.webx"})
	assert.NotContains(t, rt.hosts, "a.webx")
	assert.NotContains(t, rt.modules, "a.webx")

	_, ok := rt.routes.Resolve("GET", "/a")
	assert.False(t, ok)
}

// Swap on an absent path is equivalent to New.
func TestSwapOnAbsentPathBehavesLikeNew(t *testing.T) {
	rt := newTestRuntime(t)
	mod := mustParse(t, "a.webx", "get /a (one)\n")
	rt.handle(SwapModuleMsg{Module: mod})

	resp := executeRoute(t, rt, "GET", "/a")
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "one", string(resp.Body))
}

// A mutation that makes the set invalid keeps the old route map serving.
func TestRecompileFailureKeepsOldRouteMap(t *testing.T) {
	rt := newTestRuntime(t)
	a := mustParse(t, "a.webx", "get /x (a)\n")
	rt.handle(NewModuleMsg{Module: a})

	dup := mustParse(t, "b.webx", "get /x (b)\n")
	rt.handle(NewModuleMsg{Module: dup})

	resolved, ok := rt.routes.Resolve("GET", "/x")
	require.True(t, ok)
	assert.Equal(t, "a.webx", resolved.Route.ModulePath)
}
