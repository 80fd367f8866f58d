package webx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildRouteMap(t *testing.T, mods ...*Module) *RouteMap {
	t.Helper()
	result, err := Analyze(mods)
	require.Nil(t, err)
	return BuildRouteMap(result)
}

func TestResolvePerfectMatchBindsParams(t *testing.T) {
	mod := mustParse(t, "a.webx", "get /todo/(user_id: Int)/list {\n  \"x\"\n}\n")
	rm := buildRouteMap(t, mod)

	resolved, ok := rm.Resolve("GET", "/todo/42/list")
	require.True(t, ok)
	assert.Equal(t, "42", resolved.Bindings["user_id"])
	assert.Equal(t, resolved.Route.Path.ParamNames(), map[string]bool{"user_id": true})
}

func TestResolveEmptyPathMatchesSlash(t *testing.T) {
	mod := mustParse(t, "a.webx", "get / {\n  \"root\"\n}\n")
	rm := buildRouteMap(t, mod)

	resolved, ok := rm.Resolve("GET", "/")
	require.True(t, ok)
	assert.Equal(t, "/", resolved.MatchedPath.String())
}

func TestResolveNoMatchReturnsFalse(t *testing.T) {
	mod := mustParse(t, "a.webx", "get /a {\n  \"a\"\n}\n")
	rm := buildRouteMap(t, mod)

	_, ok := rm.Resolve("GET", "/nope")
	assert.False(t, ok)
}

func TestResolveWrongMethodIsNoMatch(t *testing.T) {
	mod := mustParse(t, "a.webx", "get /a {\n  \"a\"\n}\n")
	rm := buildRouteMap(t, mod)

	_, ok := rm.Resolve("POST", "/a")
	assert.False(t, ok)
}

// A pattern with exactly one more segment than the request, with every
// preceding segment matching, is a partial match.
func TestResolvePartialMatchOneTrailingExtraSegment(t *testing.T) {
	mod := mustParse(t, "a.webx", "get /a/b {\n  \"ab\"\n}\n")
	rm := buildRouteMap(t, mod)

	resolved, ok := rm.Resolve("GET", "/a")
	require.True(t, ok)
	assert.Equal(t, "/a/b", resolved.MatchedPath.String())
}

// Two or more extra trailing segments never match.
func TestResolveTwoExtraSegmentsNeverMatches(t *testing.T) {
	mod := mustParse(t, "a.webx", "get /a/b/c {\n  \"abc\"\n}\n")
	rm := buildRouteMap(t, mod)

	_, ok := rm.Resolve("GET", "/a")
	assert.False(t, ok)
}

// A perfect match for a shorter pattern must still win over an
// already-recorded partial match for a longer one, since a perfect match
// short-circuits but a partial keeps the scan going.
func TestResolvePerfectMatchWinsOverEarlierPartial(t *testing.T) {
	longer := mustParse(t, "a.webx", "get /a/b {\n  \"longer\"\n}\n")
	shorter := mustParse(t, "b.webx", "get /a {\n  \"shorter\"\n}\n")
	rm := buildRouteMap(t, longer, shorter)

	resolved, ok := rm.Resolve("GET", "/a")
	require.True(t, ok)
	assert.Equal(t, "/a", resolved.MatchedPath.String())
}

func TestResolveIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	mod := mustParse(t, "a.webx", "get /users/(id: Int) {\n  \"u\"\n}\n")
	rm := buildRouteMap(t, mod)

	first, ok1 := rm.Resolve("GET", "/users/7")
	second, ok2 := rm.Resolve("GET", "/users/7")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first.Bindings, second.Bindings)
	assert.Equal(t, first.MatchedPath.String(), second.MatchedPath.String())
}
