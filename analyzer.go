package webx

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/webx-run/webx/internal/werrors"
)

// FlatRoute is one route after scope-prefix flattening: its full url-path,
// the module it belongs to, and the Route node itself.
type FlatRoute struct {
	ModulePath string
	Path       *UrlPath
	Route      *Route
}

// AnalysisResult is the analyzer's output on success: the complete,
// validated, flattened route table.
type AnalysisResult struct {
	Routes []FlatRoute
}

// Analyze runs three checks over the full set of parsed modules, in order,
// each fatal on failure: include-cycle detection, route flattening with
// duplicate rejection, and method/body-shape validation.
func Analyze(modules []*Module) (*AnalysisResult, error) {
	if err := checkIncludeCycles(modules); err != nil {
		return nil, err
	}

	flat, err := flattenRoutes(modules)
	if err != nil {
		return nil, err
	}

	if err := checkMethodBody(flat); err != nil {
		return nil, err
	}

	return &AnalysisResult{Routes: flat}, nil
}

// resolveIncludePath resolves an include path written in module modPath
// relative to that module's own directory.
func resolveIncludePath(modPath, include string) string {
	if path.IsAbs(include) {
		return path.Clean(include)
	}
	return path.Clean(path.Join(path.Dir(modPath), include))
}

// checkIncludeCycles builds a directed graph with an edge from each
// include target to its source module. A node that appears both as a key
// (something includes it) and as a value (it includes something) is
// reported as a cycle participant.
func checkIncludeCycles(modules []*Module) error {
	graph := map[string][]string{} // target -> sources that include it
	var order []string
	seen := map[string]bool{}
	addTarget := func(target string) {
		if !seen[target] {
			seen[target] = true
			order = append(order, target)
		}
	}

	for _, mod := range modules {
		for _, inc := range mod.Root.Includes {
			target := resolveIncludePath(mod.Path, inc)
			graph[target] = append(graph[target], mod.Path)
			addTarget(target)
			addTarget(mod.Path)
		}
	}

	isValue := map[string]bool{}
	for _, sources := range graph {
		for _, s := range sources {
			isValue[s] = true
		}
	}

	var cycle []string
	for _, node := range order {
		if _, isKey := graph[node]; isKey && isValue[node] {
			cycle = append(cycle, node)
		}
	}

	if len(cycle) == 0 {
		return nil
	}
	sort.Strings(cycle)
	return werrors.New(werrors.CircularInclude,
		"circular include detected among modules: %s", strings.Join(cycle, ", "))
}

// flattenRoutes recursively descends each module's scope tree,
// concatenating url-path prefixes, and rejects any duplicate
// (Method, UrlPath) key.
func flattenRoutes(modules []*Module) ([]FlatRoute, error) {
	type routeKey struct {
		method string
		path   string
	}

	locations := map[routeKey][]Location{}
	var keyOrder []routeKey
	var flat []FlatRoute

	var walk func(mod *Module, scope *Scope, prefix *UrlPath)
	walk = func(mod *Module, scope *Scope, prefix *UrlPath) {
		for _, route := range scope.Routes {
			full := prefix.Combine(route.Path)
			key := routeKey{method: route.Method, path: full.Key()}
			if _, ok := locations[key]; !ok {
				keyOrder = append(keyOrder, key)
			}
			locations[key] = append(locations[key], route.Location)
			flat = append(flat, FlatRoute{ModulePath: mod.Path, Path: full, Route: route})
		}
		for _, nested := range scope.Scopes {
			walk(mod, nested, prefix.Combine(nested.UrlPathPrefix))
		}
	}

	for _, mod := range modules {
		walk(mod, mod.Root, mod.Root.UrlPathPrefix)
	}

	var dupMsgs []string
	for _, key := range keyOrder {
		locs := locations[key]
		if len(locs) <= 1 {
			continue
		}
		var where []string
		for _, l := range locs {
			where = append(where, formatLocation(l))
		}
		dupMsgs = append(dupMsgs, strings.Join(where, " and "))
	}
	if len(dupMsgs) > 0 {
		return nil, werrors.New(werrors.DuplicateRoute,
			"duplicate route declared at: %s", strings.Join(dupMsgs, "; "))
	}

	return flat, nil
}

func formatLocation(l Location) string {
	return l.Path + ":" + strconv.Itoa(l.Line)
}

// checkMethodBody applies the method-vs-body rule to every flattened
// route: GET and DELETE forbid a request-body shape, POST and PUT require
// one, other methods are unconstrained.
func checkMethodBody(flat []FlatRoute) error {
	var violations []string
	for _, fr := range flat {
		method := fr.Route.Method
		hasBody := fr.Route.BodyShape != nil
		switch {
		case ForbidsBody(method) && hasBody:
			violations = append(violations, formatLocation(fr.Route.Location)+
				": method "+method+" forbids a request-body shape")
		case RequiresBody(method) && !hasBody:
			violations = append(violations, formatLocation(fr.Route.Location)+
				": method "+method+" requires a request-body shape")
		}
	}
	if len(violations) > 0 {
		return werrors.New(werrors.InvalidRoute, "invalid route(s): %s", strings.Join(violations, "; "))
	}
	return nil
}
