package webx

import "sort"

// RuntimeRoute is a route bound into the compiled route map: its full
// url-path, the owning module, and the AST node the pipeline executes.
type RuntimeRoute struct {
	ModulePath string
	Path       *UrlPath
	Route      *Route
}

// RouteMap is the compiled Method -> (UrlPath -> RuntimeRoute) index.
// Candidates for each method are kept sorted by descending segment count
// so Resolve can scan most-specific-first.
type RouteMap struct {
	byMethod map[string][]*RuntimeRoute
}

// BuildRouteMap compiles the analyzer's flat route table into a RouteMap.
// The map is rebuilt wholesale on every module-set change rather than
// patched in place.
func BuildRouteMap(result *AnalysisResult) *RouteMap {
	rm := &RouteMap{byMethod: map[string][]*RuntimeRoute{}}
	for _, fr := range result.Routes {
		rr := &RuntimeRoute{ModulePath: fr.ModulePath, Path: fr.Path, Route: fr.Route}
		rm.byMethod[fr.Route.Method] = append(rm.byMethod[fr.Route.Method], rr)
	}
	for method, list := range rm.byMethod {
		sorted := make([]*RuntimeRoute, len(list))
		copy(sorted, list)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Path.SegmentCount() > sorted[j].Path.SegmentCount()
		})
		rm.byMethod[method] = sorted
	}
	return rm
}

// ResolvedRoute is the outcome of a successful Resolve call: the matched
// pattern, the parameter/regex bindings it produced, and the route to
// execute.
type ResolvedRoute struct {
	MatchedPath *UrlPath
	Bindings    map[string]string
	Route       *RuntimeRoute
}

// Resolve finds the best route for a request method and URI path. A
// perfect match (pattern length equals token count, every segment matches)
// short-circuits; a partial match (pattern has exactly one extra trailing
// segment, every preceding segment matches) is retained and returned only
// if no perfect match turns up.
func (rm *RouteMap) Resolve(method, uriPath string) (*ResolvedRoute, bool) {
	candidates := rm.byMethod[method]
	if len(candidates) == 0 {
		return nil, false
	}

	tokens := tokenizeURIPath(uriPath)

	var bestPartial *ResolvedRoute
	for _, cand := range candidates {
		segs := cand.Path.Segments
		switch {
		case len(segs) == len(tokens):
			if bindings, ok := matchSegments(segs, tokens); ok {
				return &ResolvedRoute{MatchedPath: cand.Path, Bindings: bindings, Route: cand}, true
			}
		case len(segs) == len(tokens)+1 && bestPartial == nil:
			if bindings, ok := matchSegments(segs[:len(tokens)], tokens); ok {
				bestPartial = &ResolvedRoute{MatchedPath: cand.Path, Bindings: bindings, Route: cand}
			}
		}
	}

	if bestPartial != nil {
		return bestPartial, true
	}
	return nil, false
}

// tokenizeURIPath splits a request path on '/', skipping empty segments,
// so both "/" and "" tokenize to zero segments and match an empty UrlPath.
func tokenizeURIPath(uriPath string) []string {
	var tokens []string
	start := 0
	for i := 0; i <= len(uriPath); i++ {
		if i == len(uriPath) || uriPath[i] == '/' {
			if i > start {
				tokens = append(tokens, uriPath[start:i])
			}
			start = i + 1
		}
	}
	return tokens
}

// matchSegments matches segs zip-wise against tokens. len(segs) must equal
// len(tokens).
func matchSegments(segs []Segment, tokens []string) (map[string]string, bool) {
	bindings := map[string]string{}
	for i, seg := range segs {
		tok := tokens[i]
		switch seg.Kind {
		case LiteralSegment:
			if seg.Literal != tok {
				return nil, false
			}
		case ParameterSegment:
			bindings[seg.Name] = tok
		case RegexSegment:
			if seg.Pattern == nil || !seg.Pattern.MatchString(tok) {
				return nil, false
			}
			bindings[seg.Name] = tok
		}
	}
	return bindings, true
}
