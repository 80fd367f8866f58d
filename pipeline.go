package webx

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/webx-run/webx/internal/werrors"
)

// runPipeline executes a resolved route's pre-handlers, body, and
// post-handlers in order and forms the response from the last value
// produced.
func runPipeline(host *ScriptHost, resolved *ResolvedRoute, req *Request, mode RunMode, logger *Logger) *HTTPResponse {
	route := resolved.Route.Route
	modPath := resolved.Route.ModulePath

	if err := host.InstallBindings(resolved.Bindings); err != nil {
		return errorResponse(werrors.New(werrors.ExecRoute, "install bindings: %v", err), mode)
	}

	var last goja.Value
	haveValue := false

	for _, call := range route.Pre {
		val, err := invokeHandlerCall(host, call)
		if err != nil {
			logger.Errorf(modPath, route.Location.Line, "handler-call error in %q: %v", call.Name, err)
			return errorResponse(werrors.New(werrors.HandlerCall, "%v", err), mode)
		}
		if call.Output != "" {
			if err := host.SetGlobal(call.Output, val.Export()); err != nil {
				return errorResponse(werrors.New(werrors.ExecRoute, "bind output %q: %v", call.Output, err), mode)
			}
		}
		last, haveValue = val, true
	}

	if route.Body != nil {
		val, err := host.Evaluate(modPath, bodyExpression(route.Body))
		if err != nil {
			logger.Errorf(modPath, route.Location.Line, "route body error: %v", err)
			return errorResponse(werrors.New(werrors.HandlerCall, "%v", err), mode)
		}
		if err := host.SetGlobal("out", val.Export()); err != nil {
			return errorResponse(werrors.New(werrors.ExecRoute, "bind out: %v", err), mode)
		}
		last, haveValue = val, true
	}

	for _, call := range route.Post {
		val, err := invokeHandlerCall(host, call)
		if err != nil {
			logger.Errorf(modPath, route.Location.Line, "handler-call error in %q: %v", call.Name, err)
			return errorResponse(werrors.New(werrors.HandlerCall, "%v", err), mode)
		}
		if call.Output != "" {
			if err := host.SetGlobal(call.Output, val.Export()); err != nil {
				return errorResponse(werrors.New(werrors.ExecRoute, "bind output %q: %v", call.Output, err), mode)
			}
		}
		last, haveValue = val, true
	}

	if !haveValue {
		return errorResponse(werrors.New(werrors.RouteEmpty,
			"route at %s has no pre-handlers, body, or post-handlers", formatLocation(route.Location)), mode)
	}

	return formResponse(host, last, req, mode)
}

// invokeHandlerCall builds the call expression text and evaluates it.
// Identifier-literal arguments are not resolved here: they are bare
// identifiers in the generated expression, so the engine resolves them
// against whatever is currently a global (request bindings, or a prior
// pre-handler's output) at the moment the expression runs.
func invokeHandlerCall(host *ScriptHost, call HandlerCall) (goja.Value, error) {
	var b strings.Builder
	b.WriteString(call.Name)
	b.WriteByte('(')
	for i, arg := range call.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.String())
	}
	b.WriteByte(')')
	return host.Call(b.String())
}
