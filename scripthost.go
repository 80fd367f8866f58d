package webx

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

// ScriptHost is a per-module embedded script engine instance wrapping a
// goja.Runtime. A goja.Runtime is not safe for concurrent use; a host is
// never touched except by the runtime actor goroutine that owns it.
type ScriptHost struct {
	vm          *goja.Runtime
	projectRoot string
}

// NewScriptHost returns a fresh instance with the standard library already
// installed.
func NewScriptHost(projectRoot string, assets *assetCache) (*ScriptHost, error) {
	vm := goja.New()
	h := &ScriptHost{vm: vm, projectRoot: projectRoot}
	if err := installStdlib(vm, assets); err != nil {
		return nil, err
	}
	return h, nil
}

// Evaluate runs source under label (used by goja for stack traces) and
// returns the resulting value, or an error.
func (h *ScriptHost) Evaluate(label, source string) (goja.Value, error) {
	return h.vm.RunScript(label, source)
}

// InstallBindings publishes scope as global names in the engine. Values
// are plain strings, the only kind of value a route-map match ever binds.
func (h *ScriptHost) InstallBindings(scope map[string]string) error {
	for name, value := range scope {
		if err := h.vm.Set(name, value); err != nil {
			return fmt.Errorf("install binding %q: %w", name, err)
		}
	}
	return nil
}

// SetGlobal publishes a single arbitrary Go value as a global, used by the
// pipeline to bind a pre-handler's or the body's output under its declared
// name.
func (h *ScriptHost) SetGlobal(name string, value interface{}) error {
	return h.vm.Set(name, value)
}

// Call evaluates a handler-invocation expression, returning its value.
func (h *ScriptHost) Call(expression string) (goja.Value, error) {
	return h.vm.RunString(expression)
}

// ToString renders handle as a string and reports whether it is actually a
// native JS string, since that distinction decides HTML vs. JSON response
// formation.
func (h *ScriptHost) ToString(handle goja.Value) (string, bool) {
	if handle == nil || goja.IsUndefined(handle) || goja.IsNull(handle) {
		return "", false
	}
	if s, ok := handle.Export().(string); ok {
		return s, true
	}
	return handle.String(), false
}

// ToJSON serializes handle's exported value as JSON.
func (h *ScriptHost) ToJSON(handle goja.Value) (string, error) {
	if handle == nil || goja.IsUndefined(handle) {
		return "null", nil
	}
	exported := handle.Export()
	b, err := json.Marshal(exported)
	if err != nil {
		return "", fmt.Errorf("to-json: %w", err)
	}
	return string(b), nil
}
