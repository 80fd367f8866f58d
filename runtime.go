package webx

import (
	"sync/atomic"
	"time"
)

// RunMode is the run-mode information the runtime receives from the CLI.
type RunMode struct {
	Dev        bool
	DebugLevel int
}

// ShutdownPollInterval is the runtime actor's mailbox-receive timeout: 1s
// in development, 30s in production.
func (m RunMode) ShutdownPollInterval() time.Duration {
	if m.Dev {
		return time.Second
	}
	return 30 * time.Second
}

// Message is one of the runtime actor's mailbox message kinds.
type Message interface{ isMessage() }

// NewModuleMsg adds a module, creating its script host.
type NewModuleMsg struct{ Module *Module }

// SwapModuleMsg atomically replaces a module of the same path, preserving
// every other module's host while discarding only this one's in-script
// state.
type SwapModuleMsg struct{ Module *Module }

// RemoveModuleMsg drops a module and its host.
type RemoveModuleMsg struct{ Path string }

// ExecuteRouteMsg asks the actor to resolve and run one request's route
// pipeline, replying on Reply exactly once.
type ExecuteRouteMsg struct {
	Request  *Request
	PeerAddr string
	Reply    chan *HTTPResponse
}

func (NewModuleMsg) isMessage()    {}
func (SwapModuleMsg) isMessage()   {}
func (RemoveModuleMsg) isMessage() {}
func (ExecuteRouteMsg) isMessage() {}

// Runtime is the actor owning the module set, the compiled route map, and
// every module's script host. Every field below is touched only by the
// goroutine running Run; all external interaction is through Send.
type Runtime struct {
	mode        RunMode
	projectRoot string
	logger      *Logger
	assets      *assetCache

	modules map[string]*Module
	order   []string
	hosts   map[string]*ScriptHost
	routes  *RouteMap

	mailbox chan Message
}

// NewRuntime constructs an idle runtime actor; call Run to start serving
// its mailbox.
func NewRuntime(mode RunMode, projectRoot string, logger *Logger) *Runtime {
	return &Runtime{
		mode:        mode,
		projectRoot: projectRoot,
		logger:      logger,
		assets:      newAssetCache(projectRoot, logger),
		modules:     map[string]*Module{},
		hosts:       map[string]*ScriptHost{},
		routes:      &RouteMap{byMethod: map[string][]*RuntimeRoute{}},
		mailbox:     make(chan Message, 256),
	}
}

// Send enqueues a message. The mailbox is the only cross-goroutine mutable
// state; everything else is owned by the actor.
func (rt *Runtime) Send(msg Message) { rt.mailbox <- msg }

// Run processes the mailbox until shutdown reports true, checked at every
// timeout boundary.
func (rt *Runtime) Run(shutdown *atomic.Bool) {
	interval := rt.mode.ShutdownPollInterval()
	for {
		select {
		case msg := <-rt.mailbox:
			rt.handle(msg)
		case <-time.After(interval):
			if shutdown.Load() {
				return
			}
		}
	}
}

func (rt *Runtime) handle(msg Message) {
	switch m := msg.(type) {
	case NewModuleMsg:
		rt.doNew(m.Module)
	case SwapModuleMsg:
		rt.doSwap(m.Module)
	case RemoveModuleMsg:
		rt.doRemove(m.Path)
	case ExecuteRouteMsg:
		rt.doExecuteRoute(m)
	}
}

func (rt *Runtime) doNew(mod *Module) {
	if _, exists := rt.modules[mod.Path]; !exists {
		rt.order = append(rt.order, mod.Path)
	}
	rt.modules[mod.Path] = mod

	host, err := NewScriptHost(rt.projectRoot, rt.assets)
	if err != nil {
		rt.logger.Errorf(mod.Path, 0, "script host init failed: %v", err)
		return
	}
	rt.hosts[mod.Path] = host

	if mod.Root.GlobalScript != "" {
		if _, err := host.Evaluate(mod.Path, mod.Root.GlobalScript); err != nil {
			rt.logger.Errorf(mod.Path, 0, "global script error: %v", err)
		}
	}

	for _, h := range collectHandlers(mod.Root) {
		if _, err := host.Evaluate(mod.Path, handlerFunctionSource(h)); err != nil {
			rt.logger.Errorf(mod.Path, 0, "handler %q definition error: %v", h.Name, err)
		}
	}

	rt.recompile()
}

// doSwap discards the host of any prior module at the same path and then
// treats the incoming module as new; doNew overwrites the prior module in
// place, so the path keeps its position in the load order and appears in it
// only once. A swap of an absent path is just an add.
func (rt *Runtime) doSwap(mod *Module) {
	delete(rt.hosts, mod.Path)
	rt.doNew(mod)
}

func (rt *Runtime) doRemove(path string) {
	if _, ok := rt.modules[path]; !ok {
		return
	}
	delete(rt.modules, path)
	delete(rt.hosts, path)
	for i, p := range rt.order {
		if p == path {
			rt.order = append(rt.order[:i], rt.order[i+1:]...)
			break
		}
	}
	rt.recompile()
}

// recompile re-runs the analyzer over the current module set. On failure
// the old route map is kept and the system stays serving.
func (rt *Runtime) recompile() {
	mods := make([]*Module, 0, len(rt.order))
	for _, p := range rt.order {
		if m, ok := rt.modules[p]; ok {
			mods = append(mods, m)
		}
	}

	result, err := Analyze(mods)
	if err != nil {
		rt.logger.Errorf("", 0, "recompile failed, keeping previous route map: %v", err)
		return
	}
	rt.routes = BuildRouteMap(result)
}

func (rt *Runtime) doExecuteRoute(msg ExecuteRouteMsg) {
	resolved, ok := rt.routes.Resolve(msg.Request.Method, msg.Request.URL.Path)
	if !ok {
		if rt.mode.DebugLevel >= 4 {
			rt.logger.Debugj(map[string]interface{}{
				"method": msg.Request.Method,
				"path":   msg.Request.URL.Path,
				"result": "no-match",
			})
		}
		msg.Reply <- noMatchResponse(msg.Request.Method, msg.Request.URL.Path, rt.mode)
		return
	}

	host, ok := rt.hosts[resolved.Route.ModulePath]
	if !ok {
		// A host exists for every live module, so a resolved route
		// should always find one.
		rt.logger.Errorf(resolved.Route.ModulePath, 0, "exec-route: script host missing for live module")
		msg.Reply <- errorResponseForMissingHost(rt.mode)
		return
	}

	if rt.mode.DebugLevel >= 4 {
		rt.logger.Debugj(map[string]interface{}{
			"method":   msg.Request.Method,
			"path":     msg.Request.URL.Path,
			"matched":  resolved.MatchedPath.String(),
			"bindings": resolved.Bindings,
		})
	}

	msg.Reply <- runPipeline(host, resolved, msg.Request, rt.mode, rt.logger)
}
