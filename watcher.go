package webx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher is a debounced source-tree observer, development-mode only. It
// re-parses changed module files and feeds Swap/Remove messages to the
// runtime.
type Watcher struct {
	root   string
	rt     *Runtime
	logger *Logger
	fsw    *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher subscribes recursively to root.
func NewWatcher(root string, rt *Runtime, logger *Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs, err := walkDirs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return &Watcher{
		root:    root,
		rt:      rt,
		logger:  logger,
		fsw:     fsw,
		pending: map[string]*time.Timer{},
	}, nil
}

// walkDirs returns root and every subdirectory beneath it, so each can be
// added to the fsnotify watcher individually (fsnotify does not recurse).
func walkDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

// Run drains watcher events until shutdown reports true, polled at 1s
// cadence.
func (w *Watcher) Run(shutdown *atomic.Bool) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer w.fsw.Close()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.schedule(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("", 0, "watcher error: %v", err)
		case <-ticker.C:
			if shutdown.Load() {
				return
			}
		}
	}
}

// schedule coalesces repeated events for the same (kind, path) inside a
// 100ms window, so an editor's burst of writes triggers one reload.
func (w *Watcher) schedule(event fsnotify.Event) {
	key := fmt.Sprintf("%d:%s", event.Op, event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[key]; ok {
		t.Stop()
	}
	w.pending[key] = time.AfterFunc(100*time.Millisecond, func() {
		w.mu.Lock()
		delete(w.pending, key)
		w.mu.Unlock()
		w.dispatch(event)
	})
}

func (w *Watcher) dispatch(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0:
		if isModuleFile(event.Name) {
			w.rt.Send(RemoveModuleMsg{Path: w.modulePath(event.Name)})
		}
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.handleCreateOrWrite(event.Name)
	}
}

// modulePath rewrites an fsnotify-reported path (prefixed with w.root, the
// same string the watcher was constructed with) to be relative to w.root,
// matching the keys modules are loaded under at startup. Without this, a
// Swap/Remove message's Path would never match the module's key in
// Runtime.modules and hot-swap would add a second entry instead of
// replacing the watched one.
func (w *Watcher) modulePath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

func (w *Watcher) handleCreateOrWrite(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return // removed again before we got to it
	}
	if info.IsDir() {
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warnf(path, 0, "cannot watch new directory: %v", err)
		}
		return
	}
	if !isModuleFile(path) {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warnf(path, 0, "reload read failed: %v", err)
		return
	}

	mod, perr := Parse(w.modulePath(path), string(content))
	if perr != nil {
		w.logger.Warnf(path, perr.Pos.Line, "reload parse failed: %v", perr)
		return
	}
	w.rt.Send(SwapModuleMsg{Module: mod})
}

func isModuleFile(path string) bool {
	return strings.HasSuffix(path, ".webx") || strings.HasSuffix(path, ".wx")
}
