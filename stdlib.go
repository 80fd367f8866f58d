package webx

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/aofei/mimesniffer"
	"github.com/cespare/xxhash/v2"
	"github.com/dop251/goja"
	"github.com/fsnotify/fsnotify"
)

// installStdlib publishes the script engine's standard library. The only
// intrinsic is `static(relative-path)`, which reads a file from the
// project root and returns its bytes as a string.
func installStdlib(vm *goja.Runtime, assets *assetCache) error {
	return vm.Set("static", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) != 1 {
			panic(vm.NewTypeError("static: expected exactly 1 argument"))
		}
		relPath, ok := call.Argument(0).Export().(string)
		if !ok {
			panic(vm.NewTypeError("static: argument must be a string"))
		}
		data, _, err := assets.Get(relPath)
		if err != nil {
			panic(vm.ToValue(err.Error()))
		}
		return vm.ToValue(string(data))
	})
}

// assetCache memoizes file bytes read from the project root by the
// `static()` intrinsic, keyed by an xxhash of the relative path, backed by
// a fastcache.Cache, and invalidated by an fsnotify watcher on the project
// root.
type assetCache struct {
	root    string
	cache   *fastcache.Cache
	watcher *fsnotify.Watcher
	once    sync.Once
}

// newAssetCache creates a cache rooted at root. Watching is best-effort:
// if the OS watcher can't be created, the cache still works, it just never
// invalidates stale entries until process restart.
func newAssetCache(root string, logger *Logger) *assetCache {
	c := &assetCache{
		root:  root,
		cache: fastcache.New(32 * 1024 * 1024),
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("", 0, "static asset cache: watcher unavailable: %v", err)
		return c
	}
	if err := w.Add(root); err != nil {
		logger.Warnf("", 0, "static asset cache: cannot watch %s: %v", root, err)
		w.Close()
		return c
	}
	c.watcher = w
	go c.watchLoop(logger)
	return c
}

func cacheKey(relPath string) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], xxhash.Sum64String(relPath))
	return buf[:]
}

// Get returns the bytes of relPath (relative to the project root) and a
// sniffed MIME type, serving from cache when possible.
func (c *assetCache) Get(relPath string) ([]byte, string, error) {
	key := cacheKey(relPath)
	if v, ok := c.cache.HasGet(nil, key); ok {
		return v, mimesniffer.Sniff(v), nil
	}

	full := filepath.Join(c.root, filepath.Clean("/"+relPath))
	if !strings.HasPrefix(full, filepath.Clean(c.root)+string(filepath.Separator)) &&
		full != filepath.Clean(c.root) {
		return nil, "", fmt.Errorf("static: path escapes project root: %s", relPath)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("static: %w", err)
	}

	c.cache.Set(key, data)
	return data, mimesniffer.Sniff(data), nil
}

// watchLoop invalidates a cached entry when its backing file changes. Only
// the project root directory itself is watched, so this covers files
// directly in the root; entries for files in subdirectories are not
// invalidated.
func (c *assetCache) watchLoop(logger *Logger) {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(c.root, event.Name)
			if err != nil {
				continue
			}
			c.cache.Del(cacheKey(rel))
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logger.Errorf("", 0, "static asset watcher error: %v", err)
		}
	}
}

// Close releases the underlying OS watcher, if any.
func (c *assetCache) Close() {
	c.once.Do(func() {
		if c.watcher != nil {
			c.watcher.Close()
		}
	})
}
