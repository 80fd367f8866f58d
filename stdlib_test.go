package webx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// static(relative-path) reads a file from the project root and returns its
// bytes as a string.
func TestStaticIntrinsicReadsProjectRootFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi there"), 0o644))

	logger := NewLogger()
	assets := newAssetCache(root, logger)
	host, err := NewScriptHost(root, assets)
	require.NoError(t, err)

	v, err := host.Evaluate("test", `static("hello.txt")`)
	require.NoError(t, err)
	assert.Equal(t, "hi there", v.Export())
}

// A missing file or a wrong argument raises a script error.
func TestStaticIntrinsicMissingFileRaisesError(t *testing.T) {
	root := t.TempDir()
	logger := NewLogger()
	assets := newAssetCache(root, logger)
	host, err := NewScriptHost(root, assets)
	require.NoError(t, err)

	_, err = host.Evaluate("test", `static("does-not-exist.txt")`)
	assert.Error(t, err)
}

func TestStaticIntrinsicWrongArgumentTypeRaisesError(t *testing.T) {
	root := t.TempDir()
	logger := NewLogger()
	assets := newAssetCache(root, logger)
	host, err := NewScriptHost(root, assets)
	require.NoError(t, err)

	_, err = host.Evaluate("test", `static(42)`)
	assert.Error(t, err)
}

func TestStaticIntrinsicWrongArgumentCountRaisesError(t *testing.T) {
	root := t.TempDir()
	logger := NewLogger()
	assets := newAssetCache(root, logger)
	host, err := NewScriptHost(root, assets)
	require.NoError(t, err)

	_, err = host.Evaluate("test", `static()`)
	assert.Error(t, err)
}

// A relative path containing ".." segments is cleaned against a leading
// "/" before being joined to the project root, so it can never resolve
// outside of it; since nothing exists there, the read fails rather than
// silently serving an unintended file.
func TestAssetCacheContainsPathTraversal(t *testing.T) {
	root := t.TempDir()
	logger := NewLogger()
	assets := newAssetCache(root, logger)

	_, _, err := assets.Get("../../etc/passwd")
	assert.Error(t, err)
}

// A second Get for the same path is served from the fastcache-backed
// cache rather than re-reading the file. The file watcher is closed before
// the rewrite, since its write event would otherwise invalidate the entry.
func TestAssetCacheServesRepeatedReadFromCache(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v1"), 0o644))

	logger := NewLogger()
	assets := newAssetCache(root, logger)

	first, _, err := assets.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(first))

	assets.Close()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v2"), 0o644))
	second, _, err := assets.Get("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(second), "cached bytes should be served until invalidated")
}
