// Package fs provides read-only, workspace-confined file access with a
// small content cache invalidated by filesystem notifications.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/wsbridge/internal/logger"
	"github.com/codefionn/wsbridge/internal/sandbox"
)

type cacheEntry struct {
	content   string
	timestamp time.Time
}

// WorkspaceFS reads files confined to a sandbox root. Successful reads
// are cached until the TTL expires or fsnotify reports a change in the
// containing directory.
type WorkspaceFS struct {
	root       *sandbox.Root
	cache      map[string]*cacheEntry
	cacheMu    sync.RWMutex
	cacheTTL   time.Duration
	maxEntries int
	watcher    *fsnotify.Watcher
	watched    map[string]bool
	stopWatch  chan struct{}
}

// NewWorkspaceFS creates a workspace filesystem. A zero cacheTTL
// disables caching entirely; a missing watcher degrades to TTL-only
// caching with a warning.
func NewWorkspaceFS(root *sandbox.Root, cacheTTL time.Duration, maxEntries int) *WorkspaceFS {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("failed to create file watcher, cache falls back to TTL only: %v", err)
		watcher = nil
	}

	wfs := &WorkspaceFS{
		root:       root,
		cache:      make(map[string]*cacheEntry),
		cacheTTL:   cacheTTL,
		maxEntries: maxEntries,
		watcher:    watcher,
		watched:    make(map[string]bool),
		stopWatch:  make(chan struct{}),
	}

	if watcher != nil {
		go wfs.watchFiles()
	}

	return wfs
}

// Root returns the sandbox root this filesystem is confined to.
func (wfs *WorkspaceFS) Root() *sandbox.Root {
	return wfs.root
}

// Close stops the watcher.
func (wfs *WorkspaceFS) Close() error {
	close(wfs.stopWatch)
	if wfs.watcher != nil {
		return wfs.watcher.Close()
	}
	return nil
}

// watchFiles invalidates cache entries when their files change
func (wfs *WorkspaceFS) watchFiles() {
	for {
		select {
		case <-wfs.stopWatch:
			return
		case event, ok := <-wfs.watcher.Events:
			if !ok {
				return
			}
			wfs.invalidate(event.Name)
		case err, ok := <-wfs.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("filesystem watcher error: %v", err)
		}
	}
}

// invalidate drops the cache entry for path and anything beneath it.
func (wfs *WorkspaceFS) invalidate(path string) {
	wfs.cacheMu.Lock()
	defer wfs.cacheMu.Unlock()
	delete(wfs.cache, path)
	prefix := path + string(os.PathSeparator)
	for cached := range wfs.cache {
		if strings.HasPrefix(cached, prefix) {
			delete(wfs.cache, cached)
		}
	}
}

// ClearCache removes every cached read.
func (wfs *WorkspaceFS) ClearCache() {
	wfs.cacheMu.Lock()
	defer wfs.cacheMu.Unlock()
	wfs.cache = make(map[string]*cacheEntry)
}

// ReadFile reads the full contents of a file as UTF-8 text. The path is
// the client-supplied one, relative to the workspace root; escapes
// return sandbox.ErrAccessDenied. Error messages never include the
// resolved path.
func (wfs *WorkspaceFS) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resolved, err := wfs.root.Resolve(path)
	if err != nil {
		return "", err
	}

	if content, ok := wfs.cacheGet(resolved); ok {
		logger.Debug("cache hit for %s", path)
		return content, nil
	}

	// Recompute the final path with a symlink-scoped join so a link
	// swapped in after the containment check cannot point outside the
	// root.
	rel, err := wfs.root.Rel(resolved)
	if err != nil {
		return "", err
	}
	safePath, err := securejoin.SecureJoin(wfs.root.Path(), rel)
	if err != nil {
		return "", sandbox.ErrAccessDenied
	}

	data, err := os.ReadFile(safePath)
	if err != nil {
		logger.Warn("read failed for %s: %v", path, err)
		switch {
		case os.IsNotExist(err):
			return "", fmt.Errorf("File not found: %s", path)
		case os.IsPermission(err):
			return "", fmt.Errorf("Permission denied: %s", path)
		default:
			return "", fmt.Errorf("Failed to read file: %s", path)
		}
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("File is not valid UTF-8: %s", path)
	}

	content := string(data)
	wfs.cachePut(resolved, content)
	return content, nil
}

// Exists reports whether the resolved path exists on disk. Escapes
// return sandbox.ErrAccessDenied.
func (wfs *WorkspaceFS) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	resolved, err := wfs.root.Resolve(path)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(resolved); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("Failed to check file: %s", path)
	}
	return true, nil
}

func (wfs *WorkspaceFS) cacheGet(resolved string) (string, bool) {
	if wfs.cacheTTL <= 0 {
		return "", false
	}

	wfs.cacheMu.RLock()
	defer wfs.cacheMu.RUnlock()

	entry, ok := wfs.cache[resolved]
	if !ok || time.Since(entry.timestamp) > wfs.cacheTTL {
		return "", false
	}
	return entry.content, true
}

func (wfs *WorkspaceFS) cachePut(resolved, content string) {
	if wfs.cacheTTL <= 0 {
		return
	}

	wfs.cacheMu.Lock()
	if wfs.maxEntries > 0 && len(wfs.cache) >= wfs.maxEntries {
		wfs.evictOldestLocked()
	}
	wfs.cache[resolved] = &cacheEntry{content: content, timestamp: time.Now()}
	wfs.cacheMu.Unlock()

	wfs.watchDir(filepath.Dir(resolved))
}

// evictOldestLocked removes the stalest entry. Caller holds cacheMu.
func (wfs *WorkspaceFS) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range wfs.cache {
		if oldestKey == "" || entry.timestamp.Before(oldest) {
			oldestKey = key
			oldest = entry.timestamp
		}
	}
	if oldestKey != "" {
		delete(wfs.cache, oldestKey)
	}
}

// watchDir registers a directory with the watcher once.
func (wfs *WorkspaceFS) watchDir(dir string) {
	if wfs.watcher == nil {
		return
	}

	wfs.cacheMu.Lock()
	defer wfs.cacheMu.Unlock()
	if wfs.watched[dir] {
		return
	}
	if err := wfs.watcher.Add(dir); err != nil {
		logger.Warn("failed to watch %s: %v", dir, err)
		return
	}
	wfs.watched[dir] = true
}
