// Package sandbox confines all client-supplied paths to a single
// workspace root. Containment is checked on the canonical form of the
// resolved path, never on the raw string, so `..` segments, absolute
// paths, and symlinked escapes are all rejected the same way.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrAccessDenied is returned for any path that would escape the
// workspace root. Callers must not reveal the resolved path alongside
// this error.
var ErrAccessDenied = errors.New("access denied")

// Root is the canonicalized workspace root. Immutable after creation
// and safe to share across sessions without locking.
type Root struct {
	path string
}

// NewRoot canonicalizes dir (absolute, symlinks resolved) and verifies
// it is an existing directory.
func NewRoot(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root %q: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize workspace root %q: %w", dir, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat workspace root %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %q is not a directory", dir)
	}
	return &Root{path: resolved}, nil
}

// Path returns the canonical workspace root.
func (r *Root) Path() string {
	return r.path
}

// Resolve joins a client-supplied path onto the root, canonicalizes the
// result, and accepts it only if it is the root itself or a descendant
// of it. The returned path is absolute and symlink-free as far as the
// filesystem allows; the path itself need not exist.
func (r *Root) Resolve(path string) (string, error) {
	if path == "" {
		return "", ErrAccessDenied
	}

	joined := path
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(r.path, joined)
	}
	joined = filepath.Clean(joined)

	resolved, err := r.canonicalize(joined)
	if err != nil {
		return "", ErrAccessDenied
	}
	if !r.contains(resolved) {
		return "", ErrAccessDenied
	}
	return resolved, nil
}

// Rel returns the root-relative form of a path previously returned by
// Resolve.
func (r *Root) Rel(resolved string) (string, error) {
	if !r.contains(resolved) {
		return "", ErrAccessDenied
	}
	if resolved == r.path {
		return ".", nil
	}
	return strings.TrimPrefix(resolved, r.path+string(os.PathSeparator)), nil
}

// canonicalize resolves symlinks in path. For paths that do not exist
// yet, the deepest existing ancestor is canonicalized and the remainder
// re-attached, so a dangling name inside the root still resolves while
// a symlinked escape does not.
func (r *Root) canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	parent := filepath.Dir(path)
	if parent == path {
		// Filesystem root does not exist; give up.
		return "", err
	}
	resolvedParent, perr := r.canonicalize(parent)
	if perr != nil {
		return "", perr
	}
	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

// contains reports whether path equals the root or lives under it.
// Both sides are canonical here, so the prefix check is sound.
func (r *Root) contains(path string) bool {
	return path == r.path || strings.HasPrefix(path, r.path+string(os.PathSeparator))
}
