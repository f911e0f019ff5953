package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newTestRoot(t *testing.T) (*Root, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := NewRoot(dir)
	if err != nil {
		t.Fatalf("NewRoot returned error: %v", err)
	}
	return root, root.Path()
}

func TestNewRootRejectsMissingDir(t *testing.T) {
	if _, err := NewRoot(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("NewRoot should fail for a missing directory")
	}
}

func TestNewRootRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if _, err := NewRoot(file); err == nil {
		t.Fatal("NewRoot should fail for a regular file")
	}
}

func TestResolveInsideRoot(t *testing.T) {
	root, dir := newTestRoot(t)

	sub := filepath.Join(dir, "pkg")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cases := map[string]string{
		"pkg/a.txt":       filepath.Join(dir, "pkg", "a.txt"),
		"./pkg/a.txt":     filepath.Join(dir, "pkg", "a.txt"),
		"pkg/../pkg/a.txt": filepath.Join(dir, "pkg", "a.txt"),
		"missing.txt":     filepath.Join(dir, "missing.txt"),
		"pkg/missing.txt": filepath.Join(dir, "pkg", "missing.txt"),
		".":               dir,
	}
	for input, want := range cases {
		got, err := root.Resolve(input)
		if err != nil {
			t.Errorf("Resolve(%q) returned error: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("Resolve(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestResolveDeniesEscapes(t *testing.T) {
	root, _ := newTestRoot(t)

	escapes := []string{
		"",
		"..",
		"../x",
		"../../etc/passwd",
		"pkg/../../outside.txt",
		"/etc/passwd",
	}
	for _, input := range escapes {
		_, err := root.Resolve(input)
		if !errors.Is(err, ErrAccessDenied) {
			t.Errorf("Resolve(%q) = %v, want ErrAccessDenied", input, err)
		}
	}
}

func TestResolveDeniesSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink semantics differ on windows")
	}

	root, dir := newTestRoot(t)

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0644); err != nil {
		t.Fatalf("failed to write secret file: %v", err)
	}

	// Symlink inside the workspace pointing out of it.
	if err := os.Symlink(secret, filepath.Join(dir, "link.txt")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}
	if _, err := root.Resolve("link.txt"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Resolve(link.txt) = %v, want ErrAccessDenied", err)
	}

	// Symlinked directory escape with a dangling leaf.
	if err := os.Symlink(outside, filepath.Join(dir, "outdir")); err != nil {
		t.Fatalf("failed to create dir symlink: %v", err)
	}
	if _, err := root.Resolve("outdir/anything.txt"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Resolve(outdir/anything.txt) = %v, want ErrAccessDenied", err)
	}
}

func TestResolveAllowsSymlinkInsideRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink semantics differ on windows")
	}

	root, dir := newTestRoot(t)
	target := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(target, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write target: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(dir, "alias.txt")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	got, err := root.Resolve("alias.txt")
	if err != nil {
		t.Fatalf("Resolve(alias.txt) returned error: %v", err)
	}
	if got != target {
		t.Errorf("Resolve(alias.txt) = %q, want %q", got, target)
	}
}

func TestRel(t *testing.T) {
	root, dir := newTestRoot(t)

	rel, err := root.Rel(filepath.Join(dir, "a", "b.txt"))
	if err != nil {
		t.Fatalf("Rel returned error: %v", err)
	}
	if rel != filepath.Join("a", "b.txt") {
		t.Errorf("Rel = %q, want %q", rel, filepath.Join("a", "b.txt"))
	}

	if rel, err := root.Rel(dir); err != nil || rel != "." {
		t.Errorf("Rel(root) = %q, %v, want \".\", nil", rel, err)
	}

	if _, err := root.Rel("/somewhere/else"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Rel outside root = %v, want ErrAccessDenied", err)
	}
}
