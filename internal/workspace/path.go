// Package workspace guards and performs file writes inside the working
// directory.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for targets that are absolute, not in canonical
// form, or outside the working directory once symlinks are followed.
var ErrUnsafePath = errors.New("unsafe file path")

// Target is a file inside the working directory.
type Target struct {
	Root string // absolute working directory
	Name string // canonical relative name
	Path string // Root joined with Name
}

// Resolve validates requested against root. The returned Target's Name is the
// normalized form even on error, so callers can report what was checked.
//
// requested must already be canonical: "notes/today.md" is accepted while
// "./notes/today.md", "a/../b" and "../x" are rejected.
func Resolve(root, requested string) (Target, error) {
	safe := stripParentPrefix(filepath.Clean(requested))
	t := Target{Name: safe}

	if requested == "" || safe == "." || safe != requested || filepath.IsAbs(safe) {
		return t, fmt.Errorf("%w: %s", ErrUnsafePath, safe)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return t, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	full := filepath.Join(absRoot, safe)

	if !within(absRoot, full) {
		return t, fmt.Errorf("%w: %s", ErrUnsafePath, safe)
	}

	if err := checkLinks(absRoot, full); err != nil {
		return t, fmt.Errorf("%w: %s: %w", ErrUnsafePath, safe, err)
	}

	t.Root = absRoot
	t.Path = full
	return t, nil
}

// checkLinks resolves symlinks on the deepest existing part of full and
// rejects it when that lands outside root. A dangling link is rejected since
// writing through it would create its target.
func checkLinks(root, full string) error {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	p := full
	for {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			if !within(realRoot, resolved) {
				return fmt.Errorf("resolves to %s", resolved)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if _, lerr := os.Lstat(p); lerr == nil {
			return fmt.Errorf("dangling link %s", p)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return nil
		}
		p = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// stripParentPrefix removes any leading "../" segments.
func stripParentPrefix(p string) string {
	sep := string(filepath.Separator)
	for {
		switch {
		case p == "..":
			return ""
		case strings.HasPrefix(p, ".."+sep):
			p = p[len(".."+sep):]
		case sep != "/" && strings.HasPrefix(p, "../"):
			p = p[len("../"):]
		default:
			return p
		}
	}
}
