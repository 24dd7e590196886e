// Package sandbox confines client-supplied relative paths to a single root
// directory.
//
// Resolution is pure path math: the relative path is joined onto the root,
// cleaned, and accepted only if the result is the root itself or lies below
// it on a path-segment boundary. No filesystem access happens here.
package sandbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrAccessDenied is returned when a path resolves outside the root.
var ErrAccessDenied = errors.New("access denied")

// Root is the absolute directory all client paths are relative to.
// The zero value is not usable; construct with New.
type Root struct {
	path string
}

// New returns a Root for dir, made absolute and cleaned.
func New(dir string) (Root, error) {
	if dir == "" {
		return Root{}, fmt.Errorf("root directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, fmt.Errorf("resolve root %s: %w", dir, err)
	}
	return Root{path: filepath.Clean(abs)}, nil
}

// Path returns the absolute root path.
func (r Root) Path() string { return r.path }

// String implements fmt.Stringer.
func (r Root) String() string { return r.path }

// Resolve joins rel onto the root and returns the normalized absolute path.
// A leading separator in rel is treated as relative to the root, never as a
// host path.
func (r Root) Resolve(rel string) (string, error) {
	if r.path == "" {
		return "", fmt.Errorf("sandbox root not initialized")
	}
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%q: %w", rel, ErrAccessDenied)
	}

	resolved := filepath.Join(r.path, filepath.FromSlash(rel))
	if !r.Contains(resolved) {
		return "", fmt.Errorf("%q escapes root: %w", rel, ErrAccessDenied)
	}
	return resolved, nil
}

// Contains reports whether abs, once cleaned, is the root or lies beneath it.
// The comparison is on segment boundaries: "/data-evil" is not inside "/data".
func (r Root) Contains(abs string) bool {
	return Within(r.path, abs)
}

// Within reports whether path equals dir or lies beneath it. Both are
// cleaned first; the comparison is on segment boundaries.
func Within(dir, path string) bool {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// IsRoot reports whether abs is the root itself.
func (r Root) IsRoot(abs string) bool {
	return filepath.Clean(abs) == r.path
}

// Rel converts an absolute path inside the root back into a slash-separated
// relative path ("" for the root).
func (r Root) Rel(abs string) (string, error) {
	if !r.Contains(abs) {
		return "", fmt.Errorf("%q: %w", abs, ErrAccessDenied)
	}
	rel, err := filepath.Rel(r.path, filepath.Clean(abs))
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}
