// Package stars persists the set of starred paths.
package stars

import (
	"context"
	"path"
	"strings"

	"github.com/dabendan2/file-explorer/internal/models"
)

// Store keeps starred paths. Paths are slash-separated and relative to the
// root; remote entries use their id.
type Store interface {
	// List returns every starred path in lexical order.
	List(ctx context.Context) ([]string, error)

	// Set stars or unstars a path.
	Set(ctx context.Context, p string, starred bool) error

	// RemoveTree unstars p and everything below it.
	RemoveTree(ctx context.Context, p string) error

	// MoveTree re-keys p and everything below it to newPath.
	MoveTree(ctx context.Context, oldPath, newPath string) error

	Close() error
}

// Set loads the store into a lookup set.
func Set(ctx context.Context, s Store) (models.StarSet, error) {
	paths, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	set := make(models.StarSet, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set, nil
}

// Normalize cleans a client path into a store key. The root yields "".
func Normalize(p string) string {
	p = strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	return p
}

// inTree reports whether p is root or lies below it.
func inTree(root, p string) bool {
	return p == root || strings.HasPrefix(p, root+"/")
}
