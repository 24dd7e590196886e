package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"

	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/storage"
)

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 500

// SearchOptions selects entries under a directory. Query is a
// case-insensitive substring of the name; Pattern is a doublestar glob
// matched against the slash-separated path relative to the search directory.
type SearchOptions struct {
	Query   string
	Pattern string
	Limit   int
}

// SearchResult is one match, addressed by its path relative to the root.
type SearchResult struct {
	Path  string          `json:"path"`
	Entry models.DirEntry `json:"entry"`
}

// Search walks dir recursively and returns the first Limit matching files and
// folders in path order. Symlinks are not followed.
func (b *Backend) Search(ctx context.Context, dir string, opts SearchOptions) ([]SearchResult, error) {
	if opts.Query == "" && opts.Pattern == "" {
		return nil, fmt.Errorf("query or pattern is required: %w", storage.ErrInvalidArg)
	}
	if opts.Pattern != "" && !doublestar.ValidatePattern(opts.Pattern) {
		return nil, fmt.Errorf("%q: %w", opts.Pattern, storage.ErrBadPattern)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	query := strings.ToLower(opts.Query)

	absDir, err := b.root.Resolve(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, mapError(dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q: %w", dir, storage.ErrNotDirectory)
	}

	var (
		mu      sync.Mutex
		results []SearchResult
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, absDir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || p == absDir {
			return nil
		}

		relToDir, err := filepath.Rel(absDir, p)
		if err != nil {
			return nil
		}
		relToDir = filepath.ToSlash(relToDir)

		if query != "" && !strings.Contains(strings.ToLower(d.Name()), query) {
			return nil
		}
		if opts.Pattern != "" && !doublestar.MatchUnvalidated(opts.Pattern, relToDir) {
			return nil
		}

		entry, err := b.stat(p, d)
		if err != nil {
			return nil
		}
		rel, err := b.root.Rel(p)
		if err != nil {
			return nil
		}

		mu.Lock()
		results = append(results, SearchResult{Path: rel, Entry: entry})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", dir, err)
	}

	// The walk is concurrent, so the limit applies after sorting.
	slices.SortFunc(results, func(a, b SearchResult) int {
		return strings.Compare(a.Path, b.Path)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
