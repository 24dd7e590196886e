package storage

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dabendan2/file-explorer/internal/models"
)

// FilterByPattern keeps the entries whose name matches a doublestar glob.
// An empty pattern keeps everything.
func FilterByPattern(entries []models.DirEntry, pattern string) ([]models.DirEntry, error) {
	if pattern == "" {
		return entries, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%q: %w", pattern, ErrBadPattern)
	}
	out := make([]models.DirEntry, 0, len(entries))
	for _, e := range entries {
		if doublestar.MatchUnvalidated(pattern, e.Name) {
			out = append(out, e)
		}
	}
	return out, nil
}
