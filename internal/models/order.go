package models

import (
	"path"
	"slices"
)

// StarSet holds starred relative paths.
type StarSet map[string]bool

// EntryPath joins a listing directory and an entry name into the relative
// path used as a star key. Remote entries are keyed by ID.
func EntryPath(dir string, e DirEntry) string {
	if e.ID != "" {
		return e.ID
	}
	if dir == "" || dir == "." || dir == "/" {
		return e.Name
	}
	return path.Join(dir, e.Name)
}

// MarkStarred sets Starred on every entry of dir found in starred.
func MarkStarred(dir string, entries []DirEntry, starred StarSet) {
	for i := range entries {
		entries[i].Starred = starred[EntryPath(dir, entries[i])]
	}
}

// SortStarredFirst returns a copy of entries ordered starred first, then
// folders before files. Ties keep their enumeration order.
func SortStarredFirst(starred StarSet, dir string, entries []DirEntry) []DirEntry {
	out := slices.Clone(entries)
	rank := func(e DirEntry) int {
		r := 2
		if starred[EntryPath(dir, e)] || e.Starred {
			r = 0
		} else if e.IsFolder() {
			r = 1
		}
		return r
	}
	slices.SortStableFunc(out, func(a, b DirEntry) int {
		return rank(a) - rank(b)
	})
	return out
}
