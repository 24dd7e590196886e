// Package models contains the data types shared by the storage backends and
// the HTTP layer.
package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Entry types.
const (
	TypeFile   = "file"
	TypeFolder = "folder"
)

// DateLayout is the calendar-date format used for DirEntry.Modified.
const DateLayout = "2006-01-02"

// DirEntry describes one direct child of a listed directory.
type DirEntry struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     Size   `json:"size"`
	Modified string `json:"modified"`

	// ID is the addressable path of remote entries. Local entries leave it
	// empty; their path is parent + "/" + Name.
	ID      string `json:"id,omitempty"`
	Starred bool   `json:"starred,omitempty"`
}

// IsFolder reports whether the entry is a folder.
func (e DirEntry) IsFolder() bool { return e.Type == TypeFolder }

// NewFileEntry builds a file entry.
func NewFileEntry(name string, size int64, modTime time.Time) DirEntry {
	return DirEntry{
		Name:     name,
		Type:     TypeFile,
		Size:     Size(size),
		Modified: FormatDate(modTime),
	}
}

// NewFolderEntry builds a folder entry; folders carry no size.
func NewFolderEntry(name string, modTime time.Time) DirEntry {
	return DirEntry{
		Name:     name,
		Type:     TypeFolder,
		Size:     NoSize,
		Modified: FormatDate(modTime),
	}
}

// FormatDate formats t as a UTC calendar date, YYYY-MM-DD. The zero time
// yields "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// Size is a byte count. NoSize marks folders and encodes as "-".
type Size int64

// NoSize is the folder sentinel.
const NoSize Size = -1

var dash = []byte(`"-"`)

// Known reports whether s is a real byte count.
func (s Size) Known() bool { return s >= 0 }

// MarshalJSON encodes NoSize as "-" and byte counts as numbers.
func (s Size) MarshalJSON() ([]byte, error) {
	if !s.Known() {
		return dash, nil
	}
	return strconv.AppendInt(nil, int64(s), 10), nil
}

// UnmarshalJSON accepts numbers, numeric strings and "-".
func (s *Size) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, dash) || bytes.Equal(b, []byte("null")) {
		*s = NoSize
		return nil
	}
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid size %s: %w", b, err)
	}
	*s = Size(n)
	return nil
}
