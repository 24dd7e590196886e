// Package remote adapts external drive-style collaborators into the storage
// Backend contract. Remote backends are read-only.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dabendan2/file-explorer/internal/models"
)

// FolderMimeType marks folders in drive-style listings.
const FolderMimeType = "application/vnd.google-apps.folder"

// RootID addresses the top of the remote tree.
const RootID = "root"

// Item is one listing record as returned by a remote collaborator.
type Item struct {
	Name         string      `json:"name"`
	ID           string      `json:"id"`
	MimeType     string      `json:"mimeType,omitempty"`
	Type         string      `json:"type,omitempty"`
	Size         models.Size `json:"size"`
	ModifiedTime string      `json:"modifiedTime,omitempty"`
}

// IsFolder reports whether the item is a folder. The MIME marker wins; the
// plain type field is accepted from collaborators that do not send one.
func (it Item) IsFolder() bool {
	if it.MimeType != "" {
		return it.MimeType == FolderMimeType
	}
	return it.Type == models.TypeFolder || it.Type == "directory"
}

// DirEntry adapts the item. The id becomes the entry's addressable path and
// falls back to the name.
func (it Item) DirEntry() models.DirEntry {
	name := it.Name
	if name == "" {
		name = path.Base(it.ID)
	}
	e := models.DirEntry{
		Name:     name,
		Type:     models.TypeFile,
		Size:     it.Size,
		Modified: normalizeDate(it.ModifiedTime),
		ID:       it.ID,
	}
	if e.ID == "" {
		e.ID = name
	}
	if it.IsFolder() {
		e.Type = models.TypeFolder
		e.Size = models.NoSize
	}
	return e
}

// DecodeItems parses either a bare JSON array of items or an object with a
// "files" array, and adapts every item.
func DecodeItems(data []byte) ([]models.DirEntry, error) {
	data = bytes.TrimSpace(data)
	var items []Item
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Files []Item `json:"files"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		items = wrapped.Files
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	entries := make([]models.DirEntry, 0, len(items))
	for _, it := range items {
		if it.Name == "" && it.ID == "" {
			continue
		}
		entries = append(entries, it.DirEntry())
	}
	return entries, nil
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return models.FormatDate(t)
	}
	if len(s) >= len(models.DateLayout) {
		if t, err := time.Parse(models.DateLayout, s[:len(models.DateLayout)]); err == nil {
			return models.FormatDate(t)
		}
	}
	return ""
}

func folderID(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" || dir == "." {
		return RootID
	}
	return dir
}
