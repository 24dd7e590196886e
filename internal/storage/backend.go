// Package storage defines the Backend interface shared by the local sandbox
// and the remote drivers, and routes each request to one of them.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/dabendan2/file-explorer/internal/models"
)

// Backend lists directories and opens files. Paths are relative to the
// backend's own root; remote backends address entries by ID.
type Backend interface {
	// List returns the direct children of dir in enumeration order.
	List(ctx context.Context, dir string) ([]models.DirEntry, error)

	// Open returns the raw bytes of a regular file.
	Open(ctx context.Context, path string) (*Content, error)

	// Type returns the backend type identifier ("local", "command", "http", "s3").
	Type() string
}

// Mutator is implemented by backends that can change the tree.
type Mutator interface {
	Delete(ctx context.Context, path string) error
	Rename(ctx context.Context, oldPath, newPath string) error
}

// Content is an open file. Body is an io.ReadSeeker when the backend
// supports random access, which enables Range requests.
type Content struct {
	Body    io.ReadCloser
	Name    string
	Size    int64 // -1 if unknown
	ModTime time.Time
}

// Close releases the body.
func (c *Content) Close() error {
	if c == nil || c.Body == nil {
		return nil
	}
	return c.Body.Close()
}

// Seeker returns the body as an io.ReadSeeker, if it is one.
func (c *Content) Seeker() (io.ReadSeeker, bool) {
	rs, ok := c.Body.(io.ReadSeeker)
	return rs, ok
}
