// Package local provides the sandboxed local filesystem backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/sandbox"
	"github.com/dabendan2/file-explorer/internal/storage"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string
	CreateDirs bool
}

// Backend implements storage.Backend and storage.Mutator on a directory tree
// confined to a sandbox root.
type Backend struct {
	root sandbox.Root
}

// New creates a local backend rooted at cfg.RootPath.
func New(cfg Config) (*Backend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	root, err := sandbox.New(cfg.RootPath)
	if err != nil {
		return nil, err
	}
	return &Backend{root: root}, nil
}

// Root returns the sandbox root.
func (b *Backend) Root() sandbox.Root { return b.root }

// Type returns "local".
func (b *Backend) Type() string { return "local" }

// List returns the direct children of dir in directory-enumeration order.
// Children that vanish between enumeration and stat are skipped.
func (b *Backend) List(ctx context.Context, dir string) ([]models.DirEntry, error) {
	abs, err := b.root.Resolve(dir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapError(dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q: %w", dir, storage.ErrNotDirectory)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, mapError(dir, err)
	}
	defer f.Close()

	dirents, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	entries := make([]models.DirEntry, 0, len(dirents))
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := b.stat(filepath.Join(abs, d.Name()), d)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", d.Name(), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// stat builds the entry for one child. Symlinks are reported by the type of
// their target; dangling links fall back to the link itself.
func (b *Backend) stat(abs string, d fs.DirEntry) (models.DirEntry, error) {
	info, err := d.Info()
	if err != nil {
		return models.DirEntry{}, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		if target, err := os.Stat(abs); err == nil {
			info = target
		}
	}
	if info.IsDir() {
		return models.NewFolderEntry(d.Name(), info.ModTime()), nil
	}
	return models.NewFileEntry(d.Name(), info.Size(), info.ModTime()), nil
}

// Stat returns the entry for path. The root is reported as an unnamed folder.
func (b *Backend) Stat(ctx context.Context, path string) (models.DirEntry, error) {
	abs, err := b.root.Resolve(path)
	if err != nil {
		return models.DirEntry{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.DirEntry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.DirEntry{}, mapError(path, err)
	}
	name := ""
	if !b.root.IsRoot(abs) {
		name = info.Name()
	}
	if info.IsDir() {
		return models.NewFolderEntry(name, info.ModTime()), nil
	}
	return models.NewFileEntry(name, info.Size(), info.ModTime()), nil
}

// Open opens a regular file for reading. Directories and other non-regular
// files are reported as not found.
func (b *Backend) Open(ctx context.Context, path string) (*storage.Content, error) {
	abs, err := b.root.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, mapError(path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%q is not a regular file: %w", path, storage.ErrNotFound)
	}

	return &storage.Content{
		Body:    f,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Delete removes a file or, recursively, a directory. The root itself can
// never be deleted.
func (b *Backend) Delete(ctx context.Context, path string) error {
	abs, err := b.root.Resolve(path)
	if err != nil {
		return err
	}
	if b.root.IsRoot(abs) {
		return fmt.Errorf("delete root: %w", storage.ErrForbidden)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Lstat(abs); err != nil {
		return mapError(path, err)
	}
	// RemoveAll tolerates descendants disappearing underneath it.
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("delete %q: %w", path, err)
	}
	return nil
}

// Rename moves oldPath to newPath within the root without overwriting.
func (b *Backend) Rename(ctx context.Context, oldPath, newPath string) error {
	oldAbs, err := b.root.Resolve(oldPath)
	if err != nil {
		return err
	}
	newAbs, err := b.root.Resolve(newPath)
	if err != nil {
		return err
	}
	if b.root.IsRoot(oldAbs) || b.root.IsRoot(newAbs) {
		return fmt.Errorf("rename root: %w", storage.ErrForbidden)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := os.Lstat(oldAbs); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source %q: %w", oldPath, storage.ErrNotFound)
		}
		return fmt.Errorf("stat %q: %w", oldPath, err)
	}
	if oldAbs == newAbs {
		return fmt.Errorf("%q: %w", newPath, storage.ErrConflict)
	}
	if sandbox.Within(oldAbs, newAbs) {
		return fmt.Errorf("move %q into itself: %w", oldPath, storage.ErrForbidden)
	}
	if _, err := os.Stat(filepath.Dir(newAbs)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("target directory of %q: %w", newPath, storage.ErrNotFound)
		}
		return fmt.Errorf("stat target directory: %w", err)
	}

	if err := renameNoReplace(oldAbs, newAbs); err != nil {
		return fmt.Errorf("rename %q to %q: %w", oldPath, newPath, err)
	}
	return nil
}

// renameChecked refuses to overwrite an existing target, then renames. The
// check and the rename are not atomic.
func renameChecked(oldAbs, newAbs string) error {
	if _, err := os.Lstat(newAbs); err == nil {
		return storage.ErrConflict
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return err
	}
	return nil
}

func mapError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%q: %w", path, storage.ErrNotFound)
	}
	return fmt.Errorf("%q: %w", path, err)
}
