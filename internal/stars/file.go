package stars

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// FileStore keeps stars in memory and, when a path is given, mirrors them to
// a JSON file after every change. A change whose write fails is undone.
type FileStore struct {
	mu    sync.Mutex
	path  string
	paths map[string]struct{}
}

// NewFileStore loads stars from file. An empty file path keeps stars in
// memory only; a missing file starts empty.
func NewFileStore(file string) (*FileStore, error) {
	s := &FileStore{path: file, paths: make(map[string]struct{})}
	if file == "" {
		return s, nil
	}

	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stars file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return nil, fmt.Errorf("parse stars file %s: %w", file, err)
	}
	for _, p := range paths {
		if p = Normalize(p); p != "" {
			s.paths[p] = struct{}{}
		}
	}
	return s, nil
}

// List returns every starred path.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

// Set stars or unstars p.
func (s *FileStore) Set(_ context.Context, p string, starred bool) error {
	p = Normalize(p)
	if p == "" {
		return fmt.Errorf("cannot star the root")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, had := s.paths[p]
	if had == starred {
		return nil
	}
	s.toggle(p, starred)
	if err := s.flush(); err != nil {
		s.toggle(p, had)
		return err
	}
	return nil
}

func (s *FileStore) toggle(p string, starred bool) {
	if starred {
		s.paths[p] = struct{}{}
	} else {
		delete(s.paths, p)
	}
}

// RemoveTree unstars p and its descendants.
func (s *FileStore) RemoveTree(_ context.Context, p string) error {
	p = Normalize(p)
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for k := range s.paths {
		if p == "" || inTree(p, k) {
			delete(s.paths, k)
			removed = append(removed, k)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := s.flush(); err != nil {
		for _, k := range removed {
			s.paths[k] = struct{}{}
		}
		return err
	}
	return nil
}

// MoveTree re-keys p and its descendants under newPath.
func (s *FileStore) MoveTree(_ context.Context, oldPath, newPath string) error {
	oldPath, newPath = Normalize(oldPath), Normalize(newPath)
	if oldPath == "" || newPath == "" || oldPath == newPath {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := maps.Clone(s.paths)
	moved := map[string]struct{}{}
	for k := range s.paths {
		if inTree(oldPath, k) {
			delete(s.paths, k)
			moved[newPath+k[len(oldPath):]] = struct{}{}
		}
	}
	if len(moved) == 0 {
		return nil
	}
	maps.Copy(s.paths, moved)
	if err := s.flush(); err != nil {
		s.paths = before
		return err
	}
	return nil
}

// Close is a no-op; every change is already on disk.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) sorted() []string {
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// flush writes the set via a temp file and rename. Callers hold mu.
func (s *FileStore) flush() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.sorted(), "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stars dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".stars-*.json")
	if err != nil {
		return fmt.Errorf("write stars: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write stars: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write stars: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write stars: %w", err)
	}
	return nil
}
