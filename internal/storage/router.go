package storage

import (
	"fmt"
	"strings"
)

// Storage modes selectable per request.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Router picks the backend for a request's mode flag.
type Router struct {
	local  Backend
	remote Backend
}

// NewRouter returns a Router. remote may be nil when no remote driver is
// configured.
func NewRouter(local, remote Backend) *Router {
	return &Router{local: local, remote: remote}
}

// Select returns the backend for mode. An empty mode means local.
func (r *Router) Select(mode string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeLocal:
		return r.local, nil
	case ModeRemote:
		if r.remote == nil {
			return nil, fmt.Errorf("remote backend not configured: %w", ErrUnsupported)
		}
		return r.remote, nil
	default:
		return nil, fmt.Errorf("%q: %w", mode, ErrInvalidMode)
	}
}

// Mutator returns the mutating side of the backend for mode. Read-only
// backends yield ErrUnsupported.
func (r *Router) Mutator(mode string) (Mutator, error) {
	b, err := r.Select(mode)
	if err != nil {
		return nil, err
	}
	m, ok := b.(Mutator)
	if !ok {
		return nil, fmt.Errorf("%s backend is read-only: %w", b.Type(), ErrUnsupported)
	}
	return m, nil
}

// Local returns the local backend.
func (r *Router) Local() Backend { return r.local }

// HasRemote reports whether a remote backend is configured.
func (r *Router) HasRemote() bool { return r.remote != nil }
