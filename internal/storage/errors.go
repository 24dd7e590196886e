package storage

import (
	"errors"

	"github.com/dabendan2/file-explorer/internal/sandbox"
)

// Sentinel errors shared by every backend. Callers match them with errors.Is.
var (
	// ErrAccessDenied is returned when a path resolves outside the root.
	ErrAccessDenied = sandbox.ErrAccessDenied

	ErrNotFound     = errors.New("not found")
	ErrNotDirectory = errors.New("not a directory")
	ErrForbidden    = errors.New("operation forbidden")
	ErrConflict     = errors.New("target already exists")
	ErrUpstream     = errors.New("upstream storage error")
	ErrUnsupported  = errors.New("operation not supported by backend")
	ErrInvalidMode  = errors.New("unknown storage mode")
	ErrBadPattern   = errors.New("invalid glob pattern")
	ErrInvalidArg   = errors.New("invalid argument")
)
