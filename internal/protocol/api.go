// Package protocol defines the API request/response types.
package protocol

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Code  int    `json:"code"`
}

// Error kinds carried in ErrorResponse.Kind.
const (
	KindAccessDenied  = "AccessDenied"
	KindNotFound      = "NotFound"
	KindNotADirectory = "NotADirectory"
	KindForbidden     = "Forbidden"
	KindConflict      = "Conflict"
	KindBadRequest    = "BadRequest"
	KindUnsupported   = "Unsupported"
	KindUpstream      = "UpstreamError"
	KindInternal      = "InternalError"
	KindUnavailable   = "Unavailable"
)

// SuccessResponse is returned by delete and rename.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// RenameRequest is the body for POST /api/rename.
type RenameRequest struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
}

// StarRequest is the body for POST /api/star. Starred defaults to true.
type StarRequest struct {
	Path    string `json:"path"`
	Starred *bool  `json:"starred,omitempty"`
}

// StarResponse is returned by POST /api/star.
type StarResponse struct {
	Path    string `json:"path"`
	Starred bool   `json:"starred"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	RemoteBackend  string `json:"remote_backend,omitempty"`
	RootFreeBytes  uint64 `json:"root_free_bytes,omitempty"`
	RootTotalBytes uint64 `json:"root_total_bytes,omitempty"`
	SSEClients     int    `json:"sse_clients"`
}
