// Package api provides the HTTP server and handlers for the file explorer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/events"
	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/metrics"
	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/protocol"
	"github.com/dabendan2/file-explorer/internal/ratelimit"
	"github.com/dabendan2/file-explorer/internal/stars"
	"github.com/dabendan2/file-explorer/internal/storage"
	"github.com/dabendan2/file-explorer/internal/storage/local"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Options holds optional server settings.
type Options struct {
	// BasePath mounts the API a second time under this prefix, e.g.
	// "/file-explorer" serves "/file-explorer/api/files".
	BasePath string

	// ExposeRoot adds the absolute root to the version probe.
	ExposeRoot bool

	Limiter     *ratelimit.Limiter
	Broadcaster *events.Broadcaster
}

// Server is the file explorer HTTP server.
type Server struct {
	router      *storage.Router
	local       *local.Backend
	stars       stars.Store
	broadcaster *events.Broadcaster
	limiter     *ratelimit.Limiter
	basePath    string
	exposeRoot  bool
}

// NewServer creates a new server. router.Local() must be lb.
func NewServer(router *storage.Router, lb *local.Backend, starStore stars.Store, opts Options) *Server {
	b := opts.Broadcaster
	if b == nil {
		b = events.NewBroadcaster()
	}
	return &Server{
		router:      router,
		local:       lb,
		stars:       starStore,
		broadcaster: b,
		limiter:     opts.Limiter,
		basePath:    strings.TrimRight(opts.BasePath, "/"),
		exposeRoot:  opts.ExposeRoot,
	}
}

// Broadcaster returns the event broadcaster used for /api/events.
func (s *Server) Broadcaster() *events.Broadcaster { return s.broadcaster }

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	prefixes := []string{""}
	if s.basePath != "" {
		prefixes = append(prefixes, s.basePath)
	}
	for _, p := range prefixes {
		// Directory listing and content
		mux.HandleFunc("GET "+p+"/api/files", s.handleList)
		mux.HandleFunc("GET "+p+"/api/content", s.handleContent)

		// Mutations
		mux.HandleFunc("DELETE "+p+"/api/delete", s.handleDelete)
		mux.HandleFunc("POST "+p+"/api/rename", s.handleRename)

		// Stars
		mux.HandleFunc("POST "+p+"/api/star", s.handleStar)
		mux.HandleFunc("GET "+p+"/api/stars", s.handleListStars)

		mux.HandleFunc("GET "+p+"/api/search", s.handleSearch)
		mux.HandleFunc("GET "+p+"/api/events", s.handleEvents)
		mux.HandleFunc("GET "+p+"/api/version", s.handleVersion)
	}

	var h http.Handler = metrics.Middleware(mux)
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	return logging.Middleware(h)
}

// acceptsGzip returns true if the client accepts gzip encoding.
func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// sendJSON writes v with status 200, gzipped when the client accepts it.
func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if acceptsGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzip.NewWriter(w)
		defer gw.Close()
		if err := json.NewEncoder(gw).Encode(v); err != nil {
			logging.WithContext(r.Context()).Warn("encode response", zap.Error(err))
		}
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WithContext(r.Context()).Warn("encode response", zap.Error(err))
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Del("Content-Encoding")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Kind:  kind,
		Code:  code,
	})
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.sendError(w, http.StatusBadRequest, protocol.KindBadRequest, message)
}

// classify maps an operation error onto an HTTP status and error kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrAccessDenied):
		return http.StatusForbidden, protocol.KindAccessDenied
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, protocol.KindNotFound
	case errors.Is(err, storage.ErrNotDirectory):
		return http.StatusBadRequest, protocol.KindNotADirectory
	case errors.Is(err, storage.ErrForbidden):
		return http.StatusForbidden, protocol.KindForbidden
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, protocol.KindConflict
	case errors.Is(err, storage.ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, protocol.KindUpstream
	case errors.Is(err, storage.ErrUnsupported):
		return http.StatusBadRequest, protocol.KindUnsupported
	case errors.Is(err, storage.ErrInvalidMode),
		errors.Is(err, storage.ErrBadPattern),
		errors.Is(err, storage.ErrInvalidArg):
		return http.StatusBadRequest, protocol.KindBadRequest
	default:
		return http.StatusInternalServerError, protocol.KindInternal
	}
}

// sendStorageError logs err and writes the mapped response. Internal errors
// get a generic message so host paths never reach the client.
func (s *Server) sendStorageError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := logging.WithContext(r.Context()).With(zap.String("op", op), zap.Error(err))

	if errors.Is(err, context.Canceled) {
		logger.Debug("client went away")
		return
	}

	code, kind := classify(err)
	message := err.Error()
	switch {
	case kind == protocol.KindAccessDenied:
		metrics.RecordAccessDenied()
		logger.Warn("path outside sandbox rejected")
		message = "access denied"
	case code >= 500:
		if kind == protocol.KindInternal {
			message = "internal error"
		}
		logger.Error("storage operation failed")
	default:
		logger.Debug("storage operation rejected")
	}
	s.sendError(w, code, kind, message)
}

// starSet loads the current stars. Failures degrade to no stars.
func (s *Server) starSet(ctx context.Context) models.StarSet {
	if s.stars == nil {
		return nil
	}
	set, err := stars.Set(ctx, s.stars)
	if err != nil {
		logging.WithContext(ctx).Warn("load stars", zap.Error(err))
		return nil
	}
	return set
}
