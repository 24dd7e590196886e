package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/events"
	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/protocol"
	"github.com/dabendan2/file-explorer/internal/stars"
	"github.com/dabendan2/file-explorer/internal/storage"
	"github.com/dabendan2/file-explorer/internal/storage/local"
	"github.com/dabendan2/file-explorer/internal/version"
)

// sseKeepAlive is the interval between comment lines on idle SSE streams.
var sseKeepAlive = 25 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := protocol.HealthResponse{
		Status:     "ok",
		SSEClients: s.broadcaster.Count(),
	}
	if s.router.HasRemote() {
		if b, err := s.router.Select(storage.ModeRemote); err == nil {
			resp.RemoteBackend = b.Type()
		}
	}
	if u, err := s.local.DiskUsage(); err == nil {
		resp.RootFreeBytes = u.AvailBytes
		resp.RootTotalBytes = u.TotalBytes
	}

	s.sendJSON(w, r, resp)
}

// handleVersion serves GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	if s.exposeRoot {
		info.Root = s.local.Root().Path()
	}
	w.Header().Set("Cache-Control", "no-store")
	s.sendJSON(w, r, info)
}

// handleSearch serves GET /api/search?q=&pattern=&path=&limit= over the
// local tree.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := local.SearchOptions{
		Query:   q.Get("q"),
		Pattern: q.Get("pattern"),
	}
	if opts.Query == "" && opts.Pattern == "" {
		s.badRequest(w, "q or pattern required")
		return
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			s.badRequest(w, "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}
	if mode := q.Get("mode"); mode != "" && mode != storage.ModeLocal {
		s.sendStorageError(w, r, "search", fmt.Errorf("search in %s mode: %w", mode, storage.ErrUnsupported))
		return
	}

	results, err := s.local.Search(r.Context(), q.Get("path"), opts)
	if err != nil {
		s.sendStorageError(w, r, "search", err)
		return
	}
	if results == nil {
		results = []local.SearchResult{}
	}
	s.sendJSON(w, r, results)
}

// handleEvents streams change events as Server-Sent Events. An optional
// path limits the stream to that subtree.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, protocol.KindInternal, "streaming not supported")
		return
	}

	prefix := r.URL.Query().Get("path")
	if prefix != "" {
		if _, err := s.local.Root().Resolve(prefix); err != nil {
			s.sendStorageError(w, r, "events", err)
			return
		}
		prefix = stars.Normalize(prefix)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.broadcaster.Subscribe(prefix)
	defer s.broadcaster.Unsubscribe(sub)

	logger := logging.WithContext(r.Context())
	logger.Debug("SSE client connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("prefix", prefix))

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int64("dropped", sub.Dropped()))
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				logger.Warn("marshal event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
