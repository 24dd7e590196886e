package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/events"
	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/protocol"
	"github.com/dabendan2/file-explorer/internal/stars"
)

// handleStar serves POST /api/star with {path, starred}. Local paths must
// exist; remote ids are taken as given.
func (s *Server) handleStar(w http.ResponseWriter, r *http.Request) {
	if s.stars == nil {
		s.sendError(w, http.StatusServiceUnavailable, protocol.KindUnavailable, "star store not configured")
		return
	}

	var req protocol.StarRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.badRequest(w, "path required")
		return
	}
	starred := true
	if req.Starred != nil {
		starred = *req.Starred
	}

	mode := r.URL.Query().Get("mode")
	backend, err := s.router.Select(mode)
	if err != nil {
		s.sendStorageError(w, r, "star", err)
		return
	}
	if backend.Type() == s.local.Type() {
		if _, err := s.local.Root().Resolve(req.Path); err != nil {
			s.sendStorageError(w, r, "star", err)
			return
		}
		// Unstarring a path that no longer exists is allowed.
		if starred {
			if _, err := s.local.Stat(r.Context(), req.Path); err != nil {
				s.sendStorageError(w, r, "star", err)
				return
			}
		}
	}

	key := stars.Normalize(req.Path)
	if key == "" {
		s.sendError(w, http.StatusForbidden, protocol.KindForbidden, "cannot star the root")
		return
	}
	if err := s.stars.Set(r.Context(), key, starred); err != nil {
		s.sendStorageError(w, r, "star", err)
		return
	}

	s.broadcaster.Publish(events.Event{Type: events.EventStar, Path: key, Starred: &starred})
	logging.WithContext(r.Context()).Debug("star updated", zap.String("path", key), zap.Bool("starred", starred))

	s.sendJSON(w, r, protocol.StarResponse{Path: key, Starred: starred})
}

// handleListStars serves GET /api/stars.
func (s *Server) handleListStars(w http.ResponseWriter, r *http.Request) {
	paths := []string{}
	if s.stars != nil {
		list, err := s.stars.List(r.Context())
		if err != nil {
			s.sendStorageError(w, r, "stars", err)
			return
		}
		if list != nil {
			paths = list
		}
	}
	s.sendJSON(w, r, paths)
}
