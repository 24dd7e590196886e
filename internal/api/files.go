package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/events"
	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/metrics"
	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/protocol"
	"github.com/dabendan2/file-explorer/internal/stars"
	"github.com/dabendan2/file-explorer/internal/storage"
)

// sniffLen is how much of a non-seekable body is buffered for type detection.
const sniffLen = 3072

// handleList serves GET /api/files?path=&mode=&pattern=&order=.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir := q.Get("path")

	backend, err := s.router.Select(q.Get("mode"))
	if err != nil {
		s.sendStorageError(w, r, "list", err)
		return
	}

	entries, err := backend.List(r.Context(), dir)
	metrics.RecordListing(backend.Type(), len(entries), err == nil)
	if err != nil {
		s.sendStorageError(w, r, "list", err)
		return
	}

	entries, err = storage.FilterByPattern(entries, q.Get("pattern"))
	if err != nil {
		s.sendStorageError(w, r, "list", err)
		return
	}

	starKeyDir := stars.Normalize(dir)
	set := s.starSet(r.Context())
	models.MarkStarred(starKeyDir, entries, set)

	switch q.Get("order") {
	case "", "none":
	case "starred":
		entries = models.SortStarredFirst(set, starKeyDir, entries)
	default:
		s.badRequest(w, "order must be starred or none")
		return
	}

	if entries == nil {
		entries = []models.DirEntry{}
	}
	s.sendJSON(w, r, entries)
}

// handleContent serves GET /api/content?path=&mode= with the file's bytes
// unmodified.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := q.Get("path")
	if p == "" {
		s.badRequest(w, "path required")
		return
	}

	backend, err := s.router.Select(q.Get("mode"))
	if err != nil {
		s.sendStorageError(w, r, "content", err)
		return
	}

	c, err := backend.Open(r.Context(), p)
	if err != nil {
		metrics.RecordContentRead(0, false)
		s.sendStorageError(w, r, "content", err)
		return
	}
	defer c.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	if c.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": c.Name}))
	}

	if rs, ok := c.Seeker(); ok {
		mt, err := mimetype.DetectReader(rs)
		if err == nil {
			_, err = rs.Seek(0, io.SeekStart)
		}
		if err != nil {
			metrics.RecordContentRead(0, false)
			s.sendStorageError(w, r, "content", err)
			return
		}
		w.Header().Set("Content-Type", mt.String())
		cw := &countingWriter{ResponseWriter: w}
		http.ServeContent(cw, r, c.Name, c.ModTime, rs)
		metrics.RecordContentRead(cw.n, true)
		return
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(c.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		metrics.RecordContentRead(0, false)
		s.sendStorageError(w, r, "content", err)
		return
	}
	head = head[:n]

	w.Header().Set("Content-Type", mimetype.Detect(head).String())
	if c.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(c.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	written, err := io.Copy(w, io.MultiReader(bytes.NewReader(head), c.Body))
	metrics.RecordContentRead(written, err == nil)
	if err != nil {
		logging.WithContext(r.Context()).Debug("content copy aborted", zap.Error(err))
	}
}

// handleDelete serves DELETE /api/delete?path=.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := q.Get("path")
	if strings.TrimSpace(p) == "" {
		s.badRequest(w, "path required")
		return
	}

	m, err := s.router.Mutator(q.Get("mode"))
	if err != nil {
		s.sendStorageError(w, r, "delete", err)
		return
	}

	err = m.Delete(r.Context(), p)
	metrics.RecordMutation("delete", err == nil)
	if err != nil {
		s.sendStorageError(w, r, "delete", err)
		return
	}

	key := stars.Normalize(p)
	if s.stars != nil {
		if err := s.stars.RemoveTree(r.Context(), key); err != nil {
			logging.WithContext(r.Context()).Warn("unstar deleted tree", zap.String("path", key), zap.Error(err))
		}
	}
	s.broadcaster.Publish(events.Event{Type: events.EventDelete, Path: key})

	logging.WithContext(r.Context()).Info("deleted", zap.String("path", key))
	s.sendJSON(w, r, protocol.SuccessResponse{Success: true})
}

// handleRename serves POST /api/rename with {oldPath, newPath}.
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req protocol.RenameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.badRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.OldPath) == "" || strings.TrimSpace(req.NewPath) == "" {
		s.badRequest(w, "oldPath and newPath required")
		return
	}

	m, err := s.router.Mutator(r.URL.Query().Get("mode"))
	if err != nil {
		s.sendStorageError(w, r, "rename", err)
		return
	}

	err = m.Rename(r.Context(), req.OldPath, req.NewPath)
	metrics.RecordMutation("rename", err == nil)
	if err != nil {
		s.sendStorageError(w, r, "rename", err)
		return
	}

	oldKey, newKey := stars.Normalize(req.OldPath), stars.Normalize(req.NewPath)
	if s.stars != nil {
		if err := s.stars.MoveTree(r.Context(), oldKey, newKey); err != nil {
			logging.WithContext(r.Context()).Warn("move stars", zap.String("from", oldKey), zap.Error(err))
		}
	}
	s.broadcaster.Publish(events.Event{Type: events.EventRename, Path: oldKey, NewPath: newKey})

	logging.WithContext(r.Context()).Info("renamed",
		zap.String("from", oldKey),
		zap.String("to", newKey))
	s.sendJSON(w, r, protocol.SuccessResponse{Success: true})
}

// countingWriter counts body bytes written through it.
type countingWriter struct {
	http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.ResponseWriter.Write(b)
	c.n += int64(n)
	return n, err
}
