package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/metrics"
	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/storage"
)

// maxListingBytes bounds a listing response body.
const maxListingBytes = 16 << 20

// HTTPConfig configures the http driver.
type HTTPConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryMax   int
	RetryWait  time.Duration
	HTTPClient *http.Client
}

// HTTPBackend talks to a drive gateway exposing
// GET {base}/list?folder=<id> and GET {base}/content?id=<id>.
type HTTPBackend struct {
	base   *url.URL
	client *retryablehttp.Client
}

// NewHTTP creates an http driver.
func NewHTTP(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("remote url must be http or https: %s", cfg.BaseURL)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	if cfg.RetryMax > 0 {
		client.RetryMax = cfg.RetryMax
	}
	client.RetryWaitMin = 200 * time.Millisecond
	if cfg.RetryWait > 0 {
		client.RetryWaitMin = cfg.RetryWait
	}
	client.RetryWaitMax = 5 * time.Second
	client.Logger = leveledLogger{logging.L().Sugar()}
	if cfg.HTTPClient != nil {
		hc := *cfg.HTTPClient
		client.HTTPClient = &hc
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &HTTPBackend{base: base, client: client}, nil
}

// Type returns "http".
func (b *HTTPBackend) Type() string { return "http" }

func (b *HTTPBackend) endpoint(name string, q url.Values) string {
	u := *b.base
	u.Path = path.Join(u.Path, name)
	u.RawQuery = q.Encode()
	return u.String()
}

func (b *HTTPBackend) get(ctx context.Context, name string, q url.Values) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, b.endpoint(name, q), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := logging.GetRequestID(ctx); id != "" {
		req.Header.Set(logging.RequestIDHeader, id)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("remote %s: %w", name, storage.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: remote %s returned %s", storage.ErrUpstream, name, resp.Status)
	}
	return resp, nil
}

// List fetches the children of dir.
func (b *HTTPBackend) List(ctx context.Context, dir string) ([]models.DirEntry, error) {
	start := time.Now()
	entries, err := b.list(ctx, dir)
	metrics.RecordRemoteOperation(b.Type(), "list", time.Since(start), err == nil)
	return entries, err
}

func (b *HTTPBackend) list(ctx context.Context, dir string) ([]models.DirEntry, error) {
	resp, err := b.get(ctx, "list", url.Values{"folder": {folderID(dir)}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read listing: %v", storage.ErrUpstream, err)
	}
	entries, err := DecodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUpstream, err)
	}
	return entries, nil
}

// Open streams the content of the file with the given id.
func (b *HTTPBackend) Open(ctx context.Context, id string) (*storage.Content, error) {
	id = strings.Trim(id, "/")
	if id == "" {
		return nil, fmt.Errorf("file id is required: %w", storage.ErrNotFound)
	}

	start := time.Now()
	resp, err := b.get(ctx, "content", url.Values{"id": {id}})
	metrics.RecordRemoteOperation(b.Type(), "read", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	var modTime time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			modTime = t
		}
	}

	return &storage.Content{
		Body:    resp.Body,
		Name:    path.Base(id),
		Size:    resp.ContentLength,
		ModTime: modTime,
	}, nil
}

// leveledLogger routes retryablehttp's logging into zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
