// Package client is a Go client for the file explorer HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/protocol"
	"github.com/dabendan2/file-explorer/internal/storage/local"
	"github.com/dabendan2/file-explorer/internal/version"
)

// Config holds client configuration.
type Config struct {
	// BaseURL includes any base path, e.g. "http://host:8080/file-explorer".
	BaseURL  string
	Timeout  time.Duration
	RetryMax int
	// RetryWait is the minimum backoff between attempts.
	RetryWait time.Duration
}

// Client talks to one explorer server.
type Client struct {
	baseURL string
	http    *retryablehttp.Client

	mu       sync.RWMutex
	online   bool
	lastPing time.Time
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// Kind returns the API error kind of err, or "" when err is not an APIError.
func Kind(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https: %q", cfg.BaseURL)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 250 * time.Millisecond
	if cfg.RetryWait > 0 {
		rc.RetryWaitMin = cfg.RetryWait
	}
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.CheckRetry = checkRetry
	// Hand back the final response so its error body can be decoded.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil

	return &Client{baseURL: base, http: rc, online: true}, nil
}

// checkRetry retries transport errors and 503/429. A 502 means the remote
// drive failed and is reported as is.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	switch resp.StatusCode {
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return true, nil
	}
	return false, nil
}

// IsOnline reports whether the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("server is back online", zap.String("server", c.baseURL))
		} else {
			logging.Warn("server is offline", zap.String("server", c.baseURL))
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do sends a request and returns the response when its status is 2xx.
// Other statuses are decoded into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body interface{}) (*http.Response, error) {
	var rawBody interface{}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rawBody = data
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.endpoint(path, q), rawBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.setOnline(false)
		}
		return nil, err
	}
	c.setOnline(true)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

func decodeError(resp *http.Response) error {
	ae := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er protocol.ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		ae.Kind = er.Kind
		ae.Message = er.Error
	} else {
		ae.Message = strings.TrimSpace(string(data))
	}
	return ae
}

// decodeJSON reads a JSON body, gunzipping it when the server compressed it.
func decodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	var r io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gr.Close()
		r = gr
	}
	return json.NewDecoder(r).Decode(v)
}

// Ping checks GET /health.
func (c *Client) Ping(ctx context.Context) (*protocol.HealthResponse, error) {
	// /health is mounted at the server root, not under the base path.
	u, _ := url.Parse(c.baseURL)
	u.Path = "/health"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.setOnline(false)
		return nil, err
	}
	c.setOnline(true)
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	var health protocol.HealthResponse
	if err := decodeJSON(resp, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ListOptions selects a listing.
type ListOptions struct {
	Path    string
	Mode    string
	Pattern string
	// Order is "" or "starred".
	Order string
}

// List returns the direct children of a directory.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]models.DirEntry, error) {
	q := url.Values{}
	q.Set("path", opts.Path)
	setIf(q, "mode", opts.Mode)
	setIf(q, "pattern", opts.Pattern)
	setIf(q, "order", opts.Order)

	resp, err := c.do(ctx, http.MethodGet, "/api/files", q, nil)
	if err != nil {
		return nil, err
	}
	var entries []models.DirEntry
	if err := decodeJSON(resp, &entries); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return entries, nil
}

// Content streams a file. The caller closes the reader.
func (c *Client) Content(ctx context.Context, path, mode string) (io.ReadCloser, string, error) {
	q := url.Values{}
	q.Set("path", path)
	setIf(q, "mode", mode)

	resp, err := c.do(ctx, http.MethodGet, "/api/content", q, nil)
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Delete removes a file or directory tree.
func (c *Client) Delete(ctx context.Context, path string) error {
	q := url.Values{}
	q.Set("path", path)
	resp, err := c.do(ctx, http.MethodDelete, "/api/delete", q, nil)
	if err != nil {
		return err
	}
	var ok protocol.SuccessResponse
	return decodeJSON(resp, &ok)
}

// Rename moves oldPath to newPath. An existing newPath is a Conflict.
func (c *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/rename", nil,
		protocol.RenameRequest{OldPath: oldPath, NewPath: newPath})
	if err != nil {
		return err
	}
	var ok protocol.SuccessResponse
	return decodeJSON(resp, &ok)
}

// Star stars or unstars a path.
func (c *Client) Star(ctx context.Context, path string, starred bool) (*protocol.StarResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/star", nil,
		protocol.StarRequest{Path: path, Starred: &starred})
	if err != nil {
		return nil, err
	}
	var sr protocol.StarResponse
	if err := decodeJSON(resp, &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// Stars lists starred paths.
func (c *Client) Stars(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/stars", nil, nil)
	if err != nil {
		return nil, err
	}
	var paths []string
	if err := decodeJSON(resp, &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

// Search walks the local tree under dir.
func (c *Client) Search(ctx context.Context, dir string, opts local.SearchOptions) ([]local.SearchResult, error) {
	q := url.Values{}
	setIf(q, "path", dir)
	setIf(q, "q", opts.Query)
	setIf(q, "pattern", opts.Pattern)
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/search", q, nil)
	if err != nil {
		return nil, err
	}
	var results []local.SearchResult
	if err := decodeJSON(resp, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Version fetches the server's build identity.
func (c *Client) Version(ctx context.Context) (*version.Info, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/version", nil, nil)
	if err != nil {
		return nil, err
	}
	var info version.Info
	if err := decodeJSON(resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CheckVersion reports whether the server runs a different build than
// buildID. An empty buildID never counts as stale.
func (c *Client) CheckVersion(ctx context.Context, buildID string) (stale bool, server *version.Info, err error) {
	server, err = c.Version(ctx)
	if err != nil {
		return false, nil, err
	}
	return buildID != "" && server.BuildID != buildID, server, nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

