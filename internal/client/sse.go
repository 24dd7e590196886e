package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/events"
	"github.com/dabendan2/file-explorer/internal/logging"
)

// Watcher follows GET /api/events and reconnects with backoff.
type Watcher struct {
	url          string
	httpClient   *http.Client
	reconnectMin time.Duration
	reconnectMax time.Duration
}

// Watcher returns an event watcher for the client's server. A non-empty
// path limits events to that subtree.
func (c *Client) Watcher(path string) *Watcher {
	q := url.Values{}
	setIf(q, "path", path)
	return &Watcher{
		url:          c.endpoint("/api/events", q),
		httpClient:   &http.Client{}, // no timeout on streams
		reconnectMin: time.Second,
		reconnectMax: 30 * time.Second,
	}
}

// Subscribe streams events until ctx is done. Both channels are closed on
// return. Connection errors are reported on the error channel without
// blocking and followed by a reconnect.
func (w *Watcher) Subscribe(ctx context.Context) (<-chan events.Event, <-chan error) {
	out := make(chan events.Event, 100)
	errs := make(chan error, 1)

	go w.loop(ctx, out, errs)

	return out, errs
}

func (w *Watcher) loop(ctx context.Context, out chan<- events.Event, errs chan<- error) {
	defer close(out)
	defer close(errs)

	delay := w.reconnectMin
	for {
		connected, err := w.connect(ctx, out)
		if ctx.Err() != nil {
			return
		}
		if connected {
			delay = w.reconnectMin
		}

		logging.Warn("event stream lost, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay))
		select {
		case errs <- err:
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > w.reconnectMax {
			delay = w.reconnectMax
		}
	}
}

// connect reads one stream until it ends. connected is true once the
// server accepted the subscription.
func (w *Watcher) connect(ctx context.Context, out chan<- events.Event) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	logging.Debug("event stream connected", zap.String("url", w.url))

	scanner := bufio.NewScanner(resp.Body)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() > 0 {
				var ev events.Event
				if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
					logging.Debug("undecodable event", zap.Error(err))
				} else {
					select {
					case out <- ev:
					case <-ctx.Done():
						return true, ctx.Err()
					}
				}
			}
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment or keepalive
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := scanner.Err(); err != nil {
		return true, fmt.Errorf("read: %w", err)
	}
	return true, fmt.Errorf("connection closed")
}
