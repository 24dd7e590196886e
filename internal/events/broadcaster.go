// Package events publishes sandbox changes to SSE subscribers.
package events

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dabendan2/file-explorer/internal/metrics"
)

const (
	EventCreate = "create"
	EventModify = "modify"
	EventDelete = "delete"
	EventRename = "rename"
	EventStar   = "star"
)

// subscriberBuffer is the per-subscriber queue length. Events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 64

// Event describes one change under the root. Paths are relative to the root.
type Event struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	NewPath   string `json:"newPath,omitempty"`
	Starred   *bool  `json:"starred,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription receives the events published under one subtree.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	prefix  string
	dropped atomic.Int64
}

// Dropped returns how many events were discarded because C was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// wants reports whether e touches the subscription's subtree. A rename
// matches when either side is inside it.
func (s *Subscription) wants(e Event) bool {
	if s.prefix == "" {
		return true
	}
	return underPrefix(s.prefix, e.Path) || (e.NewPath != "" && underPrefix(s.prefix, e.NewPath))
}

func underPrefix(prefix, p string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Broadcaster fans events out to subscriptions.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in prefix ("" for the whole tree). The
// caller must Unsubscribe when done.
func (b *Broadcaster) Subscribe(prefix string) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	s := &Subscription{C: ch, ch: ch, prefix: strings.Trim(prefix, "/")}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()

	metrics.SetSSEConnectionsActive(int64(n))
	return s
}

// Unsubscribe removes s and closes its channel. Repeated calls are no-ops.
func (b *Broadcaster) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
	n := len(b.subs)
	b.mu.Unlock()

	metrics.SetSSEConnectionsActive(int64(n))
}

// Publish delivers event to every interested subscription without blocking.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if !s.wants(event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			s.dropped.Add(1)
		}
	}
	metrics.RecordSSEEvent(event.Type)
}

// Count returns the current number of subscriptions.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
