// Package notify fans configuration change events out to subscribers: an
// in-process Hub, a WebSocket stream and an optional MQTT publisher.
package notify

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/msgsight/cfgd/pkg/logging"
	"github.com/msgsight/cfgd/pkg/object"
)

// Operation names a change.
type Operation string

// Change operations.
const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpReload Operation = "reload"
)

// Event describes one committed change. Reload events carry no Type.
type Event struct {
	ID         string            `json:"id"`
	Revision   uint64            `json:"revision"`
	Operation  Operation         `json:"operation"`
	Type       string            `json:"type,omitempty"`
	Name       string            `json:"name,omitempty"`
	Properties object.Properties `json:"properties,omitempty"`
	Time       time.Time         `json:"time"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(op Operation, revision uint64, objectType, name string, props object.Properties) Event {
	return Event{
		ID:         uuid.NewString(),
		Revision:   revision,
		Operation:  op,
		Type:       objectType,
		Name:       name,
		Properties: props,
		Time:       time.Now().UTC(),
	}
}

// Filter selects events by object type. An empty filter matches everything.
type Filter struct {
	Types []string
}

// Match reports whether ev passes the filter. Reload events always pass.
func (f Filter) Match(ev Event) bool {
	if len(f.Types) == 0 || ev.Operation == OpReload {
		return true
	}
	return slices.Contains(f.Types, ev.Type)
}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Hub delivers events to subscribers without ever blocking the publisher.
// A subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	dropped atomic.Uint64
	log     *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(log *slog.Logger) HubOption {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: DefaultBuffer,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription receives events matching its filter on C until Close.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, filter: filter, hub: h}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Publish delivers ev to every matching subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if !sub.filter.Match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
			h.log.Warn("dropped change event for slow subscriber", "event", ev.ID, "type", ev.Type, "name", ev.Name)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
