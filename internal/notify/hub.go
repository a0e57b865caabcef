// Package notify turns filesystem activity under the task root into change
// events and fans them out to connected clients.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds delivered to subscribers.
const (
	EventConnected       = "connected"
	EventAdd             = "add"
	EventChange          = "change"
	EventUnlink          = "unlink"
	EventProjectSwitched = "project-switched"
)

// Event is one change notification. Timestamp is in Unix milliseconds.
type Event struct {
	Event     string `json:"event"`
	Path      string `json:"path,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(event Event)
}

// Hub maintains the set of subscribers and broadcasts events to them. A
// subscriber whose buffer is full is dropped and its channel closed.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]chan Event
	buffer int
	logger *slog.Logger
	now    func() time.Time
}

// NewHub creates an empty Hub. logger may be nil.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		subs:   make(map[string]chan Event),
		buffer: 64,
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe registers a new subscriber and returns its ID and event channel.
func (h *Hub) Subscribe() (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber connected", "id", id)
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown IDs are
// ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
		h.logger.Debug("subscriber disconnected", "id", id)
	}
}

// Publish delivers event to every subscriber without blocking.
func (h *Hub) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = h.now().UnixMilli()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			delete(h.subs, id)
			close(ch)
			h.logger.Warn("dropping slow subscriber", "id", id)
		}
	}
}

// ProjectSwitched tells every subscriber to reload the board.
func (h *Hub) ProjectSwitched(projectID string) {
	h.Publish(Event{Event: EventProjectSwitched, ProjectID: projectID})
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
