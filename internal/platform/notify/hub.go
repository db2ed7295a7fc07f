// Package notify provides an in-process hub that fans curation state-change
// events out to registered subscribers. State mutation in the core never
// triggers rendering or export directly; those collaborators subscribe here.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is one state-change notification.
type Event struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	SessionID      string    `json:"session_id"`
	DictionaryType string    `json:"dictionary_type"`
	Rows           int       `json:"rows"`
	Matched        int       `json:"matched"`
	Timestamp      time.Time `json:"timestamp"`
}

// SubscriberFunc receives published events.
type SubscriberFunc func(Event)

// Hub is a thread-safe in-memory publish/subscribe hub. Delivery is
// synchronous and in subscription order, matching the single-threaded
// cooperative model of the core: by the time Publish returns, every
// subscriber has observed the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]SubscriberFunc
	order  []string
	logger zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]SubscriberFunc),
		logger: logger,
	}
}

// Subscribe registers fn and returns a subscription ID for Unsubscribe.
func (h *Hub) Subscribe(fn SubscriberFunc) string {
	id := uuid.New().String()
	h.mu.Lock()
	h.subs[id] = fn
	h.order = append(h.order, id)
	h.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
	for i, sid := range h.order {
		if sid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Publish stamps the event with an ID and timestamp if missing and delivers
// it to every subscriber in subscription order.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	fns := make([]SubscriberFunc, 0, len(h.order))
	for _, id := range h.order {
		if fn, ok := h.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.RUnlock()

	h.logger.Debug().
		Str("kind", ev.Kind).
		Str("session_id", ev.SessionID).
		Str("type", ev.DictionaryType).
		Int("subscribers", len(fns)).
		Msg("publishing event")

	for _, fn := range fns {
		fn(ev)
	}
}
