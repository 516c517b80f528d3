// Package bus is the structural event bus shared by the diagram model and
// the sync engine.
//
// A Bus is an explicit handle: whoever constructs the engine passes the
// same Bus to the model that publishes into it. Subscriptions are owned by
// the subscriber and must be released with Unsubscribe when the subscriber
// is torn down.
//
// Delivery is synchronous and in subscription order. The engine is
// single-writer, so handlers run on the goroutine that published.
package bus

import (
	"log/slog"
	"sync"
)

// EventType names one entry of the fixed event vocabulary.
type EventType string

const (
	EventAddTables    EventType = "add_tables"
	EventRemoveTables EventType = "remove_tables"
	EventUpdateTable  EventType = "update_table"
	EventAddField     EventType = "add_field"
	EventRemoveField  EventType = "remove_field"
	EventLoadDiagram  EventType = "load_diagram"

	// EventCanvasClick is published by the engine when the pane is clicked.
	EventCanvasClick EventType = "canvas_click"
)

// Event is a single notification. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType
	DiagramID string
	TableIDs  []string
	TableID   string
	FieldID   string
}

// Handler receives events.
type Handler func(Event)

// Bus fans events out to subscribers.
//
// Thread-safety: Subscribe, Unsubscribe and Publish are safe for concurrent
// use. Handlers are invoked without the lock held so they may publish.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]subscriber
}

type subscriber struct {
	id      int
	types   map[EventType]bool
	handler Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[int]subscriber)}
}

// Subscription is returned by Subscribe.
type Subscription struct {
	bus  *Bus
	id   int
	once sync.Once
}

// Subscribe registers h for the given event types. With no types, h receives
// every event.
func (b *Bus) Subscribe(h Handler, types ...EventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := subscriber{id: b.nextID, handler: h}
	if len(types) > 0 {
		s.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	b.handlers[s.id] = s
	return &Subscription{bus: b, id: s.id}
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.handlers, s.id)
		s.bus.mu.Unlock()
	})
}

// Publish delivers ev to every matching subscriber in subscription order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	targets := make([]subscriber, 0, len(b.handlers))
	for _, s := range b.handlers {
		if s.types == nil || s.types[ev.Type] {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	sortSubscribers(targets)

	slog.Debug("bus publish", "type", ev.Type, "subscribers", len(targets))
	for _, s := range targets {
		s.handler(ev)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

func sortSubscribers(s []subscriber) {
	// insertion sort: subscriber counts are tiny
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].id < s[j-1].id; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
