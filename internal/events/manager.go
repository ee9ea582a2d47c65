// Package events provides a small in-process pub/sub bus used to stream
// backtest run progress to websocket clients. Events are fire-and-forget:
// a slow subscriber drops events rather than blocking the simulation.
package events

import (
	"sync"
	"time"
)

// EventType identifies a class of event on the bus
type EventType string

const (
	// RunStarted fires when a simulation begins
	RunStarted EventType = "run.started"
	// RunProgress fires as simulation months complete (throttled)
	RunProgress EventType = "run.progress"
	// RunCompleted fires when a simulation finishes successfully
	RunCompleted EventType = "run.completed"
	// RunFailed fires when a simulation aborts with an error
	RunFailed EventType = "run.failed"
)

// Event is a single message on the bus
type Event struct {
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	Data      EventData `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Manager fans events out to subscribers
type Manager struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// NewManager creates a new event manager
func NewManager() *Manager {
	return &Manager{
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered; events that arrive while
// the buffer is full are dropped for that subscriber.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	ch := make(chan Event, buffer)
	m.subs[id] = ch
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
		m.mu.Unlock()
	}

	return ch, unsubscribe
}

// EmitTyped publishes a typed event to all subscribers without blocking
func (m *Manager) EmitTyped(eventType EventType, source string, data EventData) {
	event := Event{
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full, drop the event for them
		}
	}
}

// SubscriberCount returns how many subscribers are currently registered
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}
