// Package events provides the in-process publish/subscribe bus that replaces
// the host shell's emit surface. Publishers never block: a subscriber that
// falls behind its buffer loses events rather than stalling the producer.
package events

import (
	"sync"
)

// Well-known event types emitted by the backend.
const (
	TypeNetworkStatusChanged = "network-status-changed"
	TypeSessionCreated       = "terminal-session-created"
	TypeSessionClosed        = "terminal-session-closed"
)

// Event is a single notification delivered to subscribers.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

const subscriberBuffer = 64

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes its channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, key)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// subscriber buffer full, drop
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
