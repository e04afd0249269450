package events

import (
	"context"
	"sync"
)

// Broker fans events out to in-process subscribers
type Broker struct {
	subscribers map[chan Event]bool
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
}

// NewBroker creates a new event broker
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Broker{
		subscribers: make(map[chan Event]bool),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a new subscription. After Close it returns a closed
// channel.
func (b *Broker) Subscribe() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = true
	return ch
}

// Unsubscribe removes a subscription and closes its channel
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[ch] {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Publish sends an event to every subscriber. Slow subscribers lose events
// rather than blocking the publisher.
func (b *Broker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// SubscriberCount returns the number of active subscriptions
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscription
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan Event]bool)
}
