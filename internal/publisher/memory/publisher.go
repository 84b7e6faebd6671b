// Package memory contains in-memory publisher implementations for tests.
package memory

import (
	"context"
	"sync"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedEvent
}

// PublishedEvent captures one publish call.
type PublishedEvent struct {
	Event   string
	Payload any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event.
func (p *Publisher) Publish(_ context.Context, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedEvent{Event: event, Payload: payload})
	return nil
}

// Events returns the recorded publishes.
func (p *Publisher) Events() []PublishedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedEvent, len(p.messages))
	copy(out, p.messages)
	return out
}
