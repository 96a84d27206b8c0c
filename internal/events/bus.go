// Package events distributes session lifecycle events to subscribers.
// Publishing never blocks: slow subscribers drop events rather than stall
// the orchestrator loop.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/graphwright/graphwright/internal/types"
)

// EventType classifies a session event.
type EventType string

const (
	SessionStarted   EventType = "session.started"
	SessionResumed   EventType = "session.resumed"
	StateTransition  EventType = "session.transition"
	SessionSuspended EventType = "session.suspended"
	SessionCompleted EventType = "session.completed"
	SessionFailed    EventType = "session.failed"
	ToolExecuted     EventType = "tool.executed"
	EscalationRaised EventType = "escalation.raised"
)

// Event is one observable occurrence in a session's life.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID types.ID       `json:"session_id"`
	Node      string         `json:"node,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}

// Filter selects which events a subscriber receives. Zero values match
// everything.
type Filter struct {
	Types     []EventType
	SessionID types.ID
}

func (f Filter) matches(event Event) bool {
	if !f.SessionID.IsZero() && f.SessionID != event.SessionID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == event.Type {
			return true
		}
	}
	return false
}

const defaultBufferSize = 64

type subscription struct {
	id     string
	ch     chan Event
	filter Filter
}

// Bus fans events out to subscribers. Safe for concurrent use.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	closed      bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]*subscription)}
}

// Publish delivers the event to every matching subscriber. Events for full
// subscriber buffers are dropped for that subscriber only.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return types.NewError(types.VALIDATION_FAILED, "event bus is closed")
	}

	for _, sub := range b.subscribers {
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
	return nil
}

// Subscribe registers a subscriber. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe(filter Filter, bufferSize int) (<-chan Event, func()) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	sub := &subscription{
		id:     uuid.NewString(),
		ch:     make(chan Event, bufferSize),
		filter: filter,
	}

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[sub.id]; ok {
			delete(b.subscribers, sub.id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
	return nil
}
