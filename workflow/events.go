package workflow

import (
	"sync"
	"time"
)

// EventKind identifies what an event carries.
type EventKind string

const (
	EventVertexStarted    EventKind = "vertex_started"
	EventVertexCompleted  EventKind = "vertex_completed"
	EventVertexFailed     EventKind = "vertex_failed"
	EventMessage          EventKind = "message"
	EventReasoning        EventKind = "reasoning"
	EventToolCall         EventKind = "tool_call"
	EventProgress         EventKind = "progress"
	EventDone             EventKind = "done"
	EventSubscriberLagged EventKind = "subscriber_lagged"
)

// Event is one item on the run's event stream.
type Event struct {
	Kind      EventKind      `json:"kind"`
	VertexID  string         `json:"vertex_id,omitempty"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
	Err       error          `json:"-"`
	Timestamp time.Time      `json:"timestamp"`
}

// DefaultEventBuffer is the per-subscriber channel capacity.
const DefaultEventBuffer = 256

// EventBus fans events out to subscribers over bounded channels. Publish
// never blocks: when a subscriber's buffer is full the event is dropped for
// that subscriber, and a SubscriberLagged event with the drop count is
// delivered once the buffer drains.
type EventBus struct {
	mu         sync.Mutex
	subs       []*subscriber
	bufferSize int
	runID      string
	closed     bool
}

type subscriber struct {
	ch      chan Event
	dropped int
}

// NewEventBus creates a bus with the given per-subscriber buffer size.
// Sizes below one fall back to DefaultEventBuffer.
func NewEventBus(runID string, bufferSize int) *EventBus {
	if bufferSize < 1 {
		bufferSize = DefaultEventBuffer
	}
	return &EventBus{bufferSize: bufferSize, runID: runID}
}

// Subscribe registers a new consumer. The channel yields events in
// publication order and is closed when the run finishes.
func (b *EventBus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, b.bufferSize)}
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish delivers an event to every subscriber without blocking.
func (b *EventBus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.RunID = b.runID

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if sub.dropped > 0 {
			// The subscriber lagged earlier. Deliver the lag notice first
			// so the drop is visible in stream order.
			lag := Event{
				Kind:      EventSubscriberLagged,
				RunID:     b.runID,
				Data:      map[string]any{"count": sub.dropped},
				Timestamp: time.Now(),
			}
			select {
			case sub.ch <- lag:
				sub.dropped = 0
			default:
				sub.dropped++
				continue
			}
		}

		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
		}
	}
}

// Close publishes Done and closes all subscriber channels. Subscribers
// drain buffered events before their channels complete.
func (b *EventBus) Close() {
	done := Event{Kind: EventDone, RunID: b.runID, Timestamp: time.Now()}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subs {
		select {
		case sub.ch <- done:
		default:
		}
		close(sub.ch)
	}
	b.subs = nil
}
