package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDeliveryOrder(t *testing.T) {
	bus := NewEventBus("run-1", 8)
	sub := bus.Subscribe()

	bus.Publish(Event{Kind: EventVertexStarted, VertexID: "a"})
	bus.Publish(Event{Kind: EventVertexCompleted, VertexID: "a"})
	bus.Close()

	var kinds []EventKind
	for ev := range sub {
		kinds = append(kinds, ev.Kind)
		assert.Equal(t, "run-1", ev.RunID)
	}
	assert.Equal(t, []EventKind{EventVertexStarted, EventVertexCompleted, EventDone}, kinds)
}

func TestEventBusDropsWhenFull(t *testing.T) {
	bus := NewEventBus("run-1", 2)
	sub := bus.Subscribe()

	bus.Publish(Event{Kind: EventMessage, Data: map[string]any{"text": "1"}})
	bus.Publish(Event{Kind: EventMessage, Data: map[string]any{"text": "2"}})
	// Buffer full: this one is dropped for the lagging subscriber.
	bus.Publish(Event{Kind: EventMessage, Data: map[string]any{"text": "3"}})

	first := <-sub
	second := <-sub
	assert.Equal(t, "1", first.Data["text"])
	assert.Equal(t, "2", second.Data["text"])

	// Once the buffer drains, the next publish delivers the lag notice
	// before the new event.
	bus.Publish(Event{Kind: EventMessage, Data: map[string]any{"text": "4"}})

	lag := <-sub
	require.Equal(t, EventSubscriberLagged, lag.Kind)
	assert.Equal(t, 1, lag.Data["count"])

	fourth := <-sub
	assert.Equal(t, "4", fourth.Data["text"])
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus("run-1", 8)
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()

	bus.Publish(Event{Kind: EventProgress, Data: map[string]any{"stage": "half"}})
	bus.Close()

	for _, sub := range []<-chan Event{sub1, sub2} {
		ev := <-sub
		assert.Equal(t, EventProgress, ev.Kind)
		done := <-sub
		assert.Equal(t, EventDone, done.Kind)
	}
}

func TestEventBusSubscribeAfterClose(t *testing.T) {
	bus := NewEventBus("run-1", 8)
	bus.Close()

	sub := bus.Subscribe()
	_, open := <-sub
	assert.False(t, open)
}

func TestRunWithCallback(t *testing.T) {
	w := New("cb")
	require.NoError(t, w.AddVertex(NewFunction("work",
		func(ctx context.Context, rc *RunContext, inputs map[string]any) (map[string]any, error) {
			rc.Progress("work", 50, "halfway")
			return map[string]any{"ok": true}, nil
		},
	)))

	runner, err := NewRunner(w)
	require.NoError(t, err)

	var kinds []EventKind
	var progress Event
	result, err := runner.RunWithCallback(context.Background(), nil, func(ev Event) {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventProgress {
			progress = ev
		}
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	require.NotEmpty(t, kinds)
	// Every run ends with Done on the callback.
	assert.Equal(t, EventDone, kinds[len(kinds)-1])
	assert.Contains(t, kinds, EventVertexStarted)
	assert.Contains(t, kinds, EventVertexCompleted)

	require.Equal(t, EventProgress, progress.Kind)
	assert.Equal(t, "work", progress.VertexID)
	assert.Equal(t, 50.0, progress.Data["percent"])
	assert.Equal(t, "halfway", progress.Data["stage"])
}

func TestEventBusPublishAfterCloseIsNoOp(t *testing.T) {
	bus := NewEventBus("run-1", 8)
	sub := bus.Subscribe()
	bus.Close()
	bus.Publish(Event{Kind: EventMessage})

	var kinds []EventKind
	for ev := range sub {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventDone}, kinds)
}
