package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/types"
)

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all, cancelAll := bus.Subscribe(Filter{}, 4)
	defer cancelAll()

	sessionID := types.NewID()
	scoped, cancelScoped := bus.Subscribe(Filter{SessionID: sessionID}, 4)
	defer cancelScoped()

	typed, cancelTyped := bus.Subscribe(Filter{Types: []EventType{SessionCompleted}}, 4)
	defer cancelTyped()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, Event{Type: StateTransition, SessionID: sessionID, Node: "evaluate"}))
	require.NoError(t, bus.Publish(ctx, Event{Type: StateTransition, SessionID: types.NewID()}))

	assert.Len(t, all, 2)
	assert.Len(t, scoped, 1)
	assert.Len(t, typed, 0)

	event := <-scoped
	assert.Equal(t, "evaluate", event.Node)
	assert.False(t, event.At.IsZero())
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe(Filter{}, 1)
	defer cancel()

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, Event{Type: SessionStarted}))
	// Buffer is full; this publish must return immediately.
	require.NoError(t, bus.Publish(ctx, Event{Type: SessionStarted}))

	assert.Len(t, ch, 1)
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe(Filter{}, 4)
	cancel()

	_, open := <-ch
	assert.False(t, open)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: SessionStarted}))
}

func TestClosedBusRejectsPublish(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), Event{Type: SessionStarted})
	require.Error(t, err)

	// Closing twice is harmless.
	require.NoError(t, bus.Close())
}
