package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub(nil)
	a, cancelA := hub.Subscribe(1)
	b, cancelB := hub.Subscribe(1)
	defer cancelA()
	defer cancelB()

	require.NoError(t, hub.Publish(context.Background(), NewEvent(EventKnowledgeUpdated)))

	assert.Equal(t, EventKnowledgeUpdated, (<-a).Type)
	assert.Equal(t, EventKnowledgeUpdated, (<-b).Type)
}

func TestHubDropsForFullSubscriber(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Broadcast(Event{Type: "one"})
	hub.Broadcast(Event{Type: "two"})

	assert.Equal(t, "one", (<-ch).Type)
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %q", evt.Type)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe(1)
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, hub.Subscribers())
}
