package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(Event{Name: EventImportStarted})

	require.Len(t, a, 1)
	require.Len(t, c, 1)
	assert.Equal(t, EventImportStarted, (<-a).Name)
}

func TestBroadcasterDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()

	// Publish never blocks, even past the channel capacity
	for i := 0; i < cap(ch)+10; i++ {
		b.Publish(Event{Name: EventImportCompleted})
	}

	assert.Len(t, ch, cap(ch))
}

func TestBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()

	b.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	// Double unsubscribe must not panic
	b.Unsubscribe(ch)

	b.Publish(Event{Name: EventCampaignStatusChanged})
}
