package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moimhub/club-system/models"
)

func TestHubPublishReachesRoomSubscribersOnly(t *testing.T) {
	hub := NewHub()

	subA := hub.Subscribe("club:1", 4)
	defer subA.Cancel()
	subB := hub.Subscribe("club:2", 4)
	defer subB.Cancel()

	hub.Publish("club:1", Event{Type: EventMessage, Message: &models.Message{ID: 1, ClubID: 1}})

	select {
	case ev := <-subA.C:
		assert.Equal(t, 1, ev.Message.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case ev := <-subB.C:
		t.Fatalf("unexpected event in other room: %+v", ev)
	default:
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe("club:1", 4)
	require.Equal(t, 1, hub.RoomSize("club:1"))

	sub.Cancel()
	assert.Equal(t, 0, hub.RoomSize("club:1"))

	// Повторный Cancel безопасен.
	sub.Cancel()

	_, open := <-sub.C
	assert.False(t, open)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe("club:1", 1)
	hub.Publish("club:1", Event{Type: EventMessage, Message: &models.Message{ID: 1, ClubID: 1}})
	// Буфер полон, подписчик не читает: хаб выкидывает его.
	hub.Publish("club:1", Event{Type: EventMessage, Message: &models.Message{ID: 2, ClubID: 1}})

	assert.Equal(t, 0, hub.RoomSize("club:1"))

	// Канал закрыт после буферизованного события.
	ev, open := <-sub.C
	require.True(t, open)
	assert.Equal(t, 1, ev.Message.ID)
	_, open = <-sub.C
	assert.False(t, open)
}
