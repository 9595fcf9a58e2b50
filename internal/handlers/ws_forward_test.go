package handlers

import (
	"testing"
	"time"

	"aiassist/internal/models"
	"aiassist/internal/services"
)

func recvMessage(t *testing.T, s *wsSession) models.ServerMessage {
	t.Helper()
	select {
	case msg := <-s.writeChan:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a queued message")
		return models.ServerMessage{}
	}
}

// An event buffered in the subscription before the forwarder starts must
// still be delivered after the initial snapshot, or the client applies an
// update against state it never received.
func TestSyncAndForwardSendsSnapshotFirst(t *testing.T) {
	bus := services.NewEventBus()
	sub := bus.Subscribe(services.TopicCards, 8)
	defer bus.Unsubscribe(sub)

	bus.Publish(services.TopicCards, services.Event{
		Type: models.WSTypeCardCreated,
		Data: map[string]string{"id": "card-1"},
	})

	s := newWSSession(nil, "TEST-WS")
	defer s.close()

	go syncAndForward(s, sub, func() models.ServerMessage {
		return models.ServerMessage{Type: models.WSTypeCardsSync}
	})

	if first := recvMessage(t, s); first.Type != models.WSTypeCardsSync {
		t.Fatalf("first message = %q, want %q", first.Type, models.WSTypeCardsSync)
	}
	if second := recvMessage(t, s); second.Type != models.WSTypeCardCreated {
		t.Fatalf("second message = %q, want %q", second.Type, models.WSTypeCardCreated)
	}
}

func TestSyncAndForwardResyncsOnLag(t *testing.T) {
	bus := services.NewEventBus()
	sub := bus.Subscribe(services.TopicCards, 1)
	defer bus.Unsubscribe(sub)

	// Second publish overflows the one-slot mailbox and raises the lag signal
	bus.Publish(services.TopicCards, services.Event{Type: models.WSTypeCardCreated})
	bus.Publish(services.TopicCards, services.Event{Type: models.WSTypeCardUpdated})

	s := newWSSession(nil, "TEST-WS")
	defer s.close()

	go syncAndForward(s, sub, func() models.ServerMessage {
		return models.ServerMessage{Type: models.WSTypeCardsSync}
	})

	if first := recvMessage(t, s); first.Type != models.WSTypeCardsSync {
		t.Fatalf("first message = %q, want %q", first.Type, models.WSTypeCardsSync)
	}

	// A lagged subscriber must get a fresh snapshot rather than a partial stream
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-s.writeChan:
			if msg.Type == models.WSTypeCardsSync {
				return
			}
		case <-deadline:
			t.Fatalf("no resync snapshot after lag signal")
		}
	}
}
