package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"

	"aiassist/internal/models"
	"aiassist/internal/services"
)

// CardsWebSocketHandler streams card lifecycle events on /ws/cards and
// accepts approve/dismiss/edit actions from the client.
type CardsWebSocketHandler struct {
	queue   *services.CardQueue
	bus     *services.EventBus
	metrics *services.Metrics
}

// NewCardsWebSocketHandler creates the /ws/cards handler
func NewCardsWebSocketHandler(queue *services.CardQueue, bus *services.EventBus, metrics *services.Metrics) *CardsWebSocketHandler {
	return &CardsWebSocketHandler{queue: queue, bus: bus, metrics: metrics}
}

// Handle runs one /ws/cards connection. The subscription is taken before the
// snapshot is sent, so every event is either in the snapshot or delivered
// after it; a lagged subscriber is resynced with a fresh snapshot.
func (h *CardsWebSocketHandler) Handle(c *websocket.Conn) {
	s := newWSSession(c, "CARDS-WS")
	s.start()

	ctx := context.Background()
	sub := h.bus.Subscribe(services.TopicCards, wsWriteBuffer)
	h.trackSubscribers()

	defer func() {
		s.close()
		h.bus.Unsubscribe(sub)
		h.trackSubscribers()
	}()

	go syncAndForward(s, sub, func() models.ServerMessage { return h.snapshot(ctx) })

	s.readLoop(func(raw []byte) bool {
		var action models.CardAction
		if err := json.Unmarshal(raw, &action); err != nil {
			s.send(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": "invalid message format"}})
			return true
		}
		h.handleAction(ctx, s, action)
		return true
	})
}

func (h *CardsWebSocketHandler) handleAction(ctx context.Context, s *wsSession, action models.CardAction) {
	switch action.Action {
	case "ping":
		s.send(models.ServerMessage{Type: models.WSTypePong})

	case "approve":
		if card := h.queue.Approve(ctx, action.CardID); card == nil {
			log.Printf("[CARDS-WS] Approve no-op, card %s not found or not pending", action.CardID)
		}

	case "dismiss":
		if !h.queue.Dismiss(ctx, action.CardID) {
			log.Printf("[CARDS-WS] Dismiss no-op, card %s not found or not pending", action.CardID)
		}

	case "edit":
		if action.NewText == "" {
			s.send(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": "new_text is required"}})
			return
		}
		if card := h.queue.Edit(ctx, action.CardID, action.NewText); card == nil {
			log.Printf("[CARDS-WS] Edit no-op, card %s not found or not pending", action.CardID)
		}

	default:
		s.send(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": "unknown action"}})
	}
}

func (h *CardsWebSocketHandler) snapshot(ctx context.Context) models.ServerMessage {
	return models.ServerMessage{
		Type: models.WSTypeCardsSync,
		Data: map[string]any{"cards": h.queue.Pending(ctx)},
	}
}

func (h *CardsWebSocketHandler) trackSubscribers() {
	if h.metrics != nil {
		h.metrics.WSSubscribers.WithLabelValues(services.TopicCards).Set(float64(h.bus.SubscriberCount(services.TopicCards)))
	}
}
