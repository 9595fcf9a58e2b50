package handlers

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"aiassist/internal/database"
	"aiassist/internal/models"
	"aiassist/internal/services"
)

// ActivityWebSocketHandler streams one todo's agent activity on
// /ws/todos/:id/activity. Connecting replays the persisted history, then
// follows live events.
type ActivityWebSocketHandler struct {
	activity *database.ActivityStore
	bus      *services.EventBus
}

// NewActivityWebSocketHandler creates the activity stream handler
func NewActivityWebSocketHandler(activity *database.ActivityStore, bus *services.EventBus) *ActivityWebSocketHandler {
	return &ActivityWebSocketHandler{activity: activity, bus: bus}
}

// Handle runs one activity stream connection. Events carry a per-todo
// sequence number assigned at persist time; the forwarder drops live events
// at or below the last replayed sequence, so the client sees every event
// exactly once and in order even though replay and live delivery overlap.
func (h *ActivityWebSocketHandler) Handle(c *websocket.Conn) {
	todoID := c.Params("id")
	if _, err := uuid.Parse(todoID); err != nil {
		c.WriteJSON(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": "malformed todo id"}})
		return
	}

	s := newWSSession(c, "ACTIVITY-WS")
	s.start()

	ctx := context.Background()
	sub := h.bus.Subscribe(services.ActivityTopic(todoID), wsWriteBuffer)

	defer func() {
		s.close()
		h.bus.Unsubscribe(sub)
	}()

	// lastSent is the highest sequence delivered to this client
	var lastSent atomic.Int64

	// Replay before the forwarder starts. Events published during replay
	// buffer in the subscription; the forwarder then skips any at or below
	// the replayed high-water mark, so the client sees each event exactly
	// once and in order.
	h.replay(ctx, s, todoID, &lastSent)

	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-sub.Lagged:
				sub.Drain()
				h.replay(ctx, s, todoID, &lastSent)
			case event := <-sub.C:
				record, ok := event.Data.(models.ActivityRecord)
				if !ok {
					continue
				}
				if record.Seq <= lastSent.Load() {
					continue // already covered by replay
				}
				lastSent.Store(record.Seq)
				s.send(models.ServerMessage{Type: event.Type, Data: record})
			}
		}
	}()

	// No client actions on this endpoint; the read loop only tracks liveness
	s.readLoop(func(raw []byte) bool { return true })
}

// replay sends the full persisted stream for a todo and records the highest
// sequence delivered
func (h *ActivityWebSocketHandler) replay(ctx context.Context, s *wsSession, todoID string, lastSent *atomic.Int64) {
	records, err := h.activity.GetForTodo(ctx, todoID)
	if err != nil {
		log.Printf("[ACTIVITY-WS] Replay failed for todo %s: %v", todoID, err)
		s.send(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": "failed to load activity history"}})
		return
	}

	for _, record := range records {
		if record.Seq > lastSent.Load() {
			lastSent.Store(record.Seq)
		}
		s.send(models.ServerMessage{Type: string(record.Event.Type), Data: record})
	}
}
