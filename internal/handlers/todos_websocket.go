package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"

	"aiassist/internal/models"
	"aiassist/internal/services"
)

// TodosWebSocketHandler streams todo lifecycle events on /ws/todos and
// accepts create/complete/delete/update/snooze actions.
type TodosWebSocketHandler struct {
	todos   *services.TodoService
	bus     *services.EventBus
	metrics *services.Metrics
}

// NewTodosWebSocketHandler creates the /ws/todos handler
func NewTodosWebSocketHandler(todos *services.TodoService, bus *services.EventBus, metrics *services.Metrics) *TodosWebSocketHandler {
	return &TodosWebSocketHandler{todos: todos, bus: bus, metrics: metrics}
}

// Handle runs one /ws/todos connection
func (h *TodosWebSocketHandler) Handle(c *websocket.Conn) {
	s := newWSSession(c, "TODOS-WS")
	s.start()

	ctx := context.Background()
	sub := h.bus.Subscribe(services.TopicTodos, wsWriteBuffer)
	h.trackSubscribers()

	defer func() {
		s.close()
		h.bus.Unsubscribe(sub)
		h.trackSubscribers()
	}()

	go syncAndForward(s, sub, func() models.ServerMessage { return h.snapshot(ctx) })

	s.readLoop(func(raw []byte) bool {
		var action models.TodoAction
		if err := json.Unmarshal(raw, &action); err != nil {
			s.send(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": "invalid message format"}})
			return true
		}
		h.handleAction(ctx, s, action)
		return true
	})
}

func (h *TodosWebSocketHandler) handleAction(ctx context.Context, s *wsSession, action models.TodoAction) {
	switch action.Action {
	case "ping":
		s.send(models.ServerMessage{Type: models.WSTypePong})

	case "create":
		todo := todoFromAction(&action)
		if _, err := h.todos.Create(ctx, todo); err != nil {
			s.send(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": err.Error()}})
		}

	case "complete":
		if _, err := h.todos.Complete(ctx, action.TodoID); err != nil {
			log.Printf("[TODOS-WS] Complete no-op for %s: %v", action.TodoID, err)
		}

	case "delete":
		if err := h.todos.Delete(ctx, action.TodoID); err != nil {
			log.Printf("[TODOS-WS] Delete no-op for %s: %v", action.TodoID, err)
		}

	case "update":
		todo := todoFromAction(&action)
		todo.ID = action.TodoID
		if _, err := h.todos.Update(ctx, todo); err != nil {
			log.Printf("[TODOS-WS] Update no-op for %s: %v", action.TodoID, err)
		}

	case "snooze":
		if action.SnoozedUntil == nil {
			s.send(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": "snoozed_until is required"}})
			return
		}
		if _, err := h.todos.Snooze(ctx, action.TodoID, *action.SnoozedUntil); err != nil {
			log.Printf("[TODOS-WS] Snooze no-op for %s: %v", action.TodoID, err)
		}

	default:
		s.send(models.ServerMessage{Type: models.WSTypeError, Data: map[string]string{"message": "unknown action"}})
	}
}

// snapshot carries all non-completed todos; completed ones are filtered
// from the live feed
func (h *TodosWebSocketHandler) snapshot(ctx context.Context) models.ServerMessage {
	todos, err := h.todos.ListActive(ctx, services.DefaultUserID)
	if err != nil {
		log.Printf("[TODOS-WS] Snapshot failed: %v", err)
		todos = nil
	}
	return models.ServerMessage{
		Type: models.WSTypeTodosSync,
		Data: map[string]any{"todos": todos},
	}
}

func (h *TodosWebSocketHandler) trackSubscribers() {
	if h.metrics != nil {
		h.metrics.WSSubscribers.WithLabelValues(services.TopicTodos).Set(float64(h.bus.SubscriberCount(services.TopicTodos)))
	}
}
