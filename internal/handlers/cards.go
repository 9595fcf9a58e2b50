package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"aiassist/internal/services"
)

// CardHandler is the REST side-channel for card actions. Most clients use
// /ws/cards; REST exists for scripts and one-shot integrations.
type CardHandler struct {
	queue *services.CardQueue
}

// NewCardHandler creates a card handler
func NewCardHandler(queue *services.CardQueue) *CardHandler {
	return &CardHandler{queue: queue}
}

// List returns all pending cards
// GET /api/cards
func (h *CardHandler) List(c *fiber.Ctx) error {
	return c.JSON(h.queue.Pending(c.Context()))
}

// Approve transitions a pending card to approved
// POST /api/cards/:id/approve
func (h *CardHandler) Approve(c *fiber.Ctx) error {
	id, err := cardID(c)
	if err != nil {
		return err
	}

	card := h.queue.Approve(c.Context(), id)
	if card == nil {
		return fiber.NewError(fiber.StatusNotFound, "card not found or not pending")
	}
	return c.JSON(card)
}

// Dismiss transitions a pending card to dismissed
// POST /api/cards/:id/dismiss
func (h *CardHandler) Dismiss(c *fiber.Ctx) error {
	id, err := cardID(c)
	if err != nil {
		return err
	}

	if !h.queue.Dismiss(c.Context(), id) {
		return fiber.NewError(fiber.StatusNotFound, "card not found or not pending")
	}
	return c.JSON(fiber.Map{"status": "dismissed"})
}

// Edit replaces a pending card's suggested reply and resolves it as edited
// POST /api/cards/:id/edit
func (h *CardHandler) Edit(c *fiber.Ctx) error {
	id, err := cardID(c)
	if err != nil {
		return err
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&body); err != nil || body.Text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	card := h.queue.Edit(c.Context(), id, body.Text)
	if card == nil {
		return fiber.NewError(fiber.StatusNotFound, "card not found or not pending")
	}
	return c.JSON(card)
}

// cardID validates the :id path parameter as a uuid
func cardID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "malformed card id")
	}
	return id, nil
}
