// Package handlers exposes the REST and WebSocket surface: card and todo
// CRUD, the three live-stream endpoints and health.
package handlers

import "github.com/gofiber/fiber/v2"

// HealthHandler responds to liveness probes
type HealthHandler struct{}

// NewHealthHandler creates a health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Check returns service status
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "ai-assist-cards",
	})
}
