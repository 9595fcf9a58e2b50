package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"aiassist/internal/database"
	"aiassist/internal/models"
	"aiassist/internal/services"
)

// TodoHandler is the REST surface for todos, mirroring the /ws/todos actions
type TodoHandler struct {
	todos    *services.TodoService
	activity *database.ActivityStore
}

// NewTodoHandler creates a todo handler
func NewTodoHandler(todos *services.TodoService, activity *database.ActivityStore) *TodoHandler {
	return &TodoHandler{todos: todos, activity: activity}
}

// List returns todos. ?all=true includes completed ones.
// GET /api/todos
func (h *TodoHandler) List(c *fiber.Ctx) error {
	var (
		todos []*models.TodoItem
		err   error
	)
	if c.Query("all") == "true" {
		todos, err = h.todos.List(c.Context(), services.DefaultUserID)
	} else {
		todos, err = h.todos.ListActive(c.Context(), services.DefaultUserID)
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list todos")
	}
	return c.JSON(todos)
}

// Get returns one todo
// GET /api/todos/:id
func (h *TodoHandler) Get(c *fiber.Ctx) error {
	id, err := todoID(c)
	if err != nil {
		return err
	}

	todo, err := h.todos.Get(c.Context(), id)
	if err != nil {
		return todoErr(err)
	}
	return c.JSON(todo)
}

// Create makes a new todo
// POST /api/todos
func (h *TodoHandler) Create(c *fiber.Ctx) error {
	var body models.TodoAction
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	todo := todoFromAction(&body)
	created, err := h.todos.Create(c.Context(), todo)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// Update replaces a todo's editable fields
// PUT /api/todos/:id
func (h *TodoHandler) Update(c *fiber.Ctx) error {
	id, err := todoID(c)
	if err != nil {
		return err
	}

	var body models.TodoAction
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	todo := todoFromAction(&body)
	todo.ID = id
	updated, err := h.todos.Update(c.Context(), todo)
	if err != nil {
		return todoErr(err)
	}
	return c.JSON(updated)
}

// Complete marks a todo as done
// POST /api/todos/:id/complete
func (h *TodoHandler) Complete(c *fiber.Ctx) error {
	id, err := todoID(c)
	if err != nil {
		return err
	}

	todo, err := h.todos.Complete(c.Context(), id)
	if err != nil {
		return todoErr(err)
	}
	return c.JSON(todo)
}

// Snooze parks a created todo until a given time
// POST /api/todos/:id/snooze
func (h *TodoHandler) Snooze(c *fiber.Ctx) error {
	id, err := todoID(c)
	if err != nil {
		return err
	}

	var body struct {
		Until time.Time `json:"until"`
	}
	if err := c.BodyParser(&body); err != nil || body.Until.IsZero() {
		return fiber.NewError(fiber.StatusBadRequest, "until is required")
	}

	todo, err := h.todos.Snooze(c.Context(), id, body.Until)
	if err != nil {
		return todoErr(err)
	}
	return c.JSON(todo)
}

// Activity returns a todo's full activity history in append order.
// The live stream is /ws/todos/:id/activity; this is the one-shot view.
// GET /api/todos/:id/activity
func (h *TodoHandler) Activity(c *fiber.Ctx) error {
	id, err := todoID(c)
	if err != nil {
		return err
	}

	if _, err := h.todos.Get(c.Context(), id); err != nil {
		return todoErr(err)
	}
	records, err := h.activity.GetForTodo(c.Context(), id)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load activity")
	}
	if records == nil {
		records = []models.ActivityRecord{}
	}
	return c.JSON(records)
}

// Delete removes a todo permanently
// DELETE /api/todos/:id
func (h *TodoHandler) Delete(c *fiber.Ctx) error {
	id, err := todoID(c)
	if err != nil {
		return err
	}

	if err := h.todos.Delete(c.Context(), id); err != nil {
		return todoErr(err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

func todoFromAction(a *models.TodoAction) *models.TodoItem {
	todo := &models.TodoItem{
		Title:        a.Title,
		Description:  a.Description,
		TodoType:     a.TodoType,
		Bucket:       a.Bucket,
		DueDate:      a.DueDate,
		Context:      a.Context,
		SourceCardID: a.SourceCardID,
	}
	if a.Priority != nil {
		todo.Priority = *a.Priority
	}
	return todo
}

func todoID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "malformed todo id")
	}
	return id, nil
}

func todoErr(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "todo not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
