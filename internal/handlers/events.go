package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studhelper/studhelper/internal/dialog"
	"github.com/studhelper/studhelper/pkg/response"
)

// EventProcessor advances a user's dialog by one event.
type EventProcessor interface {
	Handle(ctx context.Context, event dialog.Event) (dialog.Outcome, error)
}

// EventHandler is the HTTP adapter of the chat transport.
type EventHandler struct {
	machine EventProcessor
}

// NewEventHandler wraps the dialog machine.
func NewEventHandler(machine EventProcessor) *EventHandler {
	return &EventHandler{machine: machine}
}

// POST /api/events
func (h *EventHandler) Handle(c *gin.Context) {
	var event dialog.Event
	if !bindAndValidate(c, &event) {
		return
	}

	outcome, err := h.machine.Handle(requestContext(c), event)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}
