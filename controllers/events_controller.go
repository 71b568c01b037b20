package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quantpulse/apperrors"
	"quantpulse/events"
)

// EventsController exposes the recent history of the event bus
type EventsController struct {
	bus *events.Bus
}

// NewEventsController creates a new events controller
func NewEventsController(bus *events.Bus) *EventsController {
	return &EventsController{bus: bus}
}

// Recent returns the most recent events of one type, newest first
// GET /api/v1/events/recent?type=&limit= (admin)
func (ctrl *EventsController) Recent(c *gin.Context) {
	eventType := events.EventType(c.Query("type"))
	if !events.IsKnownEventType(eventType) {
		respondError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown event type"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	recent, err := ctrl.bus.Recent(c.Request.Context(), eventType, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":   eventType,
		"events": recent,
		"count":  len(recent),
	})
}
