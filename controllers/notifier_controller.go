package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quantpulse/services/notifier"
)

// NotifierController handles notification endpoints
type NotifierController struct {
	service *notifier.Service
	hub     *notifier.Hub
}

// NewNotifierController creates a new notifier controller
func NewNotifierController(service *notifier.Service, hub *notifier.Hub) *NotifierController {
	return &NotifierController{service: service, hub: hub}
}

// Recent returns the most recently delivered notifications
// GET /api/v1/notifications/recent?limit=
func (ctrl *NotifierController) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	notifications, err := ctrl.service.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// Dispatch delivers all pending signal notifications
// POST /api/v1/notifications/dispatch (admin)
func (ctrl *NotifierController) Dispatch(c *gin.Context) {
	summary, err := ctrl.service.NotifyPending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Stream upgrades to a websocket that receives triggered signals
// GET /api/v1/notifications/ws
func (ctrl *NotifierController) Stream(c *gin.Context) {
	ctrl.hub.ServeWS(c)
}
