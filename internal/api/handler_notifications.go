package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetNotifications handles GET /api/users/{user_id}/notifications[?unread=true].
func (h *Handler) GetNotifications(c *gin.Context) {
	userID, ok := idParam(c, "user_id")
	if !ok {
		return
	}
	ns, err := h.store.ListNotificationsForUser(c.Request.Context(), userID, c.Query("unread") == "true", limitQuery(c, 50, 500))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}

// MarkNotificationRead handles POST /api/notifications/{notification_id}/read.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := idParam(c, "notification_id")
	if !ok {
		return
	}
	if err := h.store.MarkNotificationRead(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type broadcastRequest struct {
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Broadcast handles POST /api/admin/notifications/broadcast. The notifications
// are delivered by the next sweep.
func (h *Handler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	n, err := h.dispatcher.Broadcast(c.Request.Context(), h.store, req.Title, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"created": n})
}
