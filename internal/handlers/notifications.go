package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v2 "github.com/tower-qa/tower-qa/api/v2"
)

// TestNotification sends a test message through a template.
// (POST /notification_templates/{id}/test/)
func (h *Handler) TestNotification(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	n, err := h.notifications.Test(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"notification": n.ID})
}

// ListNotifications (GET /notification_templates/{id}/notifications/)
func (h *Handler) ListNotifications(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := h.resources.Get(c.Request.Context(), "notification_templates", id); err != nil {
		abort(c, err)
		return
	}
	items := h.notifications.List(c.Request.Context(), id)
	out := make([]v2.Notification, 0, len(items))
	for _, n := range items {
		out = append(out, v2.NewNotification(n))
	}
	page, ok := paginate(c, out)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, page)
}
