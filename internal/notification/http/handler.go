package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/campus-borrow-backend/internal/auth"
	"github.com/nekogravitycat/campus-borrow-backend/internal/notification"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/request"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/response"
)

type Handler struct {
	service notification.Service
}

func NewHandler(service notification.Service) *Handler {
	return &Handler{service: service}
}

// sessionEmail returns the caller's email, writing a 401 when the session has none.
func sessionEmail(c *gin.Context) (string, bool) {
	email := auth.GetUserEmail(c)
	if email == "" {
		response.Message(c, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return email, true
}

func (h *Handler) List(c *gin.Context) {
	email, ok := sessionEmail(c)
	if !ok {
		return
	}

	items, unread, err := h.service.List(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]NotificationResponse, len(items))
	for i, n := range items {
		out[i] = NewResponse(n)
	}
	c.JSON(http.StatusOK, ListResponse{Notifications: out, UnreadCount: unread})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	email, ok := sessionEmail(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *Handler) MarkRead(c *gin.Context) {
	email, ok := sessionEmail(c)
	if !ok {
		return
	}

	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, request.BindError(err))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), email, uri.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Notification marked as read")
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	email, ok := sessionEmail(c)
	if !ok {
		return
	}

	if _, err := h.service.MarkAllRead(c.Request.Context(), email); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "All notifications marked as read")
}

func (h *Handler) ClearAll(c *gin.Context) {
	email, ok := sessionEmail(c)
	if !ok {
		return
	}

	deleted, err := h.service.ClearAll(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "All notifications cleared",
		"deleted_count": deleted,
	})
}
