package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the notification inbox of the signed-in user.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/notifications")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)                        // Latest notifications with unread count
		group.GET("/unread-count", h.UnreadCount)    // Unread badge
		group.PATCH("/:id/read", h.MarkRead)         // Mark one read
		group.PATCH("/mark-all-read", h.MarkAllRead) // Mark all read
		group.DELETE("/clear-all", h.ClearAll)       // Delete all
	}
}
