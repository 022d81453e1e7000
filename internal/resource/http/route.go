package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the CRUD routes for one resource kind under path (e.g. "/items").
func RegisterRoutes(g *gin.RouterGroup, path string, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group(path)

	// === Public Routes ===
	group.GET("", h.List)    // List resources
	group.GET("/:id", h.Get) // Get resource details

	// === Staff Routes ===
	group.POST("", authMiddleware, staffMiddleware, h.Create)       // Create resource
	group.PATCH("/:id", authMiddleware, staffMiddleware, h.Update)  // Update resource, resizing the unit pool
	group.DELETE("/:id", authMiddleware, staffMiddleware, h.Delete) // Delete resource
}
