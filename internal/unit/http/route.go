package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers unit pool routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	// === Public Routes ===
	g.GET("/scan/:code", h.Scan) // Look up a unit by the code on its label

	// === Authenticated Routes ===
	g.GET("/items/:id/units", authMiddleware, h.ListByItem)                                // Units of an item with counts
	g.GET("/items/:id/units/qr.zip", authMiddleware, staffMiddleware, h.DownloadQRArchive) // Every label of an item
	units := g.Group("/units", authMiddleware)
	{
		units.PATCH("/:id", staffMiddleware, h.UpdateStatus) // available <-> maintenance
		units.GET("/:id/qr", h.ServeQR)                      // PNG label
	}
}
