package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
)

// Middlewares groups the session guards used by the booking routes.
type Middlewares struct {
	Auth     gin.HandlerFunc // session required
	Optional gin.HandlerFunc // session attached when present
	Staff    gin.HandlerFunc // staff role, after Auth
}

// RegisterRoutes registers the request routes of one kind under path (e.g. "/requests")
// and its availability check under resourcePath (e.g. "/items").
func RegisterRoutes(g *gin.RouterGroup, path, resourcePath string, h *Handler, mw Middlewares) {
	// === Public Routes ===
	g.GET(resourcePath+"/:id/availability", h.Availability) // Remaining capacity for a slot

	group := g.Group(path)
	group.POST("", mw.Optional, h.Submit) // Submit a request, anonymous or signed in

	// === Authenticated Routes ===
	group.GET("", mw.Auth, h.List)          // Own requests, or all for staff
	group.GET("/:id", mw.Auth, h.Get)       // Request detail, owner or staff
	group.DELETE("/:id", mw.Auth, h.Cancel) // Cancel and release the unit

	// === Staff Routes ===
	group.PATCH("/:id/return", mw.Auth, mw.Staff, h.MarkReturned) // Mark returned
	group.POST("/:id/overdue", mw.Auth, mw.Staff, h.MarkOverdue)  // Raise the overdue notification
	if h.kind == resource.KindRoom {
		group.PATCH("/:id", mw.Auth, mw.Staff, h.UpdateStatus) // Approve, reject or cancel
	}
}

// RegisterScanRoute registers the on-demand overdue sweep.
func RegisterScanRoute(g *gin.RouterGroup, h *ScanHandler, mw Middlewares) {
	g.POST("/overdue/scan", mw.Auth, mw.Staff, h.Scan)
}
