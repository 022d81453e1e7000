package api

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/campus-borrow-backend/internal/auth"
	"github.com/nekogravitycat/campus-borrow-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/campus-borrow-backend/internal/booking/http"
	"github.com/nekogravitycat/campus-borrow-backend/internal/notification"
	notificationHttp "github.com/nekogravitycat/campus-borrow-backend/internal/notification/http"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/request"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
	resourceHttp "github.com/nekogravitycat/campus-borrow-backend/internal/resource/http"
	"github.com/nekogravitycat/campus-borrow-backend/internal/unit"
	unitHttp "github.com/nekogravitycat/campus-borrow-backend/internal/unit/http"
)

// Config holds the services the router exposes.
type Config struct {
	IsProduction bool
	ProdOrigins  string

	ResourceService     resource.Service
	UnitService         unit.Service
	BookingService      booking.Service
	NotificationService notification.Service
	JWTManager          *auth.JWTManager
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	request.RegisterValidators()

	r := gin.New()

	// Global Middleware:
	// - RequestLogger: one zap line per request.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestLogger(), Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{
		"http://localhost:8081", // Expo dev client
	}
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		config.AllowOrigins = strings.Split(cfg.ProdOrigins, ",")
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	mw := bookingHttp.Middlewares{
		Auth:     authMiddleware,
		Optional: auth.OptionalAuth(cfg.JWTManager),
		Staff:    auth.RequireStaff(),
	}

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	itemHandler := resourceHttp.NewHandler(resource.KindItem, cfg.ResourceService)
	roomHandler := resourceHttp.NewHandler(resource.KindRoom, cfg.ResourceService)
	unitHandler := unitHttp.NewHandler(cfg.UnitService)
	itemRequestHandler := bookingHttp.NewHandler(resource.KindItem, cfg.BookingService)
	roomRequestHandler := bookingHttp.NewHandler(resource.KindRoom, cfg.BookingService)
	scanHandler := bookingHttp.NewScanHandler(cfg.BookingService)
	notificationHandler := notificationHttp.NewHandler(cfg.NotificationService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		resourceHttp.RegisterRoutes(v1, "/items", itemHandler, authMiddleware, mw.Staff)
		resourceHttp.RegisterRoutes(v1, "/rooms", roomHandler, authMiddleware, mw.Staff)
		unitHttp.RegisterRoutes(v1, unitHandler, authMiddleware, mw.Staff)
		bookingHttp.RegisterRoutes(v1, "/requests", "/items", itemRequestHandler, mw)
		bookingHttp.RegisterRoutes(v1, "/room-requests", "/rooms", roomRequestHandler, mw)
		bookingHttp.RegisterScanRoute(v1, scanHandler, mw)
		notificationHttp.RegisterRoutes(v1, notificationHandler, authMiddleware)
	}

	return r
}
