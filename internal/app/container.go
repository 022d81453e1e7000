package app

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/nekogravitycat/campus-borrow-backend/internal/api"
	"github.com/nekogravitycat/campus-borrow-backend/internal/auth"
	"github.com/nekogravitycat/campus-borrow-backend/internal/booking"
	"github.com/nekogravitycat/campus-borrow-backend/internal/config"
	"github.com/nekogravitycat/campus-borrow-backend/internal/db"
	"github.com/nekogravitycat/campus-borrow-backend/internal/mail"
	"github.com/nekogravitycat/campus-borrow-backend/internal/notification"
	"github.com/nekogravitycat/campus-borrow-backend/internal/pkg/storage"
	"github.com/nekogravitycat/campus-borrow-backend/internal/resource"
	"github.com/nekogravitycat/campus-borrow-backend/internal/scheduler"
	"github.com/nekogravitycat/campus-borrow-backend/internal/sms"
	"github.com/nekogravitycat/campus-borrow-backend/internal/unit"
)

// mailWorkers bounds concurrent outgoing notification mails.
const mailWorkers = 8

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Scheduler  *scheduler.Scheduler

	mailPool *ants.Pool
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg *config.Config, pool *pgxpool.Pool) (*Container, error) {
	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret)
	txManager := db.NewTxManager(pool)

	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	mailPool, err := ants.NewPool(mailWorkers, ants.WithExpiryDuration(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to init mail pool: %w", err)
	}

	var mailer mail.Mailer = mail.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		zap.L().Warn("SMTP_HOST not set, notification mail disabled")
	}

	var smsSender sms.Sender
	if cfg.SemaphoreAPIKey != "" {
		smsSender = sms.NewSemaphoreSender(cfg.SemaphoreAPIKey, cfg.SemaphoreSender, cfg.SemaphoreEndpoint)
	} else {
		zap.L().Warn("SEMAPHORE_API_KEY not set, overdue SMS disabled")
	}

	// Resource and Unit Modules
	resRepo := resource.NewPgxRepository(pool)
	unitRepo := unit.NewPgxRepository(pool)
	// Units read their item through the resource repository so the two services
	// do not depend on each other.
	unitService := unit.NewService(unitRepo, resRepo, store, storage.NewQRRenderer(cfg.QRSize), txManager)
	resService := resource.NewService(resRepo, unitService, txManager)

	// Notification Module
	notifRepo := notification.NewPgxRepository(pool)
	notifService := notification.NewService(notifRepo, mailer, mailPool)

	// Booking Module
	bookingRepo := booking.NewPgxRepository(pool)
	bookingService := booking.NewService(bookingRepo, resService, unitService, notifService, smsSender, txManager, booking.Options{
		NotifyOnCreate:       cfg.NotifyOnCreate,
		StrictUnitAllocation: cfg.StrictUnitAllocation,
		Location:             cfg.Location,
		SMSWorkers:           cfg.SMSWorkers,
	})

	sched, err := scheduler.New(cfg.OverdueScanSpec, cfg.Location, bookingService)
	if err != nil {
		mailPool.Release()
		return nil, err
	}

	// API Router Config
	router := api.NewRouter(api.Config{
		IsProduction:        cfg.IsProduction,
		ProdOrigins:         cfg.ProdOrigins,
		ResourceService:     resService,
		UnitService:         unitService,
		BookingService:      bookingService,
		NotificationService: notifService,
		JWTManager:          jwtManager,
	})

	return &Container{
		Router:     router,
		JWTManager: jwtManager,
		Scheduler:  sched,
		mailPool:   mailPool,
	}, nil
}

// Close waits briefly for queued mail and releases the worker pool.
func (c *Container) Close() {
	if err := c.mailPool.ReleaseTimeout(10 * time.Second); err != nil {
		zap.L().Warn("mail pool did not drain", zap.Error(err))
	}
}
