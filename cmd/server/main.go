package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/campus-borrow-backend/internal/app"
	"github.com/nekogravitycat/campus-borrow-backend/internal/config"
	"github.com/nekogravitycat/campus-borrow-backend/internal/db"
	"github.com/nekogravitycat/campus-borrow-backend/internal/logger"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Init logger
	syncLogger, err := logger.Init(logger.Options{Mode: cfg.LogMode, Filename: cfg.LogFile})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer syncLogger()

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
	if err != nil {
		zap.L().Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		zap.L().Fatal("failed to apply schema", zap.Error(err))
	}

	// Init modules
	container, err := app.NewContainer(cfg, pool)
	if err != nil {
		zap.L().Fatal("failed to init container", zap.Error(err))
	}
	defer container.Close()

	container.Scheduler.Start()

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	go func() {
		zap.L().Info("server running", zap.String("addr", cfg.HTTPAddr), zap.String("timezone", cfg.Location.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	zap.L().Info("shutdown signal received")

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server forced to shutdown", zap.Error(err))
	}
	if err := container.Scheduler.Stop(shutdownCtx); err != nil {
		zap.L().Warn("scheduler did not stop in time", zap.Error(err))
	}

	zap.L().Info("server exited gracefully")
}
