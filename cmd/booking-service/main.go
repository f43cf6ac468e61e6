package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/medcore/hospital-ops/internal/audit"
	"github.com/medcore/hospital-ops/internal/booking"
	"github.com/medcore/hospital-ops/internal/identity"
	"github.com/medcore/hospital-ops/internal/payments"
	"github.com/medcore/hospital-ops/internal/slots"
	"github.com/medcore/hospital-ops/pkg/auth"
	"github.com/medcore/hospital-ops/pkg/config"
	"github.com/medcore/hospital-ops/pkg/database"
	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/monitoring"
)

const serviceName = "booking-service"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.Infof("Starting %s", serviceName)

	// Connect to the database and ensure the schema exists
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateSchema(ctx); err != nil {
		cancel()
		logger.Fatalf("Failed to create schema: %v", err)
	}
	cancel()

	// Shared infrastructure
	metrics := monitoring.NewMetricsCollector(serviceName)
	health := monitoring.NewHealthManager(serviceName, monitoring.NewDatabaseHealthChecker(db.DB))

	// Audit sink with its background drain worker
	auditRepo := audit.NewRepository(db, logger)
	auditSink := audit.NewSink(auditRepo, cfg.Audit.QueueSize, metrics, logger)
	defer auditSink.Close()

	// Slot store
	slotRepo := slots.NewRepository(db, logger)
	slotService := slots.NewService(slotRepo, auditSink, metrics, logger)

	// Payment gateway adapter
	gateway := payments.NewHTTPGateway(cfg.Gateway, logger)
	processor := payments.NewProcessor(gateway, cfg.Gateway, metrics, logger)

	// Identity client
	identityClient := identity.NewClient(cfg.Identity, logger)

	// Booking orchestrator
	bookingRepo := booking.NewRepository(db, logger)
	bookingService := booking.NewService(bookingRepo, slotService, processor, identityClient,
		auditSink, cfg.Booking, metrics, logger)

	// HTTP routing
	router := mux.NewRouter()
	router.Use(metrics.HTTPMiddleware)
	router.HandleFunc("/health", health.Handler()).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(auth.NewTokenValidator(cfg.JWT.Secret)))

	slots.NewHandler(slotService, logger).RegisterRoutes(api)
	booking.NewHandler(bookingService, logger).RegisterRoutes(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}

	logger.Infof("%s stopped", serviceName)
}
