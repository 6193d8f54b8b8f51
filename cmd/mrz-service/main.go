package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/idcheck/mrzscan/internal/docscan/events"
	"github.com/idcheck/mrzscan/internal/docscan/handler"
	"github.com/idcheck/mrzscan/internal/docscan/processor"
	"github.com/idcheck/mrzscan/internal/docscan/repository"
	"github.com/idcheck/mrzscan/internal/docscan/service"
	"github.com/idcheck/mrzscan/internal/docscan/storage"
	"github.com/idcheck/mrzscan/internal/mrz"
	"github.com/idcheck/mrzscan/internal/ocr"
	"github.com/idcheck/mrzscan/pkg/auth"
	"github.com/idcheck/mrzscan/pkg/config"
	"github.com/idcheck/mrzscan/pkg/database"
	"github.com/idcheck/mrzscan/pkg/httputil"
	"github.com/idcheck/mrzscan/pkg/logger"
	"github.com/idcheck/mrzscan/pkg/messaging"
)

const serviceName = "mrz-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting MRZ Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []service.Option
	health := map[string]func(context.Context) map[string]string{}

	// Connect to database (audit trail)
	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		auditRepo := repository.NewAuditRepository(db)
		if err := auditRepo.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate audit table")
		}
		opts = append(opts, service.WithAuditStore(auditRepo))
		health["database"] = db.Health
	} else {
		log.Warn().Msg("database disabled, scans are not audited")
	}

	// Connect to RabbitMQ (scan events)
	if cfg.RabbitMQ.Enabled {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()
		go rmq.WatchConnection(ctx)

		publisher, err := events.NewScanEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		opts = append(opts, service.WithEvents(publisher))
		health["rabbitmq"] = func(context.Context) map[string]string { return rmq.Health() }
	} else {
		log.Warn().Msg("rabbitmq disabled, scan events are not published")
	}

	// Initialize OCR engine; without one only text scans are served
	var engine ocr.Engine
	tess, err := ocr.NewTesseract(ocr.Config{
		Language:       cfg.Scanner.Language,
		TessdataPrefix: cfg.Scanner.TessdataPrefix,
	})
	switch {
	case err == nil:
		engine = tess
		defer tess.Close()
	case errors.Is(err, ocr.ErrEngineUnavailable):
		log.Warn().Err(err).Msg("OCR engine unavailable, image scans are disabled")
	default:
		log.Fatal().Err(err).Msg("failed to initialize OCR engine")
	}

	parser := mrz.NewParser(mrz.WithOCRCorrection(cfg.Scanner.OCRCorrection))
	registry := processor.NewDefaultRegistry(engine, parser, log)

	// Initialize service
	store := storage.NewTempStorage(cfg.Scanner.JobTTL)
	defer store.Close()
	scanService := service.NewService(registry, store, log, opts...)

	// Initialize handlers
	scanHandler := handler.NewHandler(scanService, cfg.Scanner.MaxUploadSize, log)
	authManager := auth.NewManager(&cfg.Auth, log)
	if !authManager.Enabled() {
		log.Warn().Msg("auth secret not set, API is unauthenticated")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":  "healthy",
			"service": serviceName,
			"ocr":     engine != nil,
		}
		for name, check := range health {
			status[name] = check(r.Context())
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if authManager.Enabled() {
			r.Use(authManager.Middleware)
		}
		scanHandler.Routes(r)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Let running scans record their audit entries and events
	scanService.Wait()
	cancel()

	log.Info().Msg("server stopped")
}
