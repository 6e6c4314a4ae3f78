package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fermentum/fermentum-backend/internal/stock/consumers"
	"github.com/fermentum/fermentum-backend/internal/stock/events"
	"github.com/fermentum/fermentum-backend/internal/stock/handler"
	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/internal/stock/service"
	"github.com/fermentum/fermentum-backend/pkg/config"
	"github.com/fermentum/fermentum-backend/pkg/database"
	"github.com/fermentum/fermentum-backend/pkg/httputil"
	"github.com/fermentum/fermentum-backend/pkg/logger"
	"github.com/fermentum/fermentum-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	rawPublisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}
	publisher := events.NewStockEventPublisher(rawPublisher, log)

	// Initialize repositories
	itemRepo := repository.NewStockRepository(db)
	lotRepo := repository.NewLotRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	// Initialize services
	stockService := service.NewStockService(itemRepo, lotRepo, alertRepo, publisher, log)
	trackerService := service.NewTrackerService(db, itemRepo, lotRepo, reservationRepo, alertRepo, stockService, publisher, log)
	alertService := service.NewAlertService(itemRepo, lotRepo, alertRepo, publisher, log)

	// Initialize handlers
	itemHandler := handler.NewItemHandler(stockService, log)
	reservationHandler := handler.NewReservationHandler(trackerService, log)
	alertHandler := handler.NewAlertHandler(alertService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start supplier recall consumer
	recallConsumer, err := consumers.NewRecallEventConsumer(rmq, alertService, lotRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create recall event consumer")
	}
	if err := recallConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start recall event consumer")
	}

	// Start expiry sweeper
	sweeper := service.NewExpirySweeper(alertService, lotRepo, cfg.Alerts.ExpirySweepInterval, cfg.Alerts.ExpiryWarningDays, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "https://*.fermentum.io"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.TenantMiddleware) // Extract tenant context from headers

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "stock-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/stock", func(r chi.Router) {
		// Catalog routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Create)
			r.Get("/sku/{sku}", itemHandler.GetBySKU)
			r.Get("/{id}", itemHandler.Get)
			r.Put("/{id}", itemHandler.Update)
			r.Delete("/{id}", itemHandler.Deactivate)
			r.Get("/{id}/lots", itemHandler.ListLots)
			r.Post("/{id}/lots", itemHandler.ReceiveLot)
			r.Get("/{id}/availability", itemHandler.CheckAvailability)
		})

		// Lot ledger routes
		r.Route("/lots", func(r chi.Router) {
			r.Get("/{id}", itemHandler.GetLot)
			r.Patch("/{id}", itemHandler.UpdateLot)
		})

		// Reservation routes
		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", reservationHandler.List)
			r.Post("/", reservationHandler.Create)
			r.Get("/{id}", reservationHandler.Get)
			r.Post("/{id}/commit", reservationHandler.Commit)
			r.Post("/{id}/consume", reservationHandler.Consume)
			r.Post("/{id}/cancel", reservationHandler.Cancel)
		})
		r.Get("/batches/{batchRef}/reservations", reservationHandler.ListByBatch)

		// Alert routes
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Post("/", alertHandler.Raise)
			r.Get("/lot/{lotNumber}", alertHandler.ListForLot)
			r.Get("/{id}", alertHandler.Get)
			r.Post("/{id}/acknowledge", alertHandler.Acknowledge)
			r.Post("/{id}/resolve", alertHandler.Resolve)
			r.Post("/{id}/notes", alertHandler.AddNote)
		})
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

	// Cancel context to stop the consumer and sweeper
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
