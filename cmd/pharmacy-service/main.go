package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/medflow/pharmacy-backend/internal/inventory/consumers"
	"github.com/medflow/pharmacy-backend/internal/inventory/events"
	"github.com/medflow/pharmacy-backend/internal/inventory/handler"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/internal/store"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/medflow/pharmacy-backend/pkg/session"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a session token for the given user id and exit (development only)")
	flag.Parse()

	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if cfg.Server.Environment != config.EnvDevelopment {
			fmt.Fprintln(os.Stderr, "-issue-token is only available in development")
			os.Exit(1)
		}
		token, err := session.NewManager(&cfg.JWT).Issue(*issueToken, *issueToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	log := logger.New(config.ServiceName, cfg.Server.Environment)
	log.Info().Str("store", cfg.Store.Driver).Msg("starting Pharmacy Service")

	opts, err := service.OptionsFromConfig(&cfg.Ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ledger configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	health := map[string]func(context.Context) map[string]string{}

	// Record store
	var (
		recordStore store.Store
		pgStore     *store.PostgresStore
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		log.Warn().Msg("using in-memory record store, data is lost on restart")
		recordStore = store.NewMemoryStore()
	default:
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to prepare record store schema")
		}
		health["database"] = db.Health

		pgStore = store.NewPostgresStore(db, nil, log.WithComponent("store"))
		recordStore = pgStore
	}

	// Events and cross-instance notifications
	var ledgerPublisher *events.LedgerEventPublisher
	if cfg.RabbitMQ.Enabled {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()
		health["rabbitmq"] = func(context.Context) map[string]string { return rmq.Health() }

		if err := rmq.DeclareDeadLetterQueue(config.ServiceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare dead letter queue")
		}

		source := config.ServiceName + "." + uuid.New().String()
		var publisher *messaging.Publisher
		ledgerPublisher, publisher, err = events.NewLedgerEventPublisher(rmq, source, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}

		if pgStore != nil {
			pgStore.SetNotifier(events.NewCollectionNotifier(publisher))

			collectionConsumer, err := consumers.NewCollectionEventConsumer(rmq, pgStore, source, log)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create collection event consumer")
			}
			if err := collectionConsumer.Start(ctx); err != nil {
				log.Fatal().Err(err).Msg("failed to start collection event consumer")
			}
		}
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(recordStore, log)
	batchRepo := repository.NewBatchRepository(recordStore, log)
	purchaseRepo := repository.NewPurchaseRepository(recordStore, log)
	supplierRepo := repository.NewSupplierRepository(recordStore, log)
	categoryRepo := repository.NewCategoryRepository(recordStore, log)

	// Initialize services
	catalogService := service.NewCatalogService(itemRepo, batchRepo, categoryRepo, supplierRepo, opts, log)
	purchaseService := service.NewPurchaseService(recordStore, itemRepo, batchRepo, purchaseRepo, supplierRepo, ledgerPublisher, opts, log)
	reconciler := service.NewReconciler(purchaseRepo, batchRepo, ledgerPublisher, opts, log)
	scanner := service.NewAlertScanner(catalogService, ledgerPublisher, log)

	ledgerView := service.NewLedgerView(itemRepo, batchRepo, categoryRepo, opts, log.WithComponent("ledger-view"))
	if err := ledgerView.Start(session.System(ctx)); err != nil {
		log.Fatal().Err(err).Msg("failed to start ledger view")
	}
	defer ledgerView.Close()

	scheduler := service.NewScheduler(reconciler, scanner, ledgerView, cfg.Ledger.SweepInterval, log.WithComponent("scheduler"))
	scheduler.Start(ctx)
	defer scheduler.Stop()

	handlers := handler.NewHandlers(catalogService, purchaseService, ledgerView, log)
	sessions := session.NewManager(&cfg.JWT)

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "healthy",
			"service": config.ServiceName,
			"store":   cfg.Store.Driver,
		}
		for name, check := range health {
			body[name] = check(r.Context())
		}
		httputil.JSON(w, http.StatusOK, body)
	})

	// API routes
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		r.Use(sessions.Middleware(log))
		handlers.Routes(r)
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

	// Cancel context to stop consumers
	cancel()

	log.Info().Msg("server stopped")
}
