package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-pos/internal/clock"
	"github.com/georgemunganga/printa-pos/internal/config"
	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/catalog"
	"github.com/georgemunganga/printa-pos/internal/modules/idempotency"
	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
	"github.com/georgemunganga/printa-pos/internal/modules/loyalty"
	"github.com/georgemunganga/printa-pos/internal/modules/payment"
	"github.com/georgemunganga/printa-pos/internal/modules/reconciliation"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/modules/session"
	"github.com/georgemunganga/printa-pos/internal/modules/user"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/georgemunganga/printa-pos/internal/platform/outbox"
	"github.com/georgemunganga/printa-pos/internal/platform/scheduler"
	"github.com/georgemunganga/printa-pos/internal/platform/tracing"
	"github.com/georgemunganga/printa-pos/internal/platform/web"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OtelEndpoint, cfg.ServiceName, version)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	clk := clock.NewSystem()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	publisher, closePublisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	// ── Services ────────────────────────────────────────────
	events := outbox.NewWriter(store.outbox, clk)

	userService := user.NewService(store.users, clk, logger)
	authService := auth.NewService(userService, cfg.JWTSecret, cfg.TokenTTL, clk)

	catalogOpts, closeCache := priceCache(ctx, cfg, store.catalog, logger)
	defer closeCache()
	catalogService := catalog.NewService(store.catalog, clk, cfg.Currency, catalogOpts...)

	inventoryService := inventory.NewService(store.tx, store.locations, store.inventory, clk, logger,
		inventory.WithReservationTTL(cfg.ReservationTTL))
	sessionService := session.NewService(store.tx, store.sessions, events, clk, logger)
	loyaltyService := loyalty.NewService(store.tx, store.loyalty, clk, logger)
	idempotencyService := idempotency.NewService(store.tx, store.idempotency, clk, cfg.IdempotencyLease, logger)
	paymentService := payment.NewService(paymentGateways(cfg), cfg.PaymentTimeout, logger)
	recorder := reconciliation.NewRecorder(store.tx, store.reconciliation, clk)

	saleService := sale.NewService(sale.Dependencies{
		Tx:          store.tx,
		Repo:        store.sales,
		Inventory:   inventoryService,
		Sessions:    sessionService,
		Loyalty:     loyaltyService,
		Idempotency: idempotencyService,
		Payments:    paymentService,
		Prices:      catalogService,
		Reconciler:  recorder,
		Events:      events,
		Clock:       clk,
		Logger:      logger,
	}, sale.Policy{
		Currency:   cfg.Currency,
		TaxRate:    cfg.TaxRate,
		Tolerance:  cfg.PriceTolerance,
		PointValue: cfg.LoyaltyPointValue,
		EarnRate:   cfg.LoyaltyEarnRate,
	}, cfg.ReconciliationHold)
	reconciliationService := reconciliation.NewService(store.tx, store.reconciliation, recorder, saleService,
		clk, cfg.ReconcileMaxAttempts, logger)

	if cfg.AdminEmail != "" {
		if err := userService.EnsureManager(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seed manager account: %w", err)
		}
	}

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.Middleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.ping(r.Context()); err != nil {
			web.Error(w, http.StatusServiceUnavailable, "unavailable", err.Error())
			return
		}
		web.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	auth.NewHandler(authService).RegisterRoutes(router)

	router.Group(func(r chi.Router) {
		if cfg.AuthRequired {
			r.Use(auth.Middleware(authService))
		} else {
			logger.Warn("authentication disabled; every caller acts as manager")
			r.Use(auth.Anonymous(auth.RoleManager))
		}
		user.NewHandler(userService).RegisterRoutes(r)
		catalog.NewHandler(catalogService).RegisterRoutes(r)
		inventory.NewHandler(inventoryService).RegisterRoutes(r)
		session.NewHandler(sessionService).RegisterRoutes(r)
		loyalty.NewHandler(loyaltyService).RegisterRoutes(r)
		sale.NewHandler(saleService).RegisterRoutes(r)
		reconciliation.NewHandler(reconciliationService).RegisterRoutes(r)
	})

	// ── Background jobs ─────────────────────────────────────
	dispatcher := outbox.NewDispatcher(store.outbox, publisher, clk, logger, cfg.OutboxMaxRetry, cfg.OutboxBatchSize)
	go scheduler.Every(ctx, "reservation-sweep", cfg.SweepInterval, logger, inventoryService.SweepExpired)
	go scheduler.Every(ctx, "reconciliation-retry", cfg.ReconcileInterval, logger, reconciliationService.RetryDue)
	go scheduler.Every(ctx, "outbox-dispatch", cfg.OutboxInterval, logger, dispatcher.DispatchOnce)

	// ── Start Server ────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Card authorizations can hold a request open for the full payment timeout.
		WriteTimeout: cfg.PaymentTimeout + 30*time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.StorageDriver),
			zap.String("broker", cfg.EventBroker),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
