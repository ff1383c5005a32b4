package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xyops/xianyu-backend/internal/config"
	"github.com/xyops/xianyu-backend/internal/modules/account"
	"github.com/xyops/xianyu-backend/internal/modules/auth"
	"github.com/xyops/xianyu-backend/internal/modules/fulfillment"
	"github.com/xyops/xianyu-backend/internal/modules/inventory"
	"github.com/xyops/xianyu-backend/internal/modules/marketplace"
	"github.com/xyops/xianyu-backend/internal/modules/order"
	"github.com/xyops/xianyu-backend/internal/modules/reconcile"
	"github.com/xyops/xianyu-backend/internal/modules/user"
	"github.com/xyops/xianyu-backend/internal/platform/database"
	"github.com/xyops/xianyu-backend/internal/platform/httpx"
	"github.com/xyops/xianyu-backend/internal/platform/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Error("init telemetry", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		logger.Error("migrate schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready", "driver", cfg.DBDriver)

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// ── Identity ────────────────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	userService := user.NewService(userRepo, logger)
	if created, err := userService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.Warn("bootstrap admin skipped", "error", err)
	} else if created {
		logger.Info("bootstrap admin created", "username", cfg.AdminUsername)
	}

	authService := auth.NewService(userRepo, []byte(cfg.JWTSecret), cfg.JWTTTL, logger)
	auth.NewHandler(authService).RegisterRoutes(router)

	// ── Shared collaborators ────────────────────────────────
	bridge := marketplace.NewHTTPBridge(cfg.MarketplaceBridgeURL, cfg.MarketplaceTimeout)

	accountRepo := account.NewPostgresRepository(db)
	accountService := account.NewService(accountRepo, logger)

	orderRepo := order.NewPostgresRepository(db)
	orderService := order.NewService(orderRepo, logger)

	cardRepo := inventory.NewPostgresRepository(db)
	cardService := inventory.NewService(cardRepo, logger)
	matcher := inventory.NewMatcher(cardRepo, inventory.NewAPIFetcher())

	reconcileService := reconcile.NewService(orderRepo, accountService, bridge, reconcile.Options{
		Concurrency: cfg.ReconcileConcurrency,
		CallTimeout: cfg.MarketplaceTimeout,
	}, logger)

	shipmentRepo := fulfillment.NewPostgresRepository(db)
	dispatcher := fulfillment.NewService(orderRepo, shipmentRepo, accountService, matcher, bridge, fulfillment.Options{
		Concurrency: cfg.DispatchConcurrency,
		CallTimeout: cfg.MarketplaceTimeout,
	}, logger)

	// ── Console API (bearer token) ──────────────────────────
	router.Group(func(r chi.Router) {
		r.Use(httpx.RequireBearer([]byte(cfg.JWTSecret)))

		user.NewHandler(userService).RegisterRoutes(r)
		account.NewHandler(accountService).RegisterRoutes(r)
		inventory.NewHandler(cardService).RegisterRoutes(r)
		reconcile.NewHandler(reconcileService).RegisterRoutes(r)
		fulfillment.NewHandler(dispatcher).RegisterRoutes(r)
		order.NewHandler(orderService).RegisterRoutes(r)
	})

	// ── Start Server ─────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", "error", err)
	}
}
