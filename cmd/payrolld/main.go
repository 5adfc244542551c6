// Package main runs the payroll service daemon: wallet connect flow, role
// resolution, employer rosters, and the payout runner behind one HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/v3/mem"

	app "github.com/chainwage/payroll_layer/internal/app"
	"github.com/chainwage/payroll_layer/internal/app/httpapi"
	"github.com/chainwage/payroll_layer/internal/app/metrics"
	"github.com/chainwage/payroll_layer/internal/app/storage/postgres"
	"github.com/chainwage/payroll_layer/internal/app/storage/redisstore"
	"github.com/chainwage/payroll_layer/internal/chain"
	"github.com/chainwage/payroll_layer/internal/config"
	"github.com/chainwage/payroll_layer/internal/middleware"
	"github.com/chainwage/payroll_layer/internal/wallet"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

var startedAt = time.Now()

func main() {
	_ = godotenv.Load()

	log := logger.NewDefault("payrolld")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("load configuration")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	if cfg.WalletRPCURL == "" {
		log.Error("WALLET_RPC_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("initialise storage")
		os.Exit(1)
	}
	defer cleanup()

	provider, err := wallet.NewRPCProvider(cfg.WalletRPCURL, cfg.ChainTimeout)
	if err != nil {
		log.WithError(err).Error("configure wallet provider")
		os.Exit(1)
	}

	deps := app.Deps{
		Provider:       provider,
		Networks:       config.LoadNetworksOrDefault(cfg.NetworksPath),
		JWTSecret:      []byte(cfg.JWTSecret),
		WatchInterval:  cfg.WatchInterval,
		PayrollEnabled: cfg.PayrollEnabled,
		PayrollScan:    cfg.PayrollScan,
	}

	if cfg.RoleRegistryHash != "" {
		client, err := chain.NewClient(chain.Config{
			RPCURL:    cfg.ChainRPCURL,
			NetworkID: deps.Networks[0].Magic,
			Timeout:   cfg.ChainTimeout,
		})
		if err != nil {
			log.WithError(err).Error("configure chain client")
			os.Exit(1)
		}
		registry, err := chain.NewRoleRegistry(client, cfg.RoleRegistryHash)
		if err != nil {
			log.WithError(err).Error("configure role registry")
			os.Exit(1)
		}
		deps.Registry = registry
	} else {
		log.Warn("ROLE_REGISTRY_HASH not set; on-chain role lookups disabled")
	}

	application, err := app.New(stores, deps, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	router := buildRouter(application, cfg, log)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("payroll service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server failed")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}
	log.Info("stopped")
}

// buildStores wires persistence from the configuration: postgres when
// DATABASE_URL is set, redis-backed sessions when REDIS_URL is set, in-memory
// otherwise.
func buildStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	var stores app.Stores
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return app.Stores{}, cleanup, err
		}
		closers = append(closers, func() { _ = pg.Close() })
		if err := pg.Migrate(); err != nil {
			return app.Stores{}, cleanup, err
		}
		stores.Users = pg
		stores.Roster = pg
		stores.Sessions = pg
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	if cfg.RedisURL != "" {
		rs, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return app.Stores{}, cleanup, err
		}
		closers = append(closers, func() { _ = rs.Close() })
		stores.Sessions = rs
		log.Info("using redis session storage")
	}

	return stores, cleanup, nil
}

func buildRouter(application *app.Application, cfg *config.Config, log *logger.Logger) http.Handler {
	router := mux.NewRouter()

	auth := newAuthHandlers(application.Sessions, application.Stores.Users, log)
	router.HandleFunc("/auth/nonce", auth.nonce).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", auth.login).Methods(http.MethodPost)
	router.HandleFunc("/auth/logout", auth.logout).Methods(http.MethodPost)

	authMW := middleware.NewAuthMiddleware(application.Sessions, log, nil)
	router.Handle("/auth/me", authMW.Handler(http.HandlerFunc(auth.me))).Methods(http.MethodGet)

	api := httpapi.NewHandler(application)
	limiter := middleware.NewRateLimiter(20, 40, log)
	limiter.StartCleanup(10 * time.Minute)
	protected := authMW.Handler(limiter.Handler(api))
	router.PathPrefix("/api/v1/").Handler(
		metrics.InstrumentHandler("/api/v1", http.StripPrefix("/api/v1", protected)),
	)

	events := httpapi.NewEventHub(application.Connector, log)
	router.Handle("/events", events)

	router.Handle("/metrics", metrics.Handler())
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	cors := middleware.NewCORSMiddleware(strings.Split(cfg.CORSAllowedOrigins, ","))
	return cors.Handler(router)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"uptime_s":   int(time.Since(startedAt).Seconds()),
		"goroutines": runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_used_percent"] = vm.UsedPercent
	}
	writeJSON(w, http.StatusOK, status)
}
