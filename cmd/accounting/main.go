package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"accounting/internal/auth"
	"accounting/internal/cache"
	"accounting/internal/cli"
	"accounting/internal/dashboard"
	apphttp "accounting/internal/http"
	"accounting/internal/log"
	"accounting/internal/permissions"
	"accounting/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	logger.Info("Starting accounting server", "env", cfg.AppEnv, "driver", cfg.DatabaseDriver)

	ctx := context.Background()
	be := cli.OpenBackend(ctx, cfg, logger)

	set := services.NewSet(services.Deps{
		Store:  be.Store,
		Events: be.Events,
		Logger: logger,
	})

	agg := dashboard.New(be.Store, dashboard.Config{
		CacheTTL:     cfg.DashboardCacheTTL,
		CacheSize:    cfg.DashboardCacheSize,
		LowCashFloor: decimal.NewFromInt(int64(cfg.LowCashFloor)),
		Logger:       logger,
	})
	set.OnChange(agg.Invalidate)

	caches := cache.NewManager(logger)
	caches.Register(agg.Cache())
	caches.StartCleanup(time.Minute)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, nil)
	authSvc := auth.NewService(be.Store, issuer, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Services:           set,
		Auth:               authSvc,
		Dashboard:          agg,
		Policy:             permissions.DefaultPolicy(),
		Exporter:           be.Exporter,
		DB:                 be.Store,
		Logger:             logger,
		Development:        cfg.IsDevelopment(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins(),
		TrustedProxies:     cfg.TrustedProxyCIDRs(),
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Listening", "port", cfg.Port, "sheets_export", be.Exporter != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
