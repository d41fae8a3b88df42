package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fuellog/internal/cache"
	"fuellog/internal/cli"
	apphttp "fuellog/internal/http"
	"fuellog/internal/log"
	"fuellog/internal/middleware/ratelimit"
)

const (
	cacheCleanupInterval = 10 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()

	// Level is reapplied once the config is loaded.
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	res := cli.InitBackend(context.Background(), logger, cfg)

	cacheManager := cache.NewManager()
	if res.Summaries != nil {
		cacheManager.Register(res.Summaries)
		cacheManager.StartCleanup(cacheCleanupInterval)
	}

	appLogger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentHTTP,
		Output:    os.Stdout,
	})
	srv := apphttp.NewServer(":"+cfg.Port, res.Service,
		apphttp.WithLogger(appLogger),
		apphttp.WithRateLimiter(ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)),
		apphttp.WithSummaryCache(res.Summaries),
	)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting fuellog server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
