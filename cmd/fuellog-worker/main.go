package main

import (
	"context"
	"os"
	"time"

	"fuellog/internal/cli"
	"fuellog/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting fuellog-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	res := cli.InitBackend(context.Background(), logger, cfg)

	// Sweep-only mode when events are disabled; the worker must not see a
	// typed nil source.
	var src worker.EventSource
	if res.Events != nil {
		src = res.Events
	} else {
		logger.Warn("AMQP not available, record events will not be consumed")
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) {
		logger.Info("Shutting down worker...")
	})

	w := worker.NewRecomputeWorker(res.Service, cfg.RecomputeInterval)
	if err := w.Run(ctx, src); err != nil {
		logger.Error("Worker stopped with error", "error", err)
	}

	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", "error", err)
	}
	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Worker shutdown complete")
}
