package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fuellog/internal/amqp"
	"fuellog/internal/cache"
	"fuellog/internal/log"
	"fuellog/internal/services"
	"fuellog/internal/store"
	"fuellog/internal/store/memory"
	"fuellog/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger.With(log.FieldComponent, log.ComponentBackend)}
}

// CreateBackend builds the store named by config and wires the service on
// top of it. AMQP failures are logged and leave events disabled.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var st store.Store
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		st = repo
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		st = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	opts := []services.Option{services.WithConcurrency(config.RecomputeConcurrency)}

	var summaries *cache.SummaryCache
	if config.SummaryCacheSize > 0 && config.SummaryCacheTTL > 0 {
		summaries = cache.NewSummaryCache(config.SummaryCacheSize, config.SummaryCacheTTL)
		opts = append(opts, services.WithSummaryCache(summaries))
	}

	var events *amqp.Client
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without record events", "error", err)
		} else {
			events = client
			opts = append(opts, services.WithPublisher(client))
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	svc := services.NewFuelService(st, opts...)
	return &BackendResult{
		Service:   svc,
		Events:    events,
		Summaries: summaries,
		Cleanup:   svc.Close,
	}, nil
}
