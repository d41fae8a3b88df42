package backend

import (
	"context"
	"time"

	"fuellog/internal/amqp"
	"fuellog/internal/cache"
	"fuellog/internal/services"
)

type CleanupFunc func() error

// BackendResult holds the wired service and the resources behind it.
type BackendResult struct {
	Service *services.FuelService
	// Events is nil when AMQP is not configured or unreachable.
	Events    *amqp.Client
	Summaries *cache.SummaryCache
	Cleanup   CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional record events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	RecomputeConcurrency int
	SummaryCacheSize     int
	SummaryCacheTTL      time.Duration
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
