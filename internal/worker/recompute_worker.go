package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fuellog/internal/amqp"
	"fuellog/internal/log"
	"fuellog/internal/store"
)

type (
	Recomputer interface {
		RecomputeVehicle(ctx context.Context, vehicleID string) (int, error)
		RecomputeAll(ctx context.Context) (int, error)
	}

	EventSource interface {
		ConsumeRecordEvents(ctx context.Context, handler func(context.Context, *amqp.RecordEvent) error) error
	}
)

// RecomputeWorker keeps derived statistics current for writers that do not
// recompute themselves. It reacts to record events and runs a periodic full
// sweep as a backstop for lost events.
type RecomputeWorker struct {
	recomputer Recomputer
	interval   time.Duration
	logger     *slog.Logger
}

func NewRecomputeWorker(r Recomputer, interval time.Duration) *RecomputeWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RecomputeWorker{
		recomputer: r,
		interval:   interval,
		logger:     slog.Default().With(log.FieldComponent, log.ComponentWorker),
	}
}

// HandleRecordEvent recomputes the vehicle named by evt. Events for vehicles
// that no longer exist are acknowledged without work.
func (w *RecomputeWorker) HandleRecordEvent(ctx context.Context, evt *amqp.RecordEvent) error {
	if evt.Operation == amqp.OpVehicleDeleted {
		return nil
	}

	n, err := w.recomputer.RecomputeVehicle(ctx, evt.VehicleID)
	if errors.Is(err, store.ErrNotFound) {
		w.logger.InfoContext(ctx, "Skipping event for unknown vehicle", log.FieldVehicleID, evt.VehicleID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("recompute vehicle %s: %w", evt.VehicleID, err)
	}

	w.logger.InfoContext(ctx, "Processed record event",
		log.FieldVehicleID, evt.VehicleID,
		log.FieldRecordID, evt.RecordID,
		log.FieldOperation, evt.Operation,
		log.FieldRecomputed, n)
	return nil
}

// Sweep recomputes every vehicle once.
func (w *RecomputeWorker) Sweep(ctx context.Context) error {
	start := time.Now()
	n, err := w.recomputer.RecomputeAll(ctx)
	if err != nil {
		return fmt.Errorf("recompute sweep: %w", err)
	}
	w.logger.InfoContext(ctx, "Recompute sweep finished", log.FieldRecomputed, n, "duration", time.Since(start))
	return nil
}

// Run sweeps once, then consumes events from src (when non-nil) and sweeps
// every interval until ctx is done.
func (w *RecomputeWorker) Run(ctx context.Context, src EventSource) error {
	if err := w.Sweep(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup sweep failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := w.Sweep(gctx); err != nil {
					w.logger.ErrorContext(gctx, "Periodic sweep failed", "error", err)
				}
			}
		}
	})
	if src != nil {
		g.Go(func() error {
			err := src.ConsumeRecordEvents(gctx, w.HandleRecordEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		w.logger.InfoContext(ctx, "No event source, running periodic sweeps only", "interval", w.interval)
	}
	return g.Wait()
}
