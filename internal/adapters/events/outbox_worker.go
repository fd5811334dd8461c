package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// OutboxWorker periodically drains the transactional outbox through the
// service's flush routine.
type OutboxWorker struct {
	logger   *slog.Logger
	flush    func(ctx context.Context) error
	interval time.Duration
}

func NewOutboxWorker(logger *slog.Logger, flush func(ctx context.Context) error, interval time.Duration) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &OutboxWorker{logger: logger, flush: flush, interval: interval}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "outbox flush failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "flush",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
