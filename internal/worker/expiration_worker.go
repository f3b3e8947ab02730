package worker

import (
	"context"
	"log/slog"
	"time"
)

// PaymentExpirer sweeps stale pending payments and reports how many changed.
type PaymentExpirer interface {
	ExpirePayments(ctx context.Context, batch int) (int, error)
}

type ExpirationWorker struct {
	expirer   PaymentExpirer
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewExpirationWorker(expirer PaymentExpirer, interval time.Duration, batchSize int, logger *slog.Logger) *ExpirationWorker {
	return &ExpirationWorker{
		expirer:   expirer,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With("component", "expiration-worker"),
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started", "interval", w.interval, "batch_size", w.batchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			swept, err := w.expirer.ExpirePayments(ctx, w.batchSize)
			if err != nil {
				w.logger.Error("expiration sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				w.logger.Info("expired stale payments", "count", swept)
			}
		}
	}
}
