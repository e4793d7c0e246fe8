package service

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically expires sessions that have gone idle.
type Sweeper struct {
	service  *Service
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewSweeper(svc *Service, interval time.Duration, batch int, logger *slog.Logger) *Sweeper {
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{service: svc, interval: interval, batch: batch, logger: logger}
}

// Run sweeps until ctx is cancelled. Sweep errors are logged and the loop continues.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && w.logger != nil {
				w.logger.ErrorContext(ctx, "idle session sweep failed", "error", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// SweepOnce expires idle sessions in batches until a batch comes back short.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.service.ExpireIdle(ctx, w.batch)
		total += n
		if err != nil {
			return total, err
		}
		if n < w.batch {
			break
		}
	}
	if total > 0 && w.logger != nil {
		w.logger.InfoContext(ctx, "expired idle sessions", "count", total)
	}
	return total, nil
}
