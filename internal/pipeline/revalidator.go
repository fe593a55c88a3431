package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Revalidator re-runs validation on a fixed interval so time-dependent
// checks such as stale deadlines track the wall clock.
type Revalidator struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

// NewRevalidator creates a Revalidator for svc.
// If interval is <= 0, it defaults to one hour.
func NewRevalidator(svc *Service, interval time.Duration) *Revalidator {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Revalidator{svc: svc, interval: interval, logger: svc.logger}
}

// Run validates every interval until ctx is cancelled.
func (r *Revalidator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.interval):
		}

		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("revalidation failed", "error", err)
		}
	}
}

// RunOnce runs one validation pass if any tenders are loaded. It returns
// true when a pass was run.
func (r *Revalidator) RunOnce(ctx context.Context) (bool, error) {
	if len(r.svc.Current()) == 0 {
		return false, nil
	}
	if _, err := r.svc.Validate(ctx); err != nil {
		return false, err
	}
	return true, nil
}
