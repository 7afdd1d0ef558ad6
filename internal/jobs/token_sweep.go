package jobs

import (
	"context"
	"log/slog"
	"time"
)

type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// RunTokenSweep removes expired token records every interval until ctx is
// done. A non-positive interval disables the job.
func RunTokenSweep(ctx context.Context, s Sweeper, interval time.Duration) {
	if interval <= 0 {
		slog.Info("token sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("token sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("swept expired tokens", "count", n)
			}
		}
	}
}
