package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-chat/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to the
// domain events published by ticket views.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if logger != nil {
		logger.Info("notification handlers registered")
	}
}

// IdleReaper closes sessions nobody has touched for a while.
type IdleReaper interface {
	ReapIdle(now time.Time) int
}

// StartSessionReaper sweeps idle sessions every interval until ctx is
// cancelled. The returned channel closes when the sweeper exits.
func StartSessionReaper(ctx context.Context, reaper IdleReaper, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if reaper == nil || interval <= 0 {
		close(done)
		return done
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := reaper.ReapIdle(now); n > 0 {
					logger.Info("reaped idle ticket views", zap.Int("count", n))
				}
			}
		}
	}()
	return done
}
