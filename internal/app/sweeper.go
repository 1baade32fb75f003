package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReservationSweeper expires overdue reservations on a fixed interval.
type ReservationSweeper struct {
	svc      ApplicationService
	interval time.Duration
	logger   *zap.Logger
}

func NewReservationSweeper(svc ApplicationService, interval time.Duration, logger *zap.Logger) *ReservationSweeper {
	return &ReservationSweeper{svc: svc, interval: interval, logger: logger}
}

// Start runs a sweep every interval in a background goroutine until ctx is cancelled.
// The returned channel is closed once the goroutine has exited.
func (s *ReservationSweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
	return done
}

func (s *ReservationSweeper) sweep(ctx context.Context) {
	res, err := s.svc.ExpireReservations(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("reservation sweep failed", zap.Error(err))
	}
	if res != nil && len(res.Expired) > 0 {
		s.logger.Info("reservations expired", zap.Int("count", len(res.Expired)))
	}
}
