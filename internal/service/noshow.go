package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/models"
)

// NoShowReconciler expires CONFIRMED bookings whose holder never started a
// session within the grace period, freeing their connectors.
type NoShowReconciler struct {
	bookings     BookingRepository
	state        StateStore
	availability AvailabilityCache
	events       EventPublisher
	logger       *zap.Logger
	interval     time.Duration
	grace        time.Duration
	lookback     time.Duration
	nowFn        func() time.Time
}

// NewNoShowReconciler builds the reconciler. lookback bounds the candidate
// scan so very old stuck rows are not reprocessed on every pass.
func NewNoShowReconciler(
	bookings BookingRepository,
	state StateStore,
	availability AvailabilityCache,
	events EventPublisher,
	interval, grace, lookback time.Duration,
	logger *zap.Logger,
) *NoShowReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if grace <= 0 {
		grace = 15 * time.Minute
	}
	if lookback <= 0 {
		lookback = time.Hour
	}
	return &NoShowReconciler{
		bookings:     bookings,
		state:        state,
		availability: availability,
		events:       events,
		logger:       logger,
		interval:     interval,
		grace:        grace,
		lookback:     lookback,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes passes on the configured interval until the context is
// cancelled.
func (r *NoShowReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("no-show reconciler started",
		zap.Duration("interval", r.interval),
		zap.Duration("grace", r.grace),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("no-show reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("no-show pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce processes one reconciliation pass and returns how many bookings
// were expired. Per-booking failures are logged and skipped so one bad record
// cannot abort the batch.
func (r *NoShowReconciler) RunOnce(ctx context.Context) (int, error) {
	now := r.nowFn()
	candidates, err := r.bookings.NoShowCandidates(ctx, now.Add(-r.grace), now.Add(-r.lookback))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, booking := range candidates {
		if booking.Status != models.BookingConfirmed {
			continue
		}
		if err := r.expire(ctx, booking); err != nil {
			r.logger.Warn("failed to expire booking",
				zap.Int64("booking_id", booking.ID),
				zap.Error(err),
			)
			continue
		}
		expired++
	}

	if expired > 0 {
		r.logger.Info("expired no-show bookings", zap.Int("count", expired))
	}
	return expired, nil
}

func (r *NoShowReconciler) expire(ctx context.Context, booking models.Booking) error {
	// The CONFIRMED guard inside Close keeps concurrent reconciler instances
	// from double-processing the same booking.
	from := []models.BookingStatus{models.BookingConfirmed}
	if err := r.bookings.Close(ctx, booking.ID, booking.ConnectorID, from, models.BookingNoShow); err != nil {
		return err
	}

	if err := r.state.Update(ctx, models.ConnectorState{
		StationID:   booking.StationID,
		ConnectorID: booking.ConnectorID,
		Status:      models.ConnectorAvailable,
	}); err != nil {
		r.logger.Warn("failed to update connector projection", zap.Int64("connector_id", booking.ConnectorID), zap.Error(err))
	}

	r.events.StationUpdated(ctx, booking.StationID, booking.ConnectorID, models.ConnectorAvailable, "booking_no_show")

	if err := r.availability.InvalidateStation(ctx, booking.StationID); err != nil {
		r.logger.Warn("failed to invalidate availability cache", zap.Int64("station_id", booking.StationID), zap.Error(err))
	}
	return nil
}
