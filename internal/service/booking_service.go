package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/models"
	redisstore "chargebook/internal/redis"
	"chargebook/internal/repository"
)

// Booking orchestration errors.
var (
	ErrSlotUnavailable      = errors.New("slot unavailable")
	ErrInvalidHold          = errors.New("invalid hold")
	ErrUnauthorized         = errors.New("booking does not belong to user")
	ErrInvalidState         = errors.New("booking is not in a cancellable state")
	ErrConnectorUnavailable = errors.New("connector is out of service")
	ErrInvalidWindow        = errors.New("invalid time window")
)

// BookingService is the transactional core of the reservation protocol. The
// hold store's scripted atomicity and the database exclusion constraint carry
// the correctness; this service sequences them and keeps the cache projection
// and availability cache in step.
type BookingService struct {
	bookings     BookingRepository
	connectors   ConnectorRepository
	holds        HoldStore
	state        StateStore
	availability AvailabilityCache
	events       EventPublisher
	logger       *zap.Logger
	nowFn        func() time.Time
}

// NewBookingService builds the orchestrator.
func NewBookingService(
	bookings BookingRepository,
	connectors ConnectorRepository,
	holds HoldStore,
	state StateStore,
	availability AvailabilityCache,
	events EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings:     bookings,
		connectors:   connectors,
		holds:        holds,
		state:        state,
		availability: availability,
		events:       events,
		logger:       logger,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// HoldRequest carries the inputs for a new slot hold.
type HoldRequest struct {
	StationID   int64
	ConnectorID int64
	UserID      int64
	StartTS     time.Time
	EndTS       time.Time
}

// HoldResult is returned to the caller holding a slot during checkout.
type HoldResult struct {
	Token            string `json:"token"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// CreateHold validates the connector, pre-checks the durable store for
// overlapping bookings the hold store cannot see, then delegates to the
// scripted atomic hold creation.
func (s *BookingService) CreateHold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	if req.StartTS.IsZero() || req.EndTS.IsZero() || !req.StartTS.Before(req.EndTS) {
		return nil, ErrInvalidWindow
	}
	if req.EndTS.Before(s.nowFn()) {
		return nil, ErrInvalidWindow
	}

	connector, err := s.connectors.GetByID(ctx, req.ConnectorID)
	if err != nil {
		return nil, err
	}
	if connector.StationID != req.StationID {
		return nil, repository.ErrConnectorNotFound
	}
	if connector.OutOfService() {
		return nil, ErrConnectorUnavailable
	}

	overlap, err := s.bookings.OverlapExists(ctx, req.ConnectorID, req.StartTS, req.EndTS)
	if err != nil {
		return nil, err
	}
	if overlap {
		return nil, ErrSlotUnavailable
	}

	hold, err := s.holds.Create(ctx, models.Hold{
		ConnectorID: req.ConnectorID,
		StationID:   req.StationID,
		UserID:      req.UserID,
		StartTS:     req.StartTS.UTC(),
		EndTS:       req.EndTS.UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.events.HoldCreated(ctx, req.StationID, req.ConnectorID, hold.StartTS, hold.EndTS, hold.TTLSeconds)
	s.invalidateAvailability(ctx, req.StationID)

	return &HoldResult{Token: hold.Token, ExpiresInSeconds: hold.TTLSeconds}, nil
}

// ConfirmBooking turns a live hold into a durable CONFIRMED booking. The
// durable overlap re-check closes the gap between hold creation and
// confirmation; the exclusion constraint decides concurrent confirmations.
// Whatever the outcome, the hold never outlives the attempt: it is released
// on success, on conflict and on transaction failure alike.
func (s *BookingService) ConfirmBooking(ctx context.Context, holdToken string, userID int64, paymentRef string) (*models.Booking, error) {
	hold, err := s.holds.Verify(ctx, holdToken)
	if err != nil {
		if errors.Is(err, redisstore.ErrHoldNotFound) {
			return nil, ErrInvalidHold
		}
		return nil, err
	}
	if hold.UserID != 0 && hold.UserID != userID {
		return nil, ErrInvalidHold
	}

	overlap, err := s.bookings.OverlapExists(ctx, hold.ConnectorID, hold.StartTS, hold.EndTS)
	if err != nil {
		return nil, err
	}
	if overlap {
		s.releaseHold(ctx, holdToken)
		return nil, ErrSlotUnavailable
	}

	booking := &models.Booking{
		UserID:           userID,
		StationID:        hold.StationID,
		ConnectorID:      hold.ConnectorID,
		StartTS:          hold.StartTS,
		EndTS:            hold.EndTS,
		Status:           models.BookingConfirmed,
		HoldToken:        holdToken,
		PaymentID:        paymentRef,
		PaymentStatus:    models.PaymentAuthorized,
		VendorSyncStatus: models.VendorSyncPending,
	}

	if err := s.bookings.Confirm(ctx, booking); err != nil {
		// The slot must not stay locked behind a failed transaction.
		s.releaseHold(ctx, holdToken)
		if errors.Is(err, repository.ErrBookingOverlap) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	s.releaseHold(ctx, holdToken)
	s.projectConnector(ctx, booking.StationID, booking.ConnectorID, models.ConnectorReserved, &booking.ID)
	s.events.BookingConfirmed(ctx, booking)
	s.invalidateAvailability(ctx, booking.StationID)

	return booking, nil
}

// CancelBooking cancels a booking owned by the user and frees its connector.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, ErrUnauthorized
	}
	if booking.Status.Terminal() {
		return nil, ErrInvalidState
	}

	from := []models.BookingStatus{models.BookingPending, models.BookingConfirmed, models.BookingActive}
	if err := s.bookings.Close(ctx, booking.ID, booking.ConnectorID, from, models.BookingCancelled); err != nil {
		return nil, err
	}
	booking.Status = models.BookingCancelled

	s.projectConnector(ctx, booking.StationID, booking.ConnectorID, models.ConnectorAvailable, nil)
	s.events.StationUpdated(ctx, booking.StationID, booking.ConnectorID, models.ConnectorAvailable, "booking_cancelled")
	s.invalidateAvailability(ctx, booking.StationID)

	return booking, nil
}

// UserBookings returns the user's bookings, newest first.
func (s *BookingService) UserBookings(ctx context.Context, userID int64, status models.BookingStatus, limit, offset int) ([]models.Booking, error) {
	return s.bookings.ListByUser(ctx, userID, status, limit, offset)
}

// releaseHold is best-effort: expiry races surface as ErrHoldNotFound, which
// is the desired end state anyway.
func (s *BookingService) releaseHold(ctx context.Context, token string) {
	if err := s.holds.Release(ctx, token); err != nil && !errors.Is(err, redisstore.ErrHoldNotFound) {
		s.logger.Warn("failed to release hold", zap.String("token", token), zap.Error(err))
	}
}

// projectConnector updates the cached read model after a durable mutation.
// Failures are logged and swallowed; the durable store already committed.
func (s *BookingService) projectConnector(ctx context.Context, stationID, connectorID int64, status models.ConnectorStatus, bookingID *int64) {
	err := s.state.Update(ctx, models.ConnectorState{
		StationID:   stationID,
		ConnectorID: connectorID,
		Status:      status,
		BookingID:   bookingID,
	})
	if err != nil {
		s.logger.Warn("failed to update connector projection",
			zap.Int64("station_id", stationID),
			zap.Int64("connector_id", connectorID),
			zap.Error(err),
		)
	}
}

func (s *BookingService) invalidateAvailability(ctx context.Context, stationID int64) {
	if err := s.availability.InvalidateStation(ctx, stationID); err != nil {
		s.logger.Warn("failed to invalidate availability cache", zap.Int64("station_id", stationID), zap.Error(err))
	}
}
