package service

import (
	"context"
	"time"

	"chargebook/internal/models"
)

// Dependencies are declared as interfaces on the consumer side so tests can
// substitute fakes without global state. The concrete implementations live in
// internal/repository, internal/redis and internal/events.

// BookingRepository is the durable booking store.
type BookingRepository interface {
	OverlapExists(ctx context.Context, connectorID int64, start, end time.Time) (bool, error)
	Confirm(ctx context.Context, b *models.Booking) error
	Close(ctx context.Context, bookingID, connectorID int64, from []models.BookingStatus, to models.BookingStatus) error
	GetByID(ctx context.Context, id int64) (*models.Booking, error)
	GetByVendorBookingID(ctx context.Context, vendorBookingID string) (*models.Booking, error)
	UpdateVendorSyncStatus(ctx context.Context, id int64, syncStatus string) error
	MarkActive(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64, status models.BookingStatus, limit, offset int) ([]models.Booking, error)
	ListActiveByStation(ctx context.Context, stationID int64, from, to time.Time) ([]models.Booking, error)
	NoShowCandidates(ctx context.Context, graceCutoff, startedAfter time.Time) ([]models.Booking, error)
}

// ConnectorRepository is the durable connector catalog.
type ConnectorRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Connector, error)
	GetByVendorID(ctx context.Context, vendorConnectorID string) (*models.Connector, error)
	ListByStation(ctx context.Context, stationID int64) ([]models.Connector, error)
	UpdateStatus(ctx context.Context, connectorID int64, status models.ConnectorStatus, bookingID *int64) error
}

// SessionRepository is the durable charging session store.
type SessionRepository interface {
	Create(ctx context.Context, s *models.ChargingSession) error
	GetByID(ctx context.Context, id int64) (*models.ChargingSession, error)
	GetByVendorSessionID(ctx context.Context, vendorSessionID string) (*models.ChargingSession, error)
	Finish(ctx context.Context, id int64, endedAt time.Time, endMeter, energyKWh, costAmount float64, durationMinutes int) error
}

// HoldStore is the ephemeral slot lock store.
type HoldStore interface {
	Create(ctx context.Context, hold models.Hold) (models.Hold, error)
	Release(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*models.Hold, error)
	ConnectorHolds(ctx context.Context, connectorID int64) ([]models.HoldWindow, error)
}

// StateStore is the cached connector status projection.
type StateStore interface {
	Update(ctx context.Context, state models.ConnectorState) error
	Get(ctx context.Context, stationID, connectorID int64) (*models.ConnectorState, error)
	StationConnectors(ctx context.Context, stationID int64) ([]models.ConnectorState, error)
	BatchUpdate(ctx context.Context, states []models.ConnectorState) error
}

// AvailabilityCache caches computed slot grids.
type AvailabilityCache interface {
	Get(ctx context.Context, key string) ([]models.Slot, bool, error)
	Set(ctx context.Context, key string, slots []models.Slot) error
	InvalidateStation(ctx context.Context, stationID int64) error
}

// EventPublisher fans out notifications. Methods never return errors; delivery
// is best-effort by contract.
type EventPublisher interface {
	ConnectorStatusChanged(ctx context.Context, stationID, connectorID int64, status models.ConnectorStatus, bookingID *int64)
	HoldCreated(ctx context.Context, stationID, connectorID int64, start, end time.Time, expiresInSeconds int)
	BookingConfirmed(ctx context.Context, b *models.Booking)
	SessionStarted(ctx context.Context, s *models.ChargingSession)
	SessionEnded(ctx context.Context, s *models.ChargingSession)
	StationUpdated(ctx context.Context, stationID, connectorID int64, status models.ConnectorStatus, reason string)
}
