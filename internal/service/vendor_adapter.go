package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"chargebook/internal/models"
	"chargebook/internal/repository"
)

// ErrConnectorRefMissing indicates a vendor payload without any way to
// resolve a connector.
var ErrConnectorRefMissing = errors.New("connector reference missing")

// VendorAdapter translates vendor hardware vocabulary into the internal
// model: connector statuses, booking acknowledgements and session events.
type VendorAdapter struct {
	connectors   ConnectorRepository
	bookings     BookingRepository
	sessions     SessionRepository
	state        StateStore
	availability AvailabilityCache
	events       EventPublisher
	logger       *zap.Logger
	nowFn        func() time.Time
}

// NewVendorAdapter builds the adapter.
func NewVendorAdapter(
	connectors ConnectorRepository,
	bookings BookingRepository,
	sessions SessionRepository,
	state StateStore,
	availability AvailabilityCache,
	events EventPublisher,
	logger *zap.Logger,
) *VendorAdapter {
	return &VendorAdapter{
		connectors:   connectors,
		bookings:     bookings,
		sessions:     sessions,
		state:        state,
		availability: availability,
		events:       events,
		logger:       logger,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// MapVendorStatus translates a vendor connector status string into the
// internal enum. Unknown statuses default to AVAILABLE.
func MapVendorStatus(vendorStatus string) models.ConnectorStatus {
	switch strings.TrimSpace(vendorStatus) {
	case "Charging", "Preparing", "Finishing", "Occupied":
		return models.ConnectorOccupied
	case "SuspendedEVSE", "SuspendedEV", "Unavailable":
		return models.ConnectorMaintenance
	case "Faulted":
		return models.ConnectorFaulted
	case "Reserved":
		return models.ConnectorReserved
	default:
		return models.ConnectorAvailable
	}
}

// ConnectorStatusUpdate is a normalized vendor status report. The connector
// is resolved by internal id when present, otherwise by vendor id.
type ConnectorStatusUpdate struct {
	StationID         int64  `json:"station_id"`
	ConnectorID       int64  `json:"connector_id"`
	VendorConnectorID string `json:"vendor_connector_id"`
	Status            string `json:"status"`
}

func (a *VendorAdapter) resolveConnector(ctx context.Context, connectorID int64, vendorConnectorID string) (*models.Connector, error) {
	if connectorID > 0 {
		return a.connectors.GetByID(ctx, connectorID)
	}
	if vendorConnectorID != "" {
		return a.connectors.GetByVendorID(ctx, vendorConnectorID)
	}
	return nil, ErrConnectorRefMissing
}

// ProcessConnectorStatusUpdate applies a vendor status report to the durable
// connector row and the projection. The booking reference is preserved: a
// vendor-driven OCCUPIED without a booking must not invent or drop one.
func (a *VendorAdapter) ProcessConnectorStatusUpdate(ctx context.Context, upd ConnectorStatusUpdate) (*models.Connector, error) {
	connector, err := a.resolveConnector(ctx, upd.ConnectorID, upd.VendorConnectorID)
	if err != nil {
		return nil, err
	}

	status := MapVendorStatus(upd.Status)
	if err := a.connectors.UpdateStatus(ctx, connector.ID, status, connector.CurrentBookingID); err != nil {
		return nil, err
	}
	connector.Status = status

	a.project(ctx, models.ConnectorState{
		StationID:         connector.StationID,
		ConnectorID:       connector.ID,
		Status:            status,
		BookingID:         connector.CurrentBookingID,
		VendorConnectorID: connector.VendorConnectorID,
	})
	a.events.ConnectorStatusChanged(ctx, connector.StationID, connector.ID, status, connector.CurrentBookingID)
	a.invalidate(ctx, connector.StationID)

	return connector, nil
}

// ProcessConnectorStatusBatch applies a burst of vendor status reports,
// pipelining the projection writes. Per-update durable failures are logged
// and skipped.
func (a *VendorAdapter) ProcessConnectorStatusBatch(ctx context.Context, updates []ConnectorStatusUpdate) error {
	states := make([]models.ConnectorState, 0, len(updates))
	stations := make(map[int64]struct{})

	for _, upd := range updates {
		connector, err := a.resolveConnector(ctx, upd.ConnectorID, upd.VendorConnectorID)
		if err != nil {
			a.logger.Warn("failed to resolve connector in batch",
				zap.Int64("connector_id", upd.ConnectorID),
				zap.String("vendor_connector_id", upd.VendorConnectorID),
				zap.Error(err),
			)
			continue
		}
		status := MapVendorStatus(upd.Status)
		if err := a.connectors.UpdateStatus(ctx, connector.ID, status, connector.CurrentBookingID); err != nil {
			a.logger.Warn("failed to update connector in batch", zap.Int64("connector_id", connector.ID), zap.Error(err))
			continue
		}
		states = append(states, models.ConnectorState{
			StationID:         connector.StationID,
			ConnectorID:       connector.ID,
			Status:            status,
			BookingID:         connector.CurrentBookingID,
			VendorConnectorID: connector.VendorConnectorID,
		})
		stations[connector.StationID] = struct{}{}
		a.events.ConnectorStatusChanged(ctx, connector.StationID, connector.ID, status, connector.CurrentBookingID)
	}

	if len(states) == 0 {
		return nil
	}
	if err := a.state.BatchUpdate(ctx, states); err != nil {
		a.logger.Warn("failed to batch update projection", zap.Error(err))
	}
	for stationID := range stations {
		a.invalidate(ctx, stationID)
	}
	return nil
}

// VendorBookingNotification acknowledges a booking the vendor synced.
type VendorBookingNotification struct {
	VendorBookingID   string `json:"vendor_booking_id"`
	Status            string `json:"status"`
	VendorConnectorID string `json:"vendor_connector_id"`
}

// ProcessVendorBookingNotification updates only the vendor sync marker on the
// referenced booking. Unknown vendor booking ids are acknowledged without
// error: webhooks retrying forever over stale data help nobody.
func (a *VendorAdapter) ProcessVendorBookingNotification(ctx context.Context, n VendorBookingNotification) error {
	booking, err := a.bookings.GetByVendorBookingID(ctx, n.VendorBookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			a.logger.Warn("vendor booking notification for unknown booking", zap.String("vendor_booking_id", n.VendorBookingID))
			return nil
		}
		return err
	}

	syncStatus := models.VendorSyncSynced
	if strings.EqualFold(n.Status, "Accepted") {
		syncStatus = models.VendorSyncAcked
	}
	return a.bookings.UpdateVendorSyncStatus(ctx, booking.ID, syncStatus)
}

// SessionStartInput is a normalized vendor session start event.
type SessionStartInput struct {
	VendorSessionID   string  `json:"vendor_session_id"`
	ConnectorID       int64   `json:"connector_id"`
	VendorConnectorID string  `json:"vendor_connector_id"`
	StartMeterReading float64 `json:"start_meter_reading"`
	BookingID         *int64  `json:"booking_id"`
}

// ProcessSessionStart flips the connector to OCCUPIED, activates the
// associated booking when there is one, and records the session.
func (a *VendorAdapter) ProcessSessionStart(ctx context.Context, in SessionStartInput) (*models.ChargingSession, error) {
	connector, err := a.resolveConnector(ctx, in.ConnectorID, in.VendorConnectorID)
	if err != nil {
		return nil, err
	}

	// The booking comes from the event when given, otherwise from the
	// connector's current reservation. Either way the linked booking must go
	// ACTIVE, or the reconciler would expire it mid-charge.
	var userID int64
	bookingRef := connector.CurrentBookingID
	bookingID := in.BookingID
	if bookingID == nil {
		bookingID = connector.CurrentBookingID
	}
	if bookingID != nil {
		booking, err := a.bookings.GetByID(ctx, *bookingID)
		if err != nil {
			if !errors.Is(err, repository.ErrBookingNotFound) {
				return nil, err
			}
			a.logger.Warn("session start references unknown booking", zap.Int64("booking_id", *bookingID))
		} else {
			userID = booking.UserID
			bookingRef = &booking.ID
			if booking.Status == models.BookingConfirmed {
				if err := a.bookings.MarkActive(ctx, booking.ID); err != nil {
					a.logger.Warn("failed to activate booking", zap.Int64("booking_id", booking.ID), zap.Error(err))
				}
			}
		}
	}

	if err := a.connectors.UpdateStatus(ctx, connector.ID, models.ConnectorOccupied, bookingRef); err != nil {
		return nil, err
	}

	session := &models.ChargingSession{
		BookingID:         bookingRef,
		UserID:            userID,
		StationID:         connector.StationID,
		ConnectorID:       connector.ID,
		StartedAt:         a.nowFn(),
		StartMeterReading: in.StartMeterReading,
		Status:            models.SessionStarting,
		VendorSessionID:   in.VendorSessionID,
	}
	if err := a.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	a.project(ctx, models.ConnectorState{
		StationID:         connector.StationID,
		ConnectorID:       connector.ID,
		Status:            models.ConnectorOccupied,
		BookingID:         bookingRef,
		VendorConnectorID: connector.VendorConnectorID,
	})
	a.events.SessionStarted(ctx, session)
	a.invalidate(ctx, connector.StationID)

	return session, nil
}

// SessionEndInput is a normalized vendor session end event.
type SessionEndInput struct {
	VendorSessionID string   `json:"vendor_session_id"`
	SessionID       int64    `json:"session_id"`
	EndMeterReading float64  `json:"end_meter_reading"`
	EnergyKWh       *float64 `json:"energy_kwh"`
	CostAmount      *float64 `json:"cost_amount"`
}

// ProcessSessionEnd finalizes the session, completes the associated booking
// when there is one, and frees the connector. Energy falls back to the meter
// delta when the vendor does not supply it.
func (a *VendorAdapter) ProcessSessionEnd(ctx context.Context, in SessionEndInput) (*models.ChargingSession, error) {
	var session *models.ChargingSession
	var err error
	if in.SessionID > 0 {
		session, err = a.sessions.GetByID(ctx, in.SessionID)
	} else {
		session, err = a.sessions.GetByVendorSessionID(ctx, in.VendorSessionID)
	}
	if err != nil {
		return nil, err
	}
	if session.EndedAt != nil {
		a.logger.Warn("session already finalized", zap.Int64("session_id", session.ID))
		return session, nil
	}

	endedAt := a.nowFn()
	energy := in.EndMeterReading - session.StartMeterReading
	if energy < 0 {
		energy = 0
	}
	if in.EnergyKWh != nil {
		energy = *in.EnergyKWh
	}
	var cost float64
	if in.CostAmount != nil {
		cost = *in.CostAmount
	}
	durationMinutes := int(endedAt.Sub(session.StartedAt).Minutes())

	if err := a.sessions.Finish(ctx, session.ID, endedAt, in.EndMeterReading, energy, cost, durationMinutes); err != nil {
		return nil, err
	}
	session.EndedAt = &endedAt
	session.EndMeterReading = in.EndMeterReading
	session.EnergyKWh = energy
	session.CostAmount = cost
	session.DurationMinutes = durationMinutes
	session.Status = models.SessionCompleted

	// Close frees the connector together with the booking transition. When it
	// cannot (the booking was cancelled while the session ran), the connector
	// row must still be freed directly or it would disagree with the
	// projection written below.
	freed := false
	if session.BookingID != nil {
		from := []models.BookingStatus{models.BookingConfirmed, models.BookingActive}
		if err := a.bookings.Close(ctx, *session.BookingID, session.ConnectorID, from, models.BookingCompleted); err != nil {
			a.logger.Warn("failed to complete booking", zap.Int64("booking_id", *session.BookingID), zap.Error(err))
		} else {
			freed = true
		}
	}
	if !freed {
		if err := a.connectors.UpdateStatus(ctx, session.ConnectorID, models.ConnectorAvailable, nil); err != nil {
			a.logger.Warn("failed to free connector", zap.Int64("connector_id", session.ConnectorID), zap.Error(err))
		}
	}

	a.project(ctx, models.ConnectorState{
		StationID:   session.StationID,
		ConnectorID: session.ConnectorID,
		Status:      models.ConnectorAvailable,
	})
	a.events.SessionEnded(ctx, session)
	a.invalidate(ctx, session.StationID)

	return session, nil
}

func (a *VendorAdapter) project(ctx context.Context, state models.ConnectorState) {
	if err := a.state.Update(ctx, state); err != nil {
		a.logger.Warn("failed to update connector projection",
			zap.Int64("connector_id", state.ConnectorID),
			zap.Error(err),
		)
	}
}

func (a *VendorAdapter) invalidate(ctx context.Context, stationID int64) {
	if err := a.availability.InvalidateStation(ctx, stationID); err != nil {
		a.logger.Warn("failed to invalidate availability cache", zap.Int64("station_id", stationID), zap.Error(err))
	}
}
