package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargebook/internal/models"
)

// Event types emitted on the station and connector channels.
const (
	TypeConnectorStatusChanged = "connector.status_changed"
	TypeSlotHoldCreated        = "slot.hold_created"
	TypeBookingConfirmed       = "booking.confirmed"
	TypeSessionStarted         = "session.started"
	TypeSessionEnded           = "session.ended"
	TypeStationUpdated         = "station.updated"
)

// Event is the wire shape every published message carries. Data holds only
// the identifiers and fields a UI needs to react, never full entity dumps.
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Publisher fans out state-change notifications over redis pub/sub. Delivery
// is best-effort: failures are logged and swallowed so a notification outage
// can never abort a booking operation.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher returns publisher.
func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

func stationChannel(stationID int64) string {
	return fmt.Sprintf("station:%d", stationID)
}

func connectorChannel(stationID, connectorID int64) string {
	return fmt.Sprintf("connector:%d:%d", stationID, connectorID)
}

func (p *Publisher) publish(ctx context.Context, channel, eventType string, data map[string]interface{}) {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		p.logger.Warn("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("channel", channel),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

// ConnectorStatusChanged announces a connector status transition.
func (p *Publisher) ConnectorStatusChanged(ctx context.Context, stationID, connectorID int64, status models.ConnectorStatus, bookingID *int64) {
	data := map[string]interface{}{
		"station_id":   stationID,
		"connector_id": connectorID,
		"status":       status,
	}
	if bookingID != nil {
		data["booking_id"] = *bookingID
	}
	p.publish(ctx, stationChannel(stationID), TypeConnectorStatusChanged, data)
	p.publish(ctx, connectorChannel(stationID, connectorID), TypeConnectorStatusChanged, data)
}

// HoldCreated announces a new slot hold.
func (p *Publisher) HoldCreated(ctx context.Context, stationID, connectorID int64, start, end time.Time, expiresInSeconds int) {
	p.publish(ctx, stationChannel(stationID), TypeSlotHoldCreated, map[string]interface{}{
		"station_id":         stationID,
		"connector_id":       connectorID,
		"start_ts":           start,
		"end_ts":             end,
		"expires_in_seconds": expiresInSeconds,
	})
}

// BookingConfirmed announces a confirmed booking.
func (p *Publisher) BookingConfirmed(ctx context.Context, b *models.Booking) {
	p.publish(ctx, stationChannel(b.StationID), TypeBookingConfirmed, map[string]interface{}{
		"station_id":   b.StationID,
		"connector_id": b.ConnectorID,
		"booking_id":   b.ID,
		"status":       b.Status,
		"start_ts":     b.StartTS,
		"end_ts":       b.EndTS,
	})
}

// SessionStarted announces a charging session start.
func (p *Publisher) SessionStarted(ctx context.Context, s *models.ChargingSession) {
	data := map[string]interface{}{
		"station_id":   s.StationID,
		"connector_id": s.ConnectorID,
		"session_id":   s.ID,
		"status":       s.Status,
		"started_at":   s.StartedAt,
	}
	if s.BookingID != nil {
		data["booking_id"] = *s.BookingID
	}
	p.publish(ctx, stationChannel(s.StationID), TypeSessionStarted, data)
}

// SessionEnded announces a completed charging session.
func (p *Publisher) SessionEnded(ctx context.Context, s *models.ChargingSession) {
	data := map[string]interface{}{
		"station_id":   s.StationID,
		"connector_id": s.ConnectorID,
		"session_id":   s.ID,
		"status":       s.Status,
		"energy_kwh":   s.EnergyKWh,
	}
	if s.EndedAt != nil {
		data["ended_at"] = *s.EndedAt
	}
	if s.BookingID != nil {
		data["booking_id"] = *s.BookingID
	}
	p.publish(ctx, stationChannel(s.StationID), TypeSessionEnded, data)
}

// StationUpdated announces a generic station change, used by cancellation and
// no-show processing when a connector frees up.
func (p *Publisher) StationUpdated(ctx context.Context, stationID, connectorID int64, status models.ConnectorStatus, reason string) {
	p.publish(ctx, stationChannel(stationID), TypeStationUpdated, map[string]interface{}{
		"station_id":   stationID,
		"connector_id": connectorID,
		"status":       status,
		"reason":       reason,
	})
}
