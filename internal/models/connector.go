package models

import "time"

// ConnectorStatus enumerates the states a physical charging port can be in.
type ConnectorStatus string

const (
	ConnectorAvailable   ConnectorStatus = "AVAILABLE"
	ConnectorOccupied    ConnectorStatus = "OCCUPIED"
	ConnectorReserved    ConnectorStatus = "RESERVED"
	ConnectorMaintenance ConnectorStatus = "MAINTENANCE"
	ConnectorOffline     ConnectorStatus = "OFFLINE"
	ConnectorFaulted     ConnectorStatus = "FAULTED"
)

// Connector is one physical charging port at a station.
// CurrentBookingID is set only when the status is the result of a booking;
// vendor-driven OCCUPIED without a booking leaves it nil.
type Connector struct {
	ID                int64           `db:"id" json:"id"`
	StationID         int64           `db:"station_id" json:"station_id"`
	ConnectorNumber   int             `db:"connector_number" json:"connector_number"`
	ConnectorType     string          `db:"connector_type" json:"connector_type"`
	PowerKW           float64         `db:"power_kw" json:"power_kw"`
	Status            ConnectorStatus `db:"status" json:"status"`
	CurrentBookingID  *int64          `db:"current_booking_id" json:"current_booking_id,omitempty"`
	VendorConnectorID string          `db:"vendor_connector_id" json:"vendor_connector_id,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// OutOfService reports whether the connector cannot accept new holds or bookings.
func (c *Connector) OutOfService() bool {
	return c.Status == ConnectorOffline || c.Status == ConnectorMaintenance
}

// ConnectorState is the cached read model of a connector's live status.
// It is derived from confirmed bookings, cancellations and vendor feeds and
// is never authoritative: a cache miss means "consult the durable store".
type ConnectorState struct {
	StationID         int64           `json:"station_id"`
	ConnectorID       int64           `json:"connector_id"`
	Status            ConnectorStatus `json:"status"`
	BookingID         *int64          `json:"booking_id,omitempty"`
	VendorConnectorID string          `json:"vendor_connector_id,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
