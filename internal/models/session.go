package models

import "time"

// SessionStatus enumerates charging session states.
type SessionStatus string

const (
	SessionStarting  SessionStatus = "STARTING"
	SessionCharging  SessionStatus = "CHARGING"
	SessionStopping  SessionStatus = "STOPPING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// ChargingSession records actual energy delivery on a connector. BookingID is
// nil when the session was started by a vendor event without a prior booking.
type ChargingSession struct {
	ID                int64         `db:"id" json:"id"`
	BookingID         *int64        `db:"booking_id" json:"booking_id,omitempty"`
	UserID            int64         `db:"user_id" json:"user_id"`
	StationID         int64         `db:"station_id" json:"station_id"`
	ConnectorID       int64         `db:"connector_id" json:"connector_id"`
	StartedAt         time.Time     `db:"started_at" json:"started_at"`
	EndedAt           *time.Time    `db:"ended_at" json:"ended_at,omitempty"`
	StartMeterReading float64       `db:"start_meter_reading" json:"start_meter_reading"`
	EndMeterReading   float64       `db:"end_meter_reading" json:"end_meter_reading"`
	EnergyKWh         float64       `db:"energy_kwh" json:"energy_kwh"`
	DurationMinutes   int           `db:"duration_minutes" json:"duration_minutes"`
	CostAmount        float64       `db:"cost_amount" json:"cost_amount"`
	Status            SessionStatus `db:"status" json:"status"`
	VendorSessionID   string        `db:"vendor_session_id" json:"vendor_session_id,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}
