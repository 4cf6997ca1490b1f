package models

import "time"

// BookingStatus enumerates booking lifecycle states.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingActive    BookingStatus = "ACTIVE"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingNoShow    BookingStatus = "NO_SHOW"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Terminal reports whether no further transitions are allowed from the status.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingNoShow || s == BookingCompleted
}

// Payment status values stored alongside a booking. The payment itself is
// handled by an external service; only the reference and its last known
// status are persisted here.
const (
	PaymentAuthorized = "AUTHORIZED"
)

// Vendor sync status values.
const (
	VendorSyncPending = "PENDING"
	VendorSyncSynced  = "SYNCED"
	VendorSyncAcked   = "ACKED"
)

// Booking is a durable reservation of a connector for a time window.
// For any connector, CONFIRMED and ACTIVE bookings have pairwise-disjoint
// [StartTS, EndTS) ranges; the database exclusion constraint is the final
// authority on that invariant.
type Booking struct {
	ID               int64         `db:"id" json:"id"`
	UserID           int64         `db:"user_id" json:"user_id"`
	StationID        int64         `db:"station_id" json:"station_id"`
	ConnectorID      int64         `db:"connector_id" json:"connector_id"`
	StartTS          time.Time     `db:"start_ts" json:"start_ts"`
	EndTS            time.Time     `db:"end_ts" json:"end_ts"`
	Status           BookingStatus `db:"status" json:"status"`
	HoldToken        string        `db:"hold_token" json:"hold_token"`
	PaymentID        string        `db:"payment_id" json:"payment_id,omitempty"`
	PaymentStatus    string        `db:"payment_status" json:"payment_status,omitempty"`
	VendorBookingID  string        `db:"vendor_booking_id" json:"vendor_booking_id,omitempty"`
	VendorSyncStatus string        `db:"vendor_sync_status" json:"vendor_sync_status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}
