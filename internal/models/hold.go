package models

import "time"

// Hold is an ephemeral soft-lock on a connector/time-window pair. It lives
// only in the cache and vanishes on TTL expiry or explicit release. A live
// hold blocks new overlapping holds on the same connector but does not
// guarantee the durable store is free; confirmation re-validates there.
type Hold struct {
	Token       string    `json:"token"`
	ConnectorID int64     `json:"connector_id"`
	StationID   int64     `json:"station_id"`
	UserID      int64     `json:"user_id"`
	StartTS     time.Time `json:"start_ts"`
	EndTS       time.Time `json:"end_ts"`
	CreatedAt   time.Time `json:"created_at"`
	TTLSeconds  int       `json:"ttl_seconds"`
}

// HoldWindow is the [Start, End) window of a live hold, parsed from the
// cache's per-connector hold index.
type HoldWindow struct {
	Key   string
	Start time.Time
	End   time.Time
}

// Slot is one free interval in a station's availability grid.
type Slot struct {
	ConnectorID     int64     `json:"connector_id"`
	ConnectorNumber int       `json:"connector_number"`
	ConnectorType   string    `json:"connector_type"`
	PowerKW         float64   `json:"power_kw"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}
