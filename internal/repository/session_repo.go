package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chargebook/internal/models"
)

// ErrSessionNotFound indicates a missing charging session.
var ErrSessionNotFound = errors.New("charging session not found")

// SessionRepository persists charging sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, booking_id, user_id, station_id, connector_id, started_at, ended_at,
	start_meter_reading, end_meter_reading, energy_kwh, duration_minutes,
	cost_amount, status, vendor_session_id, created_at, updated_at
`

func scanSession(row *sql.Row) (*models.ChargingSession, error) {
	var s models.ChargingSession
	err := row.Scan(
		&s.ID,
		&s.BookingID,
		&s.UserID,
		&s.StationID,
		&s.ConnectorID,
		&s.StartedAt,
		&s.EndedAt,
		&s.StartMeterReading,
		&s.EndMeterReading,
		&s.EnergyKWh,
		&s.DurationMinutes,
		&s.CostAmount,
		&s.Status,
		&s.VendorSessionID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a session started by a vendor event.
func (r *SessionRepository) Create(ctx context.Context, s *models.ChargingSession) error {
	const query = `
		INSERT INTO charging_sessions (booking_id, user_id, station_id, connector_id,
			started_at, start_meter_reading, status, vendor_session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		s.BookingID,
		s.UserID,
		s.StationID,
		s.ConnectorID,
		s.StartedAt,
		s.StartMeterReading,
		string(s.Status),
		s.VendorSessionID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by primary key.
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*models.ChargingSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM charging_sessions WHERE id = $1`
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

// GetByVendorSessionID returns a session by the vendor's session reference.
func (r *SessionRepository) GetByVendorSessionID(ctx context.Context, vendorSessionID string) (*models.ChargingSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM charging_sessions WHERE vendor_session_id = $1`
	return scanSession(r.db.QueryRowContext(ctx, query, vendorSessionID))
}

// Finish finalizes a session with its end readings and computed totals.
func (r *SessionRepository) Finish(ctx context.Context, id int64, endedAt time.Time, endMeter, energyKWh, costAmount float64, durationMinutes int) error {
	const query = `
		UPDATE charging_sessions
		SET ended_at = $2,
		    end_meter_reading = $3,
		    energy_kwh = $4,
		    cost_amount = $5,
		    duration_minutes = $6,
		    status = $7,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, endedAt, endMeter, energyKWh, costAmount, durationMinutes, string(models.SessionCompleted))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}
