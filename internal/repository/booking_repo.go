package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"chargebook/internal/models"
)

// Booking repository errors.
var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrBookingOverlap  = errors.New("booking overlaps an existing booking")
)

// exclusionViolation is the postgres error code raised by the bookings range
// exclusion constraint, the final authority on the overlap invariant.
const exclusionViolation = "23P01"

// BookingRepository persists bookings and drives the connector transitions
// that accompany booking lifecycle changes.
type BookingRepository struct {
	db *sql.DB
}

// NewBookingRepository returns repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `
	id, user_id, station_id, connector_id, start_ts, end_ts, status, hold_token,
	payment_id, payment_status, vendor_booking_id, vendor_sync_status, created_at, updated_at
`

func scanBooking(row *sql.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.StationID,
		&b.ConnectorID,
		&b.StartTS,
		&b.EndTS,
		&b.Status,
		&b.HoldToken,
		&b.PaymentID,
		&b.PaymentStatus,
		&b.VendorBookingID,
		&b.VendorSyncStatus,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// OverlapExists reports whether any blocking booking overlaps [start, end) on
// the connector. PENDING rows predate the hold protocol but still block.
func (r *BookingRepository) OverlapExists(ctx context.Context, connectorID int64, start, end time.Time) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM bookings
			WHERE connector_id = $1
			  AND status IN ('PENDING', 'CONFIRMED', 'ACTIVE')
			  AND start_ts < $3
			  AND end_ts > $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, connectorID, start, end).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Confirm inserts the booking row and flips its connector to RESERVED inside
// one transaction. The database exclusion constraint firing surfaces as
// ErrBookingOverlap.
func (r *BookingRepository) Confirm(ctx context.Context, b *models.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertQuery = `
		INSERT INTO bookings (user_id, station_id, connector_id, start_ts, end_ts, status,
			hold_token, payment_id, payment_status, vendor_booking_id, vendor_sync_status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertQuery,
		b.UserID,
		b.StationID,
		b.ConnectorID,
		b.StartTS,
		b.EndTS,
		string(b.Status),
		b.HoldToken,
		b.PaymentID,
		b.PaymentStatus,
		b.VendorBookingID,
		b.VendorSyncStatus,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return ErrBookingOverlap
		}
		return err
	}

	const connectorQuery = `
		UPDATE connectors
		SET status = $2,
		    current_booking_id = $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, connectorQuery, b.ConnectorID, string(models.ConnectorReserved), b.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// Close transitions the booking to a terminal status and frees its connector
// in one transaction. Only bookings currently in one of the given statuses
// are touched; otherwise ErrBookingNotFound is returned, which lets callers
// like the no-show reconciler skip rows another instance already processed.
func (r *BookingRepository) Close(ctx context.Context, bookingID, connectorID int64, from []models.BookingStatus, to models.BookingStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	const bookingQuery = `
		UPDATE bookings
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = ANY($3)
	`
	result, err := tx.ExecContext(ctx, bookingQuery, bookingID, string(to), statuses)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookingNotFound
	}

	const connectorQuery = `
		UPDATE connectors
		SET status = $2,
		    current_booking_id = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, connectorQuery, connectorID, string(models.ConnectorAvailable)); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID returns a booking by primary key.
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.db.QueryRowContext(ctx, query, id))
}

// GetByVendorBookingID returns a booking by the vendor's booking reference.
func (r *BookingRepository) GetByVendorBookingID(ctx context.Context, vendorBookingID string) (*models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE vendor_booking_id = $1`
	return scanBooking(r.db.QueryRowContext(ctx, query, vendorBookingID))
}

// UpdateVendorSyncStatus updates only the vendor sync marker; the booking
// lifecycle status is never altered by vendor notifications.
func (r *BookingRepository) UpdateVendorSyncStatus(ctx context.Context, id int64, syncStatus string) error {
	const query = `
		UPDATE bookings
		SET vendor_sync_status = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, syncStatus)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// MarkActive transitions a CONFIRMED booking to ACTIVE on session start.
func (r *BookingRepository) MarkActive(ctx context.Context, id int64) error {
	const query = `
		UPDATE bookings
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query, id, string(models.BookingActive), string(models.BookingConfirmed))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// ListByUser returns the user's bookings, newest first, optionally filtered
// by status.
func (r *BookingRepository) ListByUser(ctx context.Context, userID int64, status models.BookingStatus, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY start_ts DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListActiveByStation returns CONFIRMED and ACTIVE bookings at a station
// overlapping [from, to), used by the availability calculator.
func (r *BookingRepository) ListActiveByStation(ctx context.Context, stationID int64, from, to time.Time) ([]models.Booking, error) {
	const query = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE station_id = $1
		  AND status IN ('CONFIRMED', 'ACTIVE')
		  AND start_ts < $3
		  AND end_ts > $2
		ORDER BY start_ts
	`
	rows, err := r.db.QueryContext(ctx, query, stationID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// NoShowCandidates returns CONFIRMED bookings whose start lies in
// [startedAfter, graceCutoff], i.e. past grace but within the lookback
// window so very old stuck rows are not rescanned forever.
func (r *BookingRepository) NoShowCandidates(ctx context.Context, graceCutoff, startedAfter time.Time) ([]models.Booking, error) {
	const query = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'CONFIRMED'
		  AND start_ts <= $1
		  AND start_ts >= $2
		ORDER BY start_ts
	`
	rows, err := r.db.QueryContext(ctx, query, graceCutoff, startedAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(
			&b.ID,
			&b.UserID,
			&b.StationID,
			&b.ConnectorID,
			&b.StartTS,
			&b.EndTS,
			&b.Status,
			&b.HoldToken,
			&b.PaymentID,
			&b.PaymentStatus,
			&b.VendorBookingID,
			&b.VendorSyncStatus,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}
