package repository

import (
	"context"
	"database/sql"
	"errors"

	"chargebook/internal/models"
)

// ErrConnectorNotFound indicates a missing connector.
var ErrConnectorNotFound = errors.New("connector not found")

// ConnectorRepository reads and mutates the connector catalog.
type ConnectorRepository struct {
	db *sql.DB
}

// NewConnectorRepository returns repository.
func NewConnectorRepository(db *sql.DB) *ConnectorRepository {
	return &ConnectorRepository{db: db}
}

const connectorColumns = `
	id, station_id, connector_number, connector_type, power_kw, status,
	current_booking_id, vendor_connector_id, created_at, updated_at
`

func scanConnector(row *sql.Row) (*models.Connector, error) {
	var c models.Connector
	err := row.Scan(
		&c.ID,
		&c.StationID,
		&c.ConnectorNumber,
		&c.ConnectorType,
		&c.PowerKW,
		&c.Status,
		&c.CurrentBookingID,
		&c.VendorConnectorID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectorNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByID returns a connector by primary key.
func (r *ConnectorRepository) GetByID(ctx context.Context, id int64) (*models.Connector, error) {
	const query = `SELECT ` + connectorColumns + ` FROM connectors WHERE id = $1`
	return scanConnector(r.db.QueryRowContext(ctx, query, id))
}

// GetByVendorID returns a connector by its vendor-assigned external id.
func (r *ConnectorRepository) GetByVendorID(ctx context.Context, vendorConnectorID string) (*models.Connector, error) {
	const query = `SELECT ` + connectorColumns + ` FROM connectors WHERE vendor_connector_id = $1`
	return scanConnector(r.db.QueryRowContext(ctx, query, vendorConnectorID))
}

// ListByStation returns every connector at a station ordered by number.
func (r *ConnectorRepository) ListByStation(ctx context.Context, stationID int64) ([]models.Connector, error) {
	const query = `
		SELECT ` + connectorColumns + `
		FROM connectors
		WHERE station_id = $1
		ORDER BY connector_number
	`
	rows, err := r.db.QueryContext(ctx, query, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var connectors []models.Connector
	for rows.Next() {
		var c models.Connector
		if err := rows.Scan(
			&c.ID,
			&c.StationID,
			&c.ConnectorNumber,
			&c.ConnectorType,
			&c.PowerKW,
			&c.Status,
			&c.CurrentBookingID,
			&c.VendorConnectorID,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		connectors = append(connectors, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return connectors, nil
}

// UpdateStatus sets the connector status and booking reference.
func (r *ConnectorRepository) UpdateStatus(ctx context.Context, connectorID int64, status models.ConnectorStatus, bookingID *int64) error {
	const query = `
		UPDATE connectors
		SET status = $2,
		    current_booking_id = $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, connectorID, string(status), bookingID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConnectorNotFound
	}
	return nil
}
