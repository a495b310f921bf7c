package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lockhaven/fleet-core/internal/device"
)

// Repository defines the interface for reservation persistence operations.
type Repository interface {
	// GetByID retrieves a reservation by its unique identifier.
	// Returns ErrNotFound if the reservation does not exist.
	GetByID(ctx context.Context, id string) (*Reservation, error)

	// GetByTrackingNumber retrieves a reservation by the courier tracking
	// number attached to it, within an organisation.
	GetByTrackingNumber(ctx context.Context, orgID, trackingNumber string) (*Reservation, error)

	// Create inserts a new reservation.
	Create(ctx context.Context, r *Reservation) error

	// Update modifies an existing reservation.
	Update(ctx context.Context, r *Reservation) error

	// ListActiveByDevice returns the device's reservations that have not
	// been canceled. These are the windows conflict checks run against.
	ListActiveByDevice(ctx context.Context, deviceID string) ([]Reservation, error)

	// ListByUser returns a user's reservations, newest first.
	ListByUser(ctx context.Context, userID string) ([]Reservation, error)
}

const reservationColumns = `id, org_id, tracking_number, mode, recurring,
	monday, tuesday, wednesday, thursday, friday, saturday, sunday,
	from_time, to_time, start_date, end_date, started, canceled_at,
	device_id, location_id, size_id, product_id, user_id, created_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a reservation by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`

	res, err := scanReservation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying reservation by id: %w", err)
	}
	return res, nil
}

// GetByTrackingNumber retrieves a reservation by courier tracking number.
func (r *SQLiteRepository) GetByTrackingNumber(ctx context.Context, orgID, trackingNumber string) (*Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE org_id = ? AND tracking_number = ? AND canceled_at IS NULL
		ORDER BY created_at DESC LIMIT 1`

	res, err := scanReservation(r.db.QueryRowContext(ctx, query, orgID, trackingNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying reservation by tracking number: %w", err)
	}
	return res, nil
}

// Create inserts a new reservation.
func (r *SQLiteRepository) Create(ctx context.Context, res *Reservation) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.OrgID, res.TrackingNumber, string(res.Mode), boolToInt(res.Recurring),
		boolToInt(res.Monday), boolToInt(res.Tuesday), boolToInt(res.Wednesday),
		boolToInt(res.Thursday), boolToInt(res.Friday), boolToInt(res.Saturday),
		boolToInt(res.Sunday),
		res.FromTime, res.ToTime,
		res.StartDate.UTC().Format(time.RFC3339), res.EndDate.UTC().Format(time.RFC3339),
		boolToInt(res.Started), timePtrString(res.CanceledAt),
		res.DeviceID, res.LocationID, res.SizeID, res.ProductID, res.UserID,
		res.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrExists
		}
		return fmt.Errorf("inserting reservation: %w", err)
	}
	return nil
}

// Update modifies an existing reservation.
func (r *SQLiteRepository) Update(ctx context.Context, res *Reservation) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reservations SET
			tracking_number = ?, started = ?, canceled_at = ?
		WHERE id = ?`,
		res.TrackingNumber, boolToInt(res.Started), timePtrString(res.CanceledAt), res.ID,
	)
	if err != nil {
		return fmt.Errorf("updating reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveByDevice returns the device's non-canceled reservations.
func (r *SQLiteRepository) ListActiveByDevice(ctx context.Context, deviceID string) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE device_id = ? AND canceled_at IS NULL
		ORDER BY created_at`
	return r.queryReservations(ctx, query, deviceID)
}

// ListByUser returns a user's reservations, newest first.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE user_id = ?
		ORDER BY created_at DESC`
	return r.queryReservations(ctx, query, userID)
}

func (r *SQLiteRepository) queryReservations(ctx context.Context, query string, args ...any) ([]Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reservations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var reservations []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reservation: %w", err)
		}
		reservations = append(reservations, *res)
	}
	return reservations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	var res Reservation
	var mode string
	var recurring, monday, tuesday, wednesday, thursday, friday, saturday, sunday, started int
	var startDate, endDate, createdAt string
	var canceledAt sql.NullString

	err := row.Scan(
		&res.ID, &res.OrgID, &res.TrackingNumber, &mode, &recurring,
		&monday, &tuesday, &wednesday, &thursday, &friday, &saturday, &sunday,
		&res.FromTime, &res.ToTime, &startDate, &endDate, &started, &canceledAt,
		&res.DeviceID, &res.LocationID, &res.SizeID, &res.ProductID, &res.UserID,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	res.Mode = device.Mode(mode)
	res.Recurring = recurring != 0
	res.Monday = monday != 0
	res.Tuesday = tuesday != 0
	res.Wednesday = wednesday != 0
	res.Thursday = thursday != 0
	res.Friday = friday != 0
	res.Saturday = saturday != 0
	res.Sunday = sunday != 0
	res.Started = started != 0

	if t, err := time.Parse(time.RFC3339, startDate); err == nil {
		res.StartDate = t
	}
	if t, err := time.Parse(time.RFC3339, endDate); err == nil {
		res.EndDate = t
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		res.CreatedAt = t
	}
	if canceledAt.Valid && canceledAt.String != "" {
		if t, err := time.Parse(time.RFC3339, canceledAt.String); err == nil {
			res.CanceledAt = &t
		}
	}

	return &res, nil
}

func timePtrString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
