package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices for an organisation.
	List(ctx context.Context, orgID string) ([]Device, error)

	// ListAll retrieves every device across organisations.
	// Used to warm the registry cache on startup.
	ListAll(ctx context.Context) ([]Device, error)

	// ListByLocation retrieves all devices at a specific location.
	ListByLocation(ctx context.Context, locationID string) ([]Device, error)

	// ListForSelection retrieves candidate devices for availability
	// selection, ordered by locker number then creation time for
	// deterministic tie-breaking.
	ListForSelection(ctx context.Context, sel Selection) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrExists if a device with the same ID already exists.
	Create(ctx context.Context, d *Device) error

	// Update modifies an existing device.
	// Returns ErrNotFound if the device does not exist.
	Update(ctx context.Context, d *Device) error

	// Delete removes a device by ID.
	Delete(ctx context.Context, id string) error

	// UpdateStatus updates only the business status of a device.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// UpdateLockStatus updates only the observed lock status.
	UpdateLockStatus(ctx context.Context, id string, status LockStatus) error

	// IncrementTransactionCount bumps the finished-transaction counter.
	IncrementTransactionCount(ctx context.Context, id string) error

	// AssignLocation moves a device to another location. Reassignment is
	// an explicit operation, never a scheduling side effect.
	AssignLocation(ctx context.Context, id string, locationID *string) error
}

// deviceColumns is the scan order shared by all queries.
const deviceColumns = `id, org_id, name, custom_identifier, locker_number,
	hardware_type, mode, status, lock_status, transaction_count,
	vendor_payload, location_id, size_id, price_id, product_id,
	created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices for an organisation.
func (r *SQLiteRepository) List(ctx context.Context, orgID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE org_id = ?
		ORDER BY locker_number, created_at`
	return r.queryDevices(ctx, query, orgID)
}

// ListAll retrieves every device across organisations.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		ORDER BY locker_number, created_at`
	return r.queryDevices(ctx, query)
}

// ListByLocation retrieves all devices at a specific location.
func (r *SQLiteRepository) ListByLocation(ctx context.Context, locationID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices
		WHERE location_id = ?
		ORDER BY locker_number, created_at`
	return r.queryDevices(ctx, query, locationID)
}

// ListForSelection retrieves candidate devices for availability selection.
// The ordering makes selection deterministic: lowest locker number first,
// then earliest creation time.
func (r *SQLiteRepository) ListForSelection(ctx context.Context, sel Selection) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE org_id = ? AND mode = ?`
	args := []any{sel.OrgID, string(sel.Mode)}

	if sel.LocationID != "" {
		query += " AND location_id = ?"
		args = append(args, sel.LocationID)
	}
	if sel.SizeID != "" {
		query += " AND size_id = ?"
		args = append(args, sel.SizeID)
	}
	if sel.ProductID != "" {
		query += " AND product_id = ?"
		args = append(args, sel.ProductID)
	}

	query += " ORDER BY locker_number, created_at"
	return r.queryDevices(ctx, query, args...)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	payloadJSON, err := marshalPayload(d.VendorPayload)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OrgID, d.Name, d.CustomIdentifier, d.LockerNumber,
		string(d.HardwareType), string(d.Mode), string(d.Status), string(d.LockStatus),
		d.TransactionCount, payloadJSON, d.LocationID, d.SizeID, d.PriceID, d.ProductID,
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	payloadJSON, err := marshalPayload(d.VendorPayload)
	if err != nil {
		return err
	}

	d.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			name = ?, custom_identifier = ?, locker_number = ?,
			hardware_type = ?, mode = ?, status = ?, lock_status = ?,
			transaction_count = ?, vendor_payload = ?,
			location_id = ?, size_id = ?, price_id = ?, product_id = ?,
			updated_at = ?
		WHERE id = ?`,
		d.Name, d.CustomIdentifier, d.LockerNumber,
		string(d.HardwareType), string(d.Mode), string(d.Status), string(d.LockStatus),
		d.TransactionCount, payloadJSON,
		d.LocationID, d.SizeID, d.PriceID, d.ProductID,
		d.UpdatedAt.Format(time.RFC3339), d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return checkAffected(res)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return checkAffected(res)
}

// UpdateStatus updates only the business status of a device.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE devices SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}
	return checkAffected(res)
}

// UpdateLockStatus updates only the observed lock status.
func (r *SQLiteRepository) UpdateLockStatus(ctx context.Context, id string, status LockStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE devices SET lock_status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating lock status: %w", err)
	}
	return checkAffected(res)
}

// IncrementTransactionCount bumps the finished-transaction counter.
func (r *SQLiteRepository) IncrementTransactionCount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE devices SET transaction_count = transaction_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("incrementing transaction count: %w", err)
	}
	return checkAffected(res)
}

// AssignLocation moves a device to another location.
func (r *SQLiteRepository) AssignLocation(ctx context.Context, id string, locationID *string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE devices SET location_id = ?, updated_at = ? WHERE id = ?",
		locationID, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("assigning location: %w", err)
	}
	return checkAffected(res)
}

// queryDevices runs a multi-row device query.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice reads one device row in deviceColumns order.
func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var hardwareType, mode, status, lockStatus string
	var payloadJSON sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&d.ID, &d.OrgID, &d.Name, &d.CustomIdentifier, &d.LockerNumber,
		&hardwareType, &mode, &status, &lockStatus, &d.TransactionCount,
		&payloadJSON, &d.LocationID, &d.SizeID, &d.PriceID, &d.ProductID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.HardwareType = HardwareType(hardwareType)
	d.Mode = Mode(mode)
	d.Status = Status(status)
	d.LockStatus = LockStatus(lockStatus)

	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &d.VendorPayload); err != nil {
			return nil, fmt.Errorf("unmarshalling vendor payload: %w", err)
		}
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		d.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		d.UpdatedAt = t
	}

	return &d, nil
}

// marshalPayload serialises a vendor payload, mapping nil to NULL.
func marshalPayload(p VendorPayload) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshalling vendor payload: %w", err)
	}
	return string(data), nil
}

// checkAffected converts a zero-row update into ErrNotFound.
func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
