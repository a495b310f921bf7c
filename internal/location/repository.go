package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for location persistence operations.
type Repository interface {
	Create(ctx context.Context, loc *Location) error
	Get(ctx context.Context, id string) (*Location, error)
	List(ctx context.Context, orgID string) ([]Location, error)
	ListVisible(ctx context.Context, orgID string) ([]Location, error)
	Update(ctx context.Context, loc *Location) error
	Delete(ctx context.Context, id string) error
}

const locationColumns = `id, org_id, name, address, timezone, hidden, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed location repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new location. The ID and timestamps are generated if
// empty.
func (r *SQLiteRepository) Create(ctx context.Context, loc *Location) error {
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = now
	}
	loc.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO locations (`+locationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.OrgID, loc.Name, loc.Address, loc.Timezone,
		boolToInt(loc.Hidden),
		loc.CreatedAt.Format(time.RFC3339), loc.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting location %s: %w", loc.ID, err)
	}
	return nil
}

// Get returns a single location by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Location, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = ?`, id)

	loc, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying location: %w", err)
	}
	return loc, nil
}

// List returns all of an organisation's locations ordered by name.
func (r *SQLiteRepository) List(ctx context.Context, orgID string) ([]Location, error) {
	return r.queryLocations(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE org_id = ? ORDER BY name`, orgID)
}

// ListVisible returns the organisation's locations that appear in
// user-facing availability searches.
func (r *SQLiteRepository) ListVisible(ctx context.Context, orgID string) ([]Location, error) {
	return r.queryLocations(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE org_id = ? AND hidden = 0 ORDER BY name`, orgID)
}

// Update modifies an existing location.
func (r *SQLiteRepository) Update(ctx context.Context, loc *Location) error {
	if err := ValidateLocation(loc); err != nil {
		return err
	}
	loc.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE locations SET name = ?, address = ?, timezone = ?, hidden = ?, updated_at = ?
		WHERE id = ?`,
		loc.Name, loc.Address, loc.Timezone, boolToInt(loc.Hidden),
		loc.UpdatedAt.Format(time.RFC3339), loc.ID,
	)
	if err != nil {
		return fmt.Errorf("updating location %s: %w", loc.ID, err)
	}
	return checkAffected(result)
}

// Delete removes a location. Locations that still have devices assigned
// cannot be deleted; reassign or remove the devices first.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	var devices int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE location_id = ?`, id).Scan(&devices)
	if err != nil {
		return fmt.Errorf("counting devices at location: %w", err)
	}
	if devices > 0 {
		return fmt.Errorf("%w: %d devices at %s", ErrHasDevices, devices, id)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting location %s: %w", id, err)
	}
	return checkAffected(result)
}

func (r *SQLiteRepository) queryLocations(ctx context.Context, query string, args ...any) ([]Location, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var locations []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, *loc)
	}
	return locations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	var hidden int
	var createdAt, updatedAt string

	err := row.Scan(&loc.ID, &loc.OrgID, &loc.Name, &loc.Address,
		&loc.Timezone, &hidden, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	loc.Hidden = hidden != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		loc.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		loc.UpdatedAt = t
	}
	return &loc, nil
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
