package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for event persistence operations.
type Repository interface {
	// GetByID retrieves an event by its unique identifier.
	// Returns ErrNotFound if the event does not exist.
	GetByID(ctx context.Context, id string) (*Event, error)

	// Create inserts a new event.
	// Returns ErrExists if an event with the same ID already exists.
	Create(ctx context.Context, e *Event) error

	// Update modifies an existing event.
	Update(ctx context.Context, e *Event) error

	// GetActiveByDevice returns the device's event in an active status,
	// or ErrNotFound if the device is free.
	GetActiveByDevice(ctx context.Context, deviceID string) (*Event, error)

	// ListActiveByDevice returns every active event for a device, newest
	// first. Used by the recovery sweep; in a healthy system the result
	// has at most one element.
	ListActiveByDevice(ctx context.Context, deviceID string) ([]Event, error)

	// ListDue returns events in a time-bounded status whose deadline has
	// elapsed at the given instant.
	ListDue(ctx context.Context, now time.Time) ([]Event, error)

	// ListByReservation returns all events spawned from a reservation,
	// newest first.
	ListByReservation(ctx context.Context, reservationID string) ([]Event, error)
}

const eventColumns = `id, org_id, device_id, user_id, reservation_id,
	event_type, event_status, total, refunded_amount,
	penalize_charge, penalize_reason, passcode, courier_pin_code,
	fault_flagged, expires_at, created_at, started_at, ended_at, canceled_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// activePlaceholders builds the status placeholder list and args shared
// by the active-event queries.
func activeArgs() (string, []any) {
	statuses := ActiveStatuses()
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		marks[i] = "?"
		args[i] = string(s)
	}
	return strings.Join(marks, ", "), args
}

// GetByID retrieves an event by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying event by id: %w", err)
	}
	return e, nil
}

// Create inserts a new event.
func (r *SQLiteRepository) Create(ctx context.Context, e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrgID, e.DeviceID, e.UserID, e.ReservationID,
		string(e.EventType), string(e.Status), e.Total, e.RefundedAmount,
		e.PenalizeCharge, penalizeString(e.PenalizeReason), e.Passcode, e.CourierPinCode,
		boolToInt(e.FaultFlagged), timePtrString(e.ExpiresAt),
		e.CreatedAt.Format(time.RFC3339), timePtrString(e.StartedAt),
		timePtrString(e.EndedAt), timePtrString(e.CanceledAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrExists
		}
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Update modifies an existing event.
func (r *SQLiteRepository) Update(ctx context.Context, e *Event) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET
			event_status = ?, total = ?, refunded_amount = ?,
			penalize_charge = ?, penalize_reason = ?,
			passcode = ?, courier_pin_code = ?, fault_flagged = ?,
			expires_at = ?, started_at = ?, ended_at = ?, canceled_at = ?
		WHERE id = ?`,
		string(e.Status), e.Total, e.RefundedAmount,
		e.PenalizeCharge, penalizeString(e.PenalizeReason),
		e.Passcode, e.CourierPinCode, boolToInt(e.FaultFlagged),
		timePtrString(e.ExpiresAt), timePtrString(e.StartedAt),
		timePtrString(e.EndedAt), timePtrString(e.CanceledAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetActiveByDevice returns the device's active event, if any.
func (r *SQLiteRepository) GetActiveByDevice(ctx context.Context, deviceID string) (*Event, error) {
	marks, args := activeArgs()
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE device_id = ? AND event_status IN (` + marks + `)
		ORDER BY created_at DESC LIMIT 1`

	e, err := scanEvent(r.db.QueryRowContext(ctx, query, append([]any{deviceID}, args...)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying active event: %w", err)
	}
	return e, nil
}

// ListActiveByDevice returns every active event for a device, newest first.
func (r *SQLiteRepository) ListActiveByDevice(ctx context.Context, deviceID string) ([]Event, error) {
	marks, args := activeArgs()
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE device_id = ? AND event_status IN (` + marks + `)
		ORDER BY created_at DESC`
	return r.queryEvents(ctx, query, append([]any{deviceID}, args...)...)
}

// ListDue returns events whose expiry deadline has elapsed.
func (r *SQLiteRepository) ListDue(ctx context.Context, now time.Time) ([]Event, error) {
	timeBounded := []Status{
		StatusInProgress, StatusAwaitingPayment,
		StatusAwaitingServicePickup, StatusAwaitingServiceDropoff,
		StatusAwaitingUserPickup,
	}
	marks := make([]string, len(timeBounded))
	args := make([]any, 0, len(timeBounded)+1)
	for i, s := range timeBounded {
		marks[i] = "?"
		args = append(args, string(s))
	}
	args = append(args, now.UTC().Format(time.RFC3339))

	query := `SELECT ` + eventColumns + ` FROM events
		WHERE event_status IN (` + strings.Join(marks, ", ") + `)
		AND expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at`
	return r.queryEvents(ctx, query, args...)
}

// ListByReservation returns all events spawned from a reservation.
func (r *SQLiteRepository) ListByReservation(ctx context.Context, reservationID string) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE reservation_id = ?
		ORDER BY created_at DESC`
	return r.queryEvents(ctx, query, reservationID)
}

func (r *SQLiteRepository) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var eventType, status string
	var penalizeReason sql.NullString
	var faultFlagged int
	var createdAt string
	var expiresAt, startedAt, endedAt, canceledAt sql.NullString

	err := row.Scan(
		&e.ID, &e.OrgID, &e.DeviceID, &e.UserID, &e.ReservationID,
		&eventType, &status, &e.Total, &e.RefundedAmount,
		&e.PenalizeCharge, &penalizeReason, &e.Passcode, &e.CourierPinCode,
		&faultFlagged, &expiresAt, &createdAt, &startedAt, &endedAt, &canceledAt,
	)
	if err != nil {
		return nil, err
	}

	e.EventType = EventType(eventType)
	e.Status = Status(status)
	e.FaultFlagged = faultFlagged != 0
	if penalizeReason.Valid {
		reason := PenalizeReason(penalizeReason.String)
		e.PenalizeReason = &reason
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		e.CreatedAt = t
	}
	e.ExpiresAt = parseTimePtr(expiresAt)
	e.StartedAt = parseTimePtr(startedAt)
	e.EndedAt = parseTimePtr(endedAt)
	e.CanceledAt = parseTimePtr(canceledAt)

	return &e, nil
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func timePtrString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func penalizeString(p *PenalizeReason) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
