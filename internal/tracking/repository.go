package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for tracking records and conditions.
// Records support insert and read only; there is no update or delete.
type Repository interface {
	CreateRecord(ctx context.Context, rec *Record) error
	ListRecords(ctx context.Context, orgID string, filter Filter) (*ListResult, error)
	LatestByProduct(ctx context.Context, orgID, productID string) (*Record, error)

	CreateCondition(ctx context.Context, c *Condition) error
	GetCondition(ctx context.Context, id string) (*Condition, error)
	ListConditions(ctx context.Context, orgID string) ([]Condition, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new tracking repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateRecord appends a tracking record. The ID and CreatedAt are
// generated if empty.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = "trk-" + uuid.NewString()[:8]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO product_tracking (id, org_id, state, product_id, device_id, user_id, condition_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OrgID, string(rec.State), rec.ProductID,
		rec.DeviceID, rec.UserID, rec.ConditionID,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting tracking record: %w", err)
	}
	return nil
}

// ListRecords returns records matching the filter, most recent first.
func (r *SQLiteRepository) ListRecords(ctx context.Context, orgID string, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for tracking queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	conditions := []string{"org_id = ?"}
	args := []any{orgID}

	if filter.ProductID != "" {
		conditions = append(conditions, "product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, string(filter.State))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM product_tracking %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting tracking records: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, org_id, state, product_id, device_id, user_id, condition_id, created_at FROM product_tracking %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tracking records: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tracking record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracking records: %w", err)
	}

	if records == nil {
		records = []Record{}
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// LatestByProduct returns the product's most recent custody record.
func (r *SQLiteRepository) LatestByProduct(ctx context.Context, orgID, productID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, state, product_id, device_id, user_id, condition_id, created_at
		 FROM product_tracking WHERE org_id = ? AND product_id = ?
		 ORDER BY created_at DESC LIMIT 1`, orgID, productID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying latest tracking record: %w", err)
	}
	return rec, nil
}

// CreateCondition inserts a condition definition.
func (r *SQLiteRepository) CreateCondition(ctx context.Context, c *Condition) error {
	if c.ID == "" {
		c.ID = "cond-" + uuid.NewString()[:8]
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conditions (id, org_id, name, auto_report, auto_maintenance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrgID, c.Name, boolToInt(c.AutoReport), boolToInt(c.AutoMaintenance),
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting condition: %w", err)
	}
	return nil
}

// GetCondition retrieves a condition by ID.
func (r *SQLiteRepository) GetCondition(ctx context.Context, id string) (*Condition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, name, auto_report, auto_maintenance, created_at
		 FROM conditions WHERE id = ?`, id)

	c, err := scanCondition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying condition: %w", err)
	}
	return c, nil
}

// ListConditions returns an organisation's conditions.
func (r *SQLiteRepository) ListConditions(ctx context.Context, orgID string) ([]Condition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, name, auto_report, auto_maintenance, created_at
		 FROM conditions WHERE org_id = ? ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying conditions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var conditions []Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning condition: %w", err)
		}
		conditions = append(conditions, *c)
	}
	return conditions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var state, createdAt string
	var deviceID, userID, conditionID sql.NullString

	err := row.Scan(&rec.ID, &rec.OrgID, &state, &rec.ProductID,
		&deviceID, &userID, &conditionID, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.State = State(state)
	if deviceID.Valid {
		rec.DeviceID = &deviceID.String
	}
	if userID.Valid {
		rec.UserID = &userID.String
	}
	if conditionID.Valid {
		rec.ConditionID = &conditionID.String
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func scanCondition(row rowScanner) (*Condition, error) {
	var c Condition
	var autoReport, autoMaintenance int
	var createdAt string

	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &autoReport, &autoMaintenance, &createdAt)
	if err != nil {
		return nil, err
	}

	c.AutoReport = autoReport != 0
	c.AutoMaintenance = autoMaintenance != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		c.CreatedAt = t
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
