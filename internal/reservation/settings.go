package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/lockhaven/fleet-core/internal/schedule"
)

// SettingsRepository defines persistence for per-organisation scheduling
// settings.
type SettingsRepository interface {
	// GetByOrg retrieves an organisation's settings. Returns ErrNoSettings
	// if none are configured.
	GetByOrg(ctx context.Context, orgID string) (*schedule.Settings, error)

	// Upsert creates or replaces an organisation's settings.
	Upsert(ctx context.Context, orgID string, s schedule.Settings) error
}

// SQLiteSettingsRepository implements SettingsRepository using SQLite.
type SQLiteSettingsRepository struct {
	db *sql.DB
}

// NewSQLiteSettingsRepository creates a new SQLite-backed settings repository.
func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

// GetByOrg retrieves an organisation's settings.
func (r *SQLiteSettingsRepository) GetByOrg(ctx context.Context, orgID string) (*schedule.Settings, error) {
	var s schedule.Settings
	var rentalUnit, reservationUnit, txUnit, lockerUnit string
	var expireToMaintenance int

	err := r.db.QueryRowContext(ctx, `
		SELECT max_rental_time, max_rental_time_unit,
			max_reservation_time, max_reservation_time_unit,
			transaction_buffer_time, transaction_buffer_time_unit,
			locker_buffer_time, locker_buffer_time_unit,
			expire_to_maintenance
		FROM reservation_settings WHERE org_id = ?`, orgID).Scan(
		&s.MaxRentalTime, &rentalUnit,
		&s.MaxReservationTime, &reservationUnit,
		&s.TransactionBufferTime, &txUnit,
		&s.LockerBufferTime, &lockerUnit,
		&expireToMaintenance,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSettings
		}
		return nil, fmt.Errorf("querying reservation settings: %w", err)
	}

	s.MaxRentalTimeUnit = schedule.TimeUnit(rentalUnit)
	s.MaxReservationTimeUnit = schedule.TimeUnit(reservationUnit)
	s.TransactionBufferTimeUnit = schedule.TimeUnit(txUnit)
	s.LockerBufferTimeUnit = schedule.TimeUnit(lockerUnit)
	s.ExpireToMaintenance = expireToMaintenance != 0

	return &s, nil
}

// Upsert creates or replaces an organisation's settings.
func (r *SQLiteSettingsRepository) Upsert(ctx context.Context, orgID string, s schedule.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reservation_settings (
			id, org_id,
			max_rental_time, max_rental_time_unit,
			max_reservation_time, max_reservation_time_unit,
			transaction_buffer_time, transaction_buffer_time_unit,
			locker_buffer_time, locker_buffer_time_unit,
			expire_to_maintenance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id) DO UPDATE SET
			max_rental_time = excluded.max_rental_time,
			max_rental_time_unit = excluded.max_rental_time_unit,
			max_reservation_time = excluded.max_reservation_time,
			max_reservation_time_unit = excluded.max_reservation_time_unit,
			transaction_buffer_time = excluded.transaction_buffer_time,
			transaction_buffer_time_unit = excluded.transaction_buffer_time_unit,
			locker_buffer_time = excluded.locker_buffer_time,
			locker_buffer_time_unit = excluded.locker_buffer_time_unit,
			expire_to_maintenance = excluded.expire_to_maintenance`,
		newSettingsID(orgID), orgID,
		s.MaxRentalTime, string(s.MaxRentalTimeUnit),
		s.MaxReservationTime, string(s.MaxReservationTimeUnit),
		s.TransactionBufferTime, string(s.TransactionBufferTimeUnit),
		s.LockerBufferTime, string(s.LockerBufferTimeUnit),
		boolToInt(s.ExpireToMaintenance),
	)
	if err != nil {
		return fmt.Errorf("upserting reservation settings: %w", err)
	}
	return nil
}

func newSettingsID(orgID string) string {
	return "settings-" + orgID
}

// SettingsProvider serves per-organisation scheduling settings from an
// expiring cache in front of a SettingsRepository. It satisfies the
// event package's Policy interface so expiry decisions and deadline
// stamps read the same cached values the scheduler uses.
type SettingsProvider struct {
	repo  SettingsRepository
	cache *gocache.Cache
}

// NewSettingsProvider creates a provider caching settings for ttl.
func NewSettingsProvider(repo SettingsRepository, ttl time.Duration) *SettingsProvider {
	return &SettingsProvider{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Get returns the organisation's settings, loading through the cache.
func (p *SettingsProvider) Get(ctx context.Context, orgID string) (schedule.Settings, error) {
	if cached, ok := p.cache.Get(orgID); ok {
		return cached.(schedule.Settings), nil
	}

	s, err := p.repo.GetByOrg(ctx, orgID)
	if err != nil {
		return schedule.Settings{}, err
	}

	p.cache.SetDefault(orgID, *s)
	return *s, nil
}

// Invalidate drops the organisation's cached settings. Call after a
// settings update so the next read reflects the new values.
func (p *SettingsProvider) Invalidate(orgID string) {
	p.cache.Delete(orgID)
}

// Update persists new settings and invalidates the cache entry.
func (p *SettingsProvider) Update(ctx context.Context, orgID string, s schedule.Settings) error {
	if err := p.repo.Upsert(ctx, orgID, s); err != nil {
		return err
	}
	p.Invalidate(orgID)
	return nil
}

// ActiveDeadline returns the maximum active rental duration for the
// organisation.
func (p *SettingsProvider) ActiveDeadline(ctx context.Context, orgID string) (time.Duration, error) {
	s, err := p.Get(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return s.MaxRental(), nil
}

// ExpireToMaintenance reports whether expired rentals should park the
// device in maintenance instead of releasing it.
func (p *SettingsProvider) ExpireToMaintenance(ctx context.Context, orgID string) (bool, error) {
	s, err := p.Get(ctx, orgID)
	if err != nil {
		return false, err
	}
	return s.ExpireToMaintenance, nil
}
