// Package tracking records product custody and condition history.
//
// Every record is an append: the tracker never rewrites a product's
// past, it only adds the latest observation. Conditions attached to a
// record can pull the device out of circulation (auto_maintenance) or
// flag the record for operator review (auto_report); both are side
// effects of recording, never of reading.
package tracking

import (
	"context"
	"fmt"

	"github.com/lockhaven/fleet-core/internal/clock"
	"github.com/lockhaven/fleet-core/internal/device"
)

// Logger defines the logging interface used by the Tracker.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceStatusSetter is the slice of the device registry the tracker
// needs for auto-maintenance conditions.
type DeviceStatusSetter interface {
	SetStatus(ctx context.Context, id string, status device.Status) error
}

var validStates map[State]struct{}

func init() {
	validStates = make(map[State]struct{})
	for _, s := range AllStates() {
		validStates[s] = struct{}{}
	}
}

// ValidateState checks that a product state is one of the known values.
func ValidateState(s State) error {
	if _, ok := validStates[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return nil
}

// Tracker appends custody records and applies condition side effects.
type Tracker struct {
	repo    Repository
	devices DeviceStatusSetter
	clock   clock.Clock
	logger  Logger
}

// NewTracker creates a product tracker.
func NewTracker(repo Repository, devices DeviceStatusSetter, clk clock.Clock) *Tracker {
	return &Tracker{
		repo:    repo,
		devices: devices,
		clock:   clk,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Record appends a custody record for the product.
//
// No transition table applies; any state is reachable from any other.
// When the record names a condition with auto_maintenance and a device,
// the device is parked in maintenance. A failed device status write
// does not undo the record; custody history stays truthful and the
// failure is logged for operator follow-up.
func (t *Tracker) Record(ctx context.Context, rec *Record) (*Record, error) {
	if rec == nil || rec.ProductID == "" || rec.OrgID == "" {
		return nil, fmt.Errorf("%w: missing product or org", ErrInvalidRecord)
	}
	if err := ValidateState(rec.State); err != nil {
		return nil, err
	}
	rec.CreatedAt = t.clock.Now().UTC()

	var cond *Condition
	if rec.ConditionID != nil {
		var err error
		cond, err = t.repo.GetCondition(ctx, *rec.ConditionID)
		if err != nil {
			return nil, fmt.Errorf("resolving condition %s: %w", *rec.ConditionID, err)
		}
	}

	if err := t.repo.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}

	t.logger.Info("product state recorded",
		"record_id", rec.ID, "product_id", rec.ProductID, "state", rec.State)

	if cond != nil {
		t.applyCondition(ctx, rec, cond)
	}
	return rec, nil
}

// History returns a product's custody records, most recent first.
func (t *Tracker) History(ctx context.Context, orgID, productID string, limit, offset int) (*ListResult, error) {
	return t.repo.ListRecords(ctx, orgID, Filter{
		ProductID: productID,
		Limit:     limit,
		Offset:    offset,
	})
}

// Latest returns a product's most recent custody record.
func (t *Tracker) Latest(ctx context.Context, orgID, productID string) (*Record, error) {
	return t.repo.LatestByProduct(ctx, orgID, productID)
}

func (t *Tracker) applyCondition(ctx context.Context, rec *Record, cond *Condition) {
	if cond.AutoReport {
		t.logger.Warn("condition flagged for review",
			"record_id", rec.ID, "product_id", rec.ProductID,
			"condition", cond.Name)
	}

	if cond.AutoMaintenance && rec.DeviceID != nil {
		if err := t.devices.SetStatus(ctx, *rec.DeviceID, device.StatusMaintenance); err != nil {
			t.logger.Error("auto-maintenance status update failed",
				"device_id", *rec.DeviceID, "condition", cond.Name, "error", err)
			return
		}
		t.logger.Info("device parked for maintenance",
			"device_id", *rec.DeviceID, "condition", cond.Name)
	}
}
