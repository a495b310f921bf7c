package device

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100

	// maxPayloadKeys bounds the vendor payload map to prevent memory
	// exhaustion from unbounded JSON.
	maxPayloadKeys = 32

	// maxPayloadStringLen bounds string values inside the vendor payload.
	maxPayloadStringLen = 256
)

// userCodePattern matches the 4-digit PIN codes ojmar locks accept.
var userCodeRegex = regexp.MustCompile(`^[0-9]{4}$`)

// Pre-computed validation sets for O(1) lookups.
var (
	validHardwareTypes map[HardwareType]struct{}
	validModes         map[Mode]struct{}
	validStatuses      map[Status]struct{}
	validLockStatuses  map[LockStatus]struct{}
)

func init() {
	validHardwareTypes = make(map[HardwareType]struct{}, len(AllHardwareTypes()))
	for _, h := range AllHardwareTypes() {
		validHardwareTypes[h] = struct{}{}
	}

	validModes = make(map[Mode]struct{}, len(AllModes()))
	for _, m := range AllModes() {
		validModes[m] = struct{}{}
	}

	validStatuses = make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		validStatuses[s] = struct{}{}
	}

	validLockStatuses = make(map[LockStatus]struct{}, len(AllLockStatuses()))
	for _, s := range AllLockStatuses() {
		validLockStatuses[s] = struct{}{}
	}
}

// GenerateID returns a new unique device identifier.
func GenerateID() string {
	return uuid.NewString()
}

// ValidateDevice performs comprehensive validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if d.Name == "" || len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: %q", ErrInvalidName, d.Name)
	}

	if d.OrgID == "" {
		return fmt.Errorf("%w: missing org id", ErrInvalidDevice)
	}

	if err := ValidateHardwareType(d.HardwareType); err != nil {
		return err
	}
	if err := ValidateMode(d.Mode); err != nil {
		return err
	}
	if err := ValidateStatus(d.Status); err != nil {
		return err
	}
	if err := ValidateLockStatus(d.LockStatus); err != nil {
		return err
	}
	if err := validatePayload(d.HardwareType, d.VendorPayload); err != nil {
		return err
	}

	return nil
}

// ValidateHardwareType checks that a hardware type is recognised.
func ValidateHardwareType(h HardwareType) error {
	if _, ok := validHardwareTypes[h]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidHardwareType, h)
	}
	return nil
}

// ValidateMode checks that a mode is recognised.
func ValidateMode(m Mode) error {
	if _, ok := validModes[m]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	return nil
}

// ValidateStatus checks that a status is recognised.
func ValidateStatus(s Status) error {
	if _, ok := validStatuses[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return nil
}

// ValidateLockStatus checks that a lock status is recognised.
func ValidateLockStatus(s LockStatus) error {
	if _, ok := validLockStatuses[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLockStatus, s)
	}
	return nil
}

// validatePayload applies size limits and the few vendor-specific shape
// checks the core can make without interpreting the payload. Full
// interpretation belongs to the matching hardware adapter.
func validatePayload(h HardwareType, p VendorPayload) error {
	if p == nil {
		return nil
	}

	if len(p) > maxPayloadKeys {
		return fmt.Errorf("%w: too many keys (%d)", ErrInvalidPayload, len(p))
	}
	for k, v := range p {
		if len(k) > maxPayloadStringLen {
			return fmt.Errorf("%w: key too long", ErrInvalidPayload)
		}
		if s, ok := v.(string); ok && len(s) > maxPayloadStringLen {
			return fmt.Errorf("%w: value for %q too long", ErrInvalidPayload, k)
		}
	}

	if h == HardwareOjmar {
		if code, ok := p["user_code"].(string); ok && code != "" && !userCodeRegex.MatchString(code) {
			return fmt.Errorf("%w: ojmar user_code must be 4 digits", ErrInvalidPayload)
		}
	}

	return nil
}
