package device

import "time"

// Device represents a physical storage/rental unit controlled by one
// hardware vendor's protocol: a locker door, a tower slot, a vending slot.
type Device struct {
	// Identity
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`

	// CustomIdentifier is an optional operator-assigned label.
	CustomIdentifier *string `json:"custom_identifier,omitempty"`

	// LockerNumber orders devices within a location and is the primary
	// tie-break for deterministic selection.
	LockerNumber int `json:"locker_number"`

	// Classification
	HardwareType HardwareType `json:"hardware_type"`
	Mode         Mode         `json:"mode"`

	// Status is the scheduling/business state. It is mutated only through
	// Registry.SetStatus.
	Status Status `json:"status"`

	// LockStatus is the last physical observation reported by the vendor
	// adapter. It is independent of Status and never authoritative for
	// scheduling: a device can be available while its lock is offline.
	LockStatus LockStatus `json:"lock_status"`

	// TransactionCount is the number of finished events on this device.
	TransactionCount int `json:"transaction_count"`

	// VendorPayload holds vendor-specific addressing as an opaque JSON map.
	// Only the adapter for the matching HardwareType interprets it.
	//
	// Examples:
	//
	//	linka:  {"mac_address": "AA:BB:CC:DD:EE:FF"}
	//	ojmar:  {"locker_udn": "udn-123", "user_code": "0042", "master_code": "9999"}
	//	gantner: {"gantner_id": "01101689-2248070013-02"}
	//	harbor: {"tower_id": "t-1", "locker_id": "l-42"}
	//	dclock: {"terminal_no": "DC21071701247878", "box_no": "7"}
	//	kerong: {"ip": "192.168.1.50", "circuit_unit": "1", "board_unit": "2", "hook_port": 5000}
	VendorPayload VendorPayload `json:"vendor_payload,omitempty"`

	// References (resolved on demand by the persistence layer).
	LocationID *string `json:"location_id,omitempty"`
	SizeID     *string `json:"size_id,omitempty"`
	PriceID    *string `json:"price_id,omitempty"`
	ProductID  *string `json:"product_id,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// The vendor payload map is cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields
	cpy.VendorPayload = copyPayload(d.VendorPayload)

	// Pointer fields (*string) don't need deep copy because strings are
	// immutable in Go.
	return &cpy
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// copyPayload clones a vendor payload map, including nested maps and slices.
func copyPayload(p VendorPayload) VendorPayload {
	if p == nil {
		return nil
	}
	cpy := make(VendorPayload, len(p))
	for k, v := range p {
		cpy[k] = copyPayloadValue(v)
	}
	return cpy
}

func copyPayloadValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return map[string]any(copyPayload(val))
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = copyPayloadValue(elem)
		}
		return cpy
	default:
		return v
	}
}

// VendorPayload holds vendor-specific device addressing as a JSON map.
type VendorPayload map[string]any

// OjmarCredentials is the typed view of an ojmar payload.
type OjmarCredentials struct {
	LockerUDN  string
	UserCode   string
	MasterCode string
}

// OjmarView extracts ojmar addressing from a payload.
// Returns false if the payload lacks a locker UDN.
func OjmarView(p VendorPayload) (OjmarCredentials, bool) {
	udn, ok := p["locker_udn"].(string)
	if !ok || udn == "" {
		return OjmarCredentials{}, false
	}
	creds := OjmarCredentials{LockerUDN: udn}
	if v, ok := p["user_code"].(string); ok {
		creds.UserCode = v
	}
	if v, ok := p["master_code"].(string); ok {
		creds.MasterCode = v
	}
	return creds, true
}

// MACAddress extracts the BLE MAC address from a linka or kerong payload.
func MACAddress(p VendorPayload) (string, bool) {
	mac, ok := p["mac_address"].(string)
	return mac, ok && mac != ""
}

// HardwareType identifies the vendor protocol controlling a device.
type HardwareType string

// HardwareType constants.
const (
	HardwareLinka   HardwareType = "linka"
	HardwareSpintly HardwareType = "spintly"
	HardwareOjmar   HardwareType = "ojmar"
	HardwareGantner HardwareType = "gantner"
	HardwareHarbor  HardwareType = "harbor"
	HardwareDCLock  HardwareType = "dclock"
	HardwareKerong  HardwareType = "kerong"

	// HardwareVirtual is an in-process adapter used for testing.
	HardwareVirtual HardwareType = "virtual"
)

// AllHardwareTypes returns all valid hardware type values.
func AllHardwareTypes() []HardwareType {
	return []HardwareType{
		HardwareLinka, HardwareSpintly, HardwareOjmar, HardwareGantner,
		HardwareHarbor, HardwareDCLock, HardwareKerong, HardwareVirtual,
	}
}

// Mode is the business mode a device operates in.
type Mode string

// Mode constants.
const (
	ModeService  Mode = "service"
	ModeStorage  Mode = "storage"
	ModeRental   Mode = "rental"
	ModeDelivery Mode = "delivery"
	ModeVending  Mode = "vending"
)

// AllModes returns all valid mode values.
func AllModes() []Mode {
	return []Mode{ModeService, ModeStorage, ModeRental, ModeDelivery, ModeVending}
}

// Status is the scheduling/business state of a device.
type Status string

// Status constants.
const (
	StatusAvailable   Status = "available"
	StatusReserved    Status = "reserved"
	StatusMaintenance Status = "maintenance"
	StatusExpired     Status = "expired"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{StatusAvailable, StatusReserved, StatusMaintenance, StatusExpired}
}

// LockStatus is the physical lock state as observed by the adapter.
type LockStatus string

// LockStatus constants.
const (
	LockOpen    LockStatus = "open"
	LockLocked  LockStatus = "locked"
	LockUnknown LockStatus = "unknown"
	LockOffline LockStatus = "offline"
	LockClosed  LockStatus = "closed"
)

// AllLockStatuses returns all valid lock status values.
func AllLockStatuses() []LockStatus {
	return []LockStatus{LockOpen, LockLocked, LockUnknown, LockOffline, LockClosed}
}
