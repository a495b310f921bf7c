package tracking

import "time"

// State is a product custody/condition state.
type State string

// State constants. Any state is reachable from any other; custody in the
// field does not follow a clean pipeline.
const (
	StateNew         State = "new"
	StateIncoming    State = "incoming"
	StateOutgoing    State = "outgoing"
	StateMaintenance State = "maintenance"
)

// AllStates returns all valid product states.
func AllStates() []State {
	return []State{StateNew, StateIncoming, StateOutgoing, StateMaintenance}
}

// Record is one point-in-time custody/condition observation for a
// product. Records are append-only: a new state is a new row, history is
// never rewritten.
type Record struct {
	ID          string  `json:"id"`
	OrgID       string  `json:"org_id"`
	State       State   `json:"state"`
	ProductID   string  `json:"product_id"`
	DeviceID    *string `json:"device_id,omitempty"`
	UserID      *string `json:"user_id,omitempty"`
	ConditionID *string `json:"condition_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Condition is an organisation-defined label attached to custody records
// ("scratched", "missing strap"). The two flags drive side effects when
// the condition is recorded.
type Condition struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`

	// AutoReport surfaces the record to operators when set.
	AutoReport bool `json:"auto_report"`

	// AutoMaintenance pulls the record's device out of circulation.
	AutoMaintenance bool `json:"auto_maintenance"`

	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which tracking records to return.
type Filter struct {
	ProductID string // optional: filter by product
	DeviceID  string // optional: filter by device
	State     State  // optional: filter by state
	Limit     int    // default 50, max 200
	Offset    int    // pagination offset
}

// ListResult contains the paginated tracking records.
type ListResult struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}
