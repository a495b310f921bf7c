package location

import "time"

// Location represents a physical site holding devices: a lobby bank of
// lockers, a station concourse, a poolside rental stand.
type Location struct {
	ID      string `json:"id"`
	OrgID   string `json:"org_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`

	// Timezone is the IANA zone name used when presenting reservation
	// windows at this location. Scheduling itself runs in UTC.
	Timezone string `json:"timezone"`

	// Hidden locations stay operational but drop out of user-facing
	// availability searches.
	Hidden bool `json:"hidden"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Zone returns the location's time.Location, falling back to UTC when
// the stored zone name cannot be resolved.
func (l *Location) Zone() *time.Location {
	if l.Timezone == "" {
		return time.UTC
	}
	zone, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return zone
}
