package location

import (
	"fmt"
	"time"
)

// ValidateLocation checks a location's fields before persistence.
func ValidateLocation(loc *Location) error {
	if loc == nil {
		return fmt.Errorf("%w: nil location", ErrInvalidLocation)
	}
	if loc.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLocation)
	}
	if loc.OrgID == "" {
		return fmt.Errorf("%w: org_id is required", ErrInvalidLocation)
	}
	if loc.Timezone != "" {
		if _, err := time.LoadLocation(loc.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidLocation, loc.Timezone)
		}
	}
	return nil
}
