// Package location models the physical sites devices are installed at.
//
// Locations scope availability searches: a user asks for a rental
// locker at a concourse, not anywhere in the fleet. Hidden locations
// keep serving their existing reservations but stop appearing in
// searches, which is how sites are drained before decommissioning.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines
// (SQLite WAL mode + connection pooling).
package location
