// Package reservation manages claims on future device availability.
//
// A reservation is not a transaction. It reserves calendar time on a
// device, either as one absolute interval or as a weekly recurring
// pattern, and only becomes a transaction when one of its occurrences is
// activated. Activation hands off to the event package; from that point
// the event state machine owns the lifecycle and the reservation only
// records, for one-off bookings, that it has been consumed.
//
// # Conflict checking
//
// Creation runs the scheduling engine's conflict check against the
// device's live reservations while holding the device's guard. The
// guard is the same mutex the event machine locks, so a conflict check
// and the insert it authorises are atomic with respect to every other
// writer touching that device. A reservation with no device named walks
// the registry's deterministic selection order and lands on the first
// device whose calendar accepts the window.
//
// # Settings
//
// Duration caps, buffer gaps, and the expired-rental policy come from
// per-organisation settings served through an expiring cache
// (SettingsProvider). The provider doubles as the event machine's
// policy source so both packages read identical values.
package reservation
