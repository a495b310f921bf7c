// Package schedule implements the scheduling engine for Fleet Core.
//
// The engine answers one question: does a requested time window (one-off or
// recurring) conflict with the existing reservations on a device, given the
// organisation's buffer settings?
//
// # Model
//
//   - Window: either a single absolute interval, or a recurring pattern
//     (weekday set + daily wall-clock interval + validity date range).
//   - Occurrence: one concrete absolute interval produced by expanding a
//     window. Daily intervals that wrap past midnight are split into two
//     sub-intervals at the day boundary.
//   - Buffer: mandatory idle gap enforced between occurrences on the same
//     device. The gap is the sum of the transaction buffer (applied after an
//     event ends) and the locker buffer (around physical access).
//
// Two half-open intervals [a,b) and [c,d) conflict iff a < d+gap and c < b+gap.
//
// # Determinism
//
// Conflict checking is a pure function of the candidate window, the existing
// reservation set, and the settings. There is no hidden state: expanding the
// same window over the same range always yields the same occurrence set.
package schedule
