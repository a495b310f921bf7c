// Package event drives a transaction through its lifecycle, from
// creation to a terminal outcome, coordinating device status and the
// physical lock along the way.
//
// # State Machine
//
// Transitions are encoded in one explicit table (transitions.go); a
// trigger not present for the current status fails with
// InvalidTransitionError and leaves the record untouched. The flow:
//
//	reserved → in_progress → { awaiting_payment_confirmation,
//	                           awaiting_service_pickup,
//	                           awaiting_service_dropoff,
//	                           awaiting_user_pickup,
//	                           transaction_in_progress } → finished
//
// with alternative exits canceled (from reserved or in_progress),
// refunded (from finished or awaiting payment, amounts capped at the
// total), and expired (time-driven, once the stored deadline elapses).
//
// # Atomicity
//
// Every transition runs inside the device's guard. The event row is
// persisted first; the device status side effect follows through the
// registry's SetStatus. A crash between the two cannot strand a device:
// the Reconciler re-derives device status from the latest active event
// on startup and the Sweeper keeps expiring overdue events on a ticker.
//
// # Hardware Faults
//
// Lock commands go through the hardware Commander, which retries with
// backoff. When retries are exhausted, the transition stands and the
// event is fault-flagged for operator attention; lifecycle progress is
// never ambiguous because of a dead lock battery.
package event
