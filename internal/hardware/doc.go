// Package hardware is the boundary between the scheduling core and the
// physical locks.
//
// The core never speaks a vendor protocol. It issues unlock, lock, and
// poll commands through the Commander, which resolves the device's
// hardware type to a registered Adapter and applies the retry policy
// (bounded attempts, doubling backoff, per-attempt timeout). When every
// attempt fails, the Commander reports ErrCommandFailed; the event layer
// records the failed transition rather than blocking the lifecycle.
//
// Two adapters ship in-tree: VirtualAdapter, a software lock for
// development and tests, and BridgeAdapter, which drives a vendor's
// MQTT hardware bridge with a command/ack round trip. Real vendor
// integrations (ojmar, kerong, linka, ...) run as external bridge
// processes speaking the BridgeAdapter wire format.
package hardware
