// Package robot interprets the state a robot reports and builds the
// payloads sent back to it.
//
// Everything here is a pure function of a shadow.Snapshot: classification
// into a normalized Status, product family validation, capability checks,
// option deltas, command payloads, and the host-facing derived status. The
// session package owns timing and I/O.
//
// Product families share the common fields and differ in sub-status. A
// Model is chosen once per robot from its Family; families with a dust bin
// implement BinStatusProvider, families with a water tank implement
// TankStatusProvider, and the combo family implements both.
package robot
