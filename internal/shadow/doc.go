// Package shadow holds the accumulated state document reported by a robot.
//
// A robot publishes partial state reports. Each report is merged into the
// document by replacing whole top-level keys. Nested objects are replaced
// wholesale and never deep-merged.
//
// A Document is owned by one session and is not safe for concurrent use.
// Snapshots are immutable copies that can be handed to other goroutines.
package shadow
