// Package session owns the transport layer of the remcon controller.
//
// A Session wraps one connection to one agent: it serializes outbound frame
// writes under a bounded deadline, runs the inbound read loop that decodes
// frames and hands them to the dispatch sink, and tracks the
// Connecting -> Connected -> Disconnected state machine. State transitions
// are announced exactly once to every subscriber.
//
// The Registry is the single source of truth for live sessions. Removing a
// session synchronously tears down its handler registrations through the
// router before the removal completes, so no handler is ever invoked with a
// stale session.
package session
