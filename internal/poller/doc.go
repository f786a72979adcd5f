// Package poller runs the adaptive poll loop for every device in the
// fleet.
//
// Each device gets one Coordinator goroutine. A cycle fetches the
// mandatory transport status (and, when its TTL lapses, the identity
// record), degrades the slave listing to a cached copy on failure,
// detects the group role, resolves grouped media against the registry,
// and publishes one snapshot. A failed mandatory call publishes nothing:
// the registry keeps the last good snapshot and records the failure.
//
// Scheduling is adaptive: a fast interval while the device plays, after
// a role change, or just after a user command; a normal interval when
// idle; and a widening backoff staircase (10s, 30s, 60s) while a device
// keeps failing, bounded so recovery is noticed within a minute.
//
// Optional endpoints (track metadata, equaliser, presets, extended
// status, slave listing) are discovered lazily through the capability
// Probe and never retried once the firmware refuses them.
package poller
