// Package fleet holds the cross-device state of the service: the Registry
// tracking every device's group role and latest snapshot, and the
// Repository persisting the device directory.
//
// The Registry is the single source of truth for group topology. Role
// transitions and device departures are applied under one mutex so the
// cascades they trigger (a departing slave pruning its master's list, a
// departing master releasing its slaves) are atomic with respect to
// readers. Snapshots are deep-copied on the way in and out; no caller
// ever shares mutable state with the registry.
package fleet
