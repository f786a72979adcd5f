// Package influxdb provides optional playback-history recording for
// SonicLink Core.
//
// Every published snapshot can be mirrored into InfluxDB as a "playback"
// measurement (play state, position, source, role) plus a "poll_health"
// measurement (interval, consecutive failures). This gives operators a
// time-series view of what each device played and how reliably it answered
// polling, without the core owning any persistent state.
//
// The integration is disabled by default; Connect returns ErrDisabled when
// influxdb.enabled is false and callers run without history.
//
// Writes are batched and asynchronous; a write failure is reported via the
// error callback and never blocks a polling loop.
package influxdb
