// Package linkplay implements the HTTP client boundary for LinkPlay-class
// network audio devices.
//
// Firmware on these devices exposes a single GET endpoint
// (/httpapi.asp?command=...) returning loosely-typed JSON: numbers as
// strings, hex-encoded text fields, and field names that drift between
// firmware generations. This package absorbs all of that at the boundary.
// Everything above it works with canonical typed records (PlayerStatus,
// DeviceInfo, MultiroomInfo, TrackMetadata) and classified errors.
//
// Errors wrap one of three sentinels: ErrUnsupported for endpoints the
// firmware permanently lacks, ErrTransient for network-level failures a
// retry may clear, and ErrMalformed for responses that arrived but could
// not be decoded.
//
// Control operations are split into narrow interfaces (PlaybackControl,
// GroupControl, EqualizerControl, PresetControl) so consumers declare only
// the capability they exercise; *HTTPClient satisfies all of them.
package linkplay
