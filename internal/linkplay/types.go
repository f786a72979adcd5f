package linkplay

import "time"

// PlayState is the canonical transport state reported by a device.
type PlayState string

// PlayState constants.
const (
	PlayStatePlay  PlayState = "play"
	PlayStatePause PlayState = "pause"
	PlayStateStop  PlayState = "stop"
	PlayStateLoad  PlayState = "load"
)

// Source is the canonical playback source label. Raw devices report numeric
// mode codes with firmware-dependent meanings; normalisation maps them to
// one label the core can reason about.
type Source string

// Source constants. SourceMultiroom is the generic label a grouped device
// reports in place of its real source; SourceFollower is the explicit
// "lost master" signal set by the media resolver.
const (
	SourceIdle      Source = "idle"
	SourceAirplay   Source = "airplay"
	SourceDLNA      Source = "dlna"
	SourceNetwork   Source = "network"
	SourceStreaming Source = "streaming"
	SourceUSB       Source = "usb"
	SourceSpotify   Source = "spotify"
	SourceTidal     Source = "tidal"
	SourceQobuz     Source = "qobuz"
	SourceLineIn    Source = "line-in"
	SourceBluetooth Source = "bluetooth"
	SourceOptical   Source = "optical"
	SourceMultiroom Source = "multiroom"
	SourceFollower  Source = "follower"
)

// sourceModeFollower is the raw transport mode a device reports while
// relaying another device's audio. It is the only mode that implies group
// behaviour without explicit membership evidence.
const sourceModeFollower = 99

// PlayerStatus is the canonical per-cycle transport snapshot of one device,
// produced from the raw getPlayerStatus payload by normalisation.
//
// Volume and Muted are strictly device-local and are never mirrored across
// a group.
type PlayerStatus struct {
	State    PlayState     `json:"state"`
	Volume   int           `json:"volume"`
	Muted    bool          `json:"muted"`
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`

	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`

	Source     Source `json:"source"`
	SourceMode int    `json:"source_mode"`
	EQPreset   string `json:"eq_preset,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`

	// InGroup mirrors the group hint carried in the transport payload.
	// Device-info group fields take precedence over it.
	InGroup bool `json:"in_group"`
}

// Playing reports whether the device is actively playing.
func (s *PlayerStatus) Playing() bool {
	return s != nil && s.State == PlayStatePlay
}

// FollowerMode reports whether the device is in the relay transport mode.
func (s *PlayerStatus) FollowerMode() bool {
	return s != nil && s.SourceMode == sourceModeFollower
}

// InMultiroom reports whether any signal places the device in a group:
// the transport group hint, the generic multiroom source, or follower mode.
func (s *PlayerStatus) InMultiroom() bool {
	if s == nil {
		return false
	}
	return s.InGroup || s.Source == SourceMultiroom || s.FollowerMode()
}

// Clone returns an independent copy of the status.
func (s *PlayerStatus) Clone() *PlayerStatus {
	if s == nil {
		return nil
	}
	cpy := *s
	return &cpy
}

// DeviceInfo is the canonical identity record of one device, produced from
// the raw getStatus payload. Its group fields are the authoritative group
// evidence for role detection.
type DeviceInfo struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Model    string `json:"model,omitempty"`
	Firmware string `json:"firmware,omitempty"`
	MAC      string `json:"mac,omitempty"`

	// GroupFlag is non-zero while the device believes it is grouped.
	GroupFlag int `json:"group_flag"`

	// MasterUUID and MasterIP identify the master this device follows, when
	// the firmware reports them. Either may be empty.
	MasterUUID string `json:"master_uuid,omitempty"`
	MasterIP   string `json:"master_ip,omitempty"`
}

// Clone returns an independent copy of the device info.
func (d *DeviceInfo) Clone() *DeviceInfo {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}

// ExtendedStatus carries the optional diagnostics only newer firmware
// exposes. Absence is learned once per process via the capability probe.
type ExtendedStatus struct {
	RSSI          int    `json:"rssi"`
	Internet      bool   `json:"internet"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	WMRMVersion   string `json:"wmrm_version,omitempty"`
}

// Clone returns an independent copy of the extended status.
func (e *ExtendedStatus) Clone() *ExtendedStatus {
	if e == nil {
		return nil
	}
	cpy := *e
	return &cpy
}

// SlaveEntry is one follower reported by a master's multiroom listing.
type SlaveEntry struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// MultiroomInfo is the slave listing reported by a device believed to be a
// master. Present only when the probe for this information succeeds.
type MultiroomInfo struct {
	SlaveCount int          `json:"slave_count"`
	Slaves     []SlaveEntry `json:"slaves,omitempty"`
}

// SlaveAddresses returns the usable follower addresses from the listing.
// Entries without an address are dropped, not fatal.
func (m *MultiroomInfo) SlaveAddresses() []string {
	if m == nil {
		return nil
	}
	addrs := make([]string, 0, len(m.Slaves))
	for _, s := range m.Slaves {
		if s.Address != "" {
			addrs = append(addrs, s.Address)
		}
	}
	return addrs
}

// Clone returns an independent copy of the multiroom info.
func (m *MultiroomInfo) Clone() *MultiroomInfo {
	if m == nil {
		return nil
	}
	cpy := *m
	if m.Slaves != nil {
		cpy.Slaves = make([]SlaveEntry, len(m.Slaves))
		copy(cpy.Slaves, m.Slaves)
	}
	return &cpy
}

// TrackMetadata is the canonical now-playing metadata from the optional
// getMetaInfo endpoint. Extra holds auxiliary fields the firmware reports
// beyond the typed ones; the media resolver strips volume/mute-named keys
// from it before mirroring.
type TrackMetadata struct {
	Title       string            `json:"title,omitempty"`
	Artist      string            `json:"artist,omitempty"`
	Album       string            `json:"album,omitempty"`
	AlbumArtURI string            `json:"album_art_uri,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Clone returns an independent copy of the metadata.
func (t *TrackMetadata) Clone() *TrackMetadata {
	if t == nil {
		return nil
	}
	cpy := *t
	if t.Extra != nil {
		cpy.Extra = make(map[string]string, len(t.Extra))
		for k, v := range t.Extra {
			cpy.Extra[k] = v
		}
	}
	return &cpy
}

// EQInfo is the equaliser state from the optional EQ endpoint.
type EQInfo struct {
	Enabled bool   `json:"enabled"`
	Preset  string `json:"preset,omitempty"`
}

// Clone returns an independent copy of the EQ info.
func (e *EQInfo) Clone() *EQInfo {
	if e == nil {
		return nil
	}
	cpy := *e
	return &cpy
}

// PresetSlot is one hardware preset from the optional preset listing.
type PresetSlot struct {
	Number int    `json:"number"`
	Name   string `json:"name,omitempty"`
	URL    string `json:"url,omitempty"`
	Source string `json:"source,omitempty"`
}
