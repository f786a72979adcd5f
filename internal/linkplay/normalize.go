package linkplay

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Raw wire shapes. LinkPlay-class firmware serialises nearly everything as
// strings, hex-encodes free text, and renames fields between generations.
// These structs absorb that and nothing outside this file touches them.

type rawPlayerStatus struct {
	Type   string `json:"type"`
	Mode   string `json:"mode"`
	Status string `json:"status"`
	Curpos string `json:"curpos"`
	Totlen string `json:"totlen"`
	Title  string `json:"Title"`
	Artist string `json:"Artist"`
	Album  string `json:"Album"`
	Vol    string `json:"vol"`
	Mute   string `json:"mute"`
	EQ     string `json:"eq"`
}

type rawDeviceInfo struct {
	UUID       string `json:"uuid"`
	DeviceName string `json:"DeviceName"`
	Project    string `json:"project"`
	Firmware   string `json:"firmware"`
	MAC        string `json:"MAC"`
	Group      string `json:"group"`
	MasterUUID string `json:"master_uuid"`
	MasterIP   string `json:"master_ip"`
}

type rawExtendedStatus struct {
	RSSI        string `json:"RSSI"`
	Internet    string `json:"internet"`
	Uptime      string `json:"uptime"`
	WMRMVersion string `json:"wmrm_version"`
}

type rawSlaveEntry struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
}

type rawMultiroomInfo struct {
	Slaves    int             `json:"slaves"`
	SlaveList []rawSlaveEntry `json:"slave_list"`
}

type rawMetaInfo struct {
	MetaData map[string]string `json:"metaData"`
}

type rawEQStatus struct {
	Status string `json:"status"`
	Name   string `json:"Name"`
}

type rawPresetEntry struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

type rawPresetInfo struct {
	PresetNum  int              `json:"preset_num"`
	PresetList []rawPresetEntry `json:"preset_list"`
}

// sourceByMode maps the numeric transport mode to a canonical source label.
// Codes not listed normalise to SourceNetwork, the safe generic for the
// long tail of firmware-specific values.
var sourceByMode = map[int]Source{
	0:  SourceIdle,
	1:  SourceAirplay,
	2:  SourceDLNA,
	10: SourceNetwork,
	11: SourceUSB,
	16: SourceUSB,
	31: SourceSpotify,
	32: SourceTidal,
	36: SourceQobuz,
	40: SourceLineIn,
	41: SourceBluetooth,
	43: SourceOptical,
	47: SourceLineIn,

	sourceModeFollower: SourceMultiroom,
}

// sourceForMode returns the canonical label for a raw transport mode.
func sourceForMode(mode int) Source {
	if src, ok := sourceByMode[mode]; ok {
		return src
	}
	return SourceNetwork
}

// decodeText best-effort decodes a hex-encoded text field. Firmware hex
// encodes Title/Artist/Album; some builds send plain text in the same
// fields, so anything that is not clean printable UTF-8 after decoding is
// returned verbatim.
func decodeText(raw string) string {
	if raw == "" || len(raw)%2 != 0 {
		return raw
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return raw
	}
	text := string(decoded)
	if !utf8.ValidString(text) {
		return raw
	}
	for _, r := range text {
		if r < 0x20 && r != '\t' {
			return raw
		}
	}
	return text
}

// atoiDefault parses a string integer, returning def on any failure.
// Missing or garbage numeric fields degrade to defaults rather than
// failing the whole payload.
func atoiDefault(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

// normalisePlayState maps a raw transport status to the canonical state.
func normalisePlayState(raw string) PlayState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "play":
		return PlayStatePlay
	case "pause":
		return PlayStatePause
	case "load":
		return PlayStateLoad
	default:
		return PlayStateStop
	}
}

// normalisePlayerStatus converts a raw transport payload into the canonical
// record. Position and duration arrive in milliseconds.
func normalisePlayerStatus(raw *rawPlayerStatus) *PlayerStatus {
	mode := atoiDefault(raw.Mode, 0)
	return &PlayerStatus{
		State:      normalisePlayState(raw.Status),
		Volume:     atoiDefault(raw.Vol, 0),
		Muted:      atoiDefault(raw.Mute, 0) == 1,
		Position:   time.Duration(atoiDefault(raw.Curpos, 0)) * time.Millisecond,
		Duration:   time.Duration(atoiDefault(raw.Totlen, 0)) * time.Millisecond,
		Title:      decodeText(raw.Title),
		Artist:     decodeText(raw.Artist),
		Album:      decodeText(raw.Album),
		Source:     sourceForMode(mode),
		SourceMode: mode,
		InGroup:    atoiDefault(raw.Type, 0) == 1,
	}
}

// normaliseDeviceInfo converts a raw identity payload into the canonical
// record. A device without a UUID cannot be tracked across the fleet.
func normaliseDeviceInfo(raw *rawDeviceInfo) (*DeviceInfo, error) {
	if raw.UUID == "" {
		return nil, fmt.Errorf("%w: device info missing uuid", ErrMalformed)
	}
	return &DeviceInfo{
		UUID:       raw.UUID,
		Name:       raw.DeviceName,
		Model:      raw.Project,
		Firmware:   raw.Firmware,
		MAC:        strings.ToUpper(raw.MAC),
		GroupFlag:  atoiDefault(raw.Group, 0),
		MasterUUID: raw.MasterUUID,
		MasterIP:   raw.MasterIP,
	}, nil
}

// normaliseExtendedStatus converts the optional diagnostics payload.
func normaliseExtendedStatus(raw *rawExtendedStatus) *ExtendedStatus {
	return &ExtendedStatus{
		RSSI:          atoiDefault(raw.RSSI, 0),
		Internet:      atoiDefault(raw.Internet, 0) == 1,
		UptimeSeconds: int64(atoiDefault(raw.Uptime, 0)),
		WMRMVersion:   raw.WMRMVersion,
	}
}

// normaliseMultiroomInfo converts a raw slave listing. Entries without an
// IP are kept in the count the device reported but dropped from the
// address list.
func normaliseMultiroomInfo(raw *rawMultiroomInfo) *MultiroomInfo {
	info := &MultiroomInfo{SlaveCount: raw.Slaves}
	for _, s := range raw.SlaveList {
		info.Slaves = append(info.Slaves, SlaveEntry{
			Address: s.IP,
			Name:    s.Name,
		})
	}
	return info
}

// normaliseTrackMetadata converts the optional now-playing payload.
// Known metaData fields are lifted into typed struct fields; everything
// else lands in Extra.
func normaliseTrackMetadata(raw *rawMetaInfo) (*TrackMetadata, error) {
	if raw.MetaData == nil {
		return nil, fmt.Errorf("%w: metadata payload missing metaData", ErrMalformed)
	}
	meta := &TrackMetadata{}
	for key, value := range raw.MetaData {
		switch strings.ToLower(key) {
		case "title":
			meta.Title = value
		case "artist":
			meta.Artist = value
		case "album":
			meta.Album = value
		case "albumarturi":
			meta.AlbumArtURI = value
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]string)
			}
			meta.Extra[key] = value
		}
	}
	return meta, nil
}

// normaliseEQInfo converts the optional equaliser payload.
func normaliseEQInfo(raw *rawEQStatus) *EQInfo {
	return &EQInfo{
		Enabled: strings.EqualFold(raw.Status, "on"),
		Preset:  raw.Name,
	}
}

// normalisePresets converts the optional preset listing, dropping slots
// past the count the device reported.
func normalisePresets(raw *rawPresetInfo) []PresetSlot {
	slots := make([]PresetSlot, 0, len(raw.PresetList))
	for _, p := range raw.PresetList {
		if raw.PresetNum > 0 && p.Number > raw.PresetNum {
			continue
		}
		slots = append(slots, PresetSlot{
			Number: p.Number,
			Name:   p.Name,
			URL:    p.URL,
			Source: p.Source,
		})
	}
	return slots
}
