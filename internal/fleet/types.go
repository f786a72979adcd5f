package fleet

import (
	"time"

	"github.com/soniclink/soniclink-core/internal/linkplay"
)

// Role is a device's position in a multiroom group.
type Role string

// Role constants.
const (
	// RoleSolo marks an ungrouped device.
	RoleSolo Role = "solo"
	// RoleMaster marks a device leading one or more followers.
	RoleMaster Role = "master"
	// RoleSlave marks a device relaying a master's audio.
	RoleSlave Role = "slave"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSolo, RoleMaster, RoleSlave:
		return true
	}
	return false
}

// GroupState is the registry's view of one device's group membership.
// MasterAddress is set only for slaves; SlaveAddresses only for masters.
type GroupState struct {
	Role           Role     `json:"role"`
	MasterAddress  string   `json:"master_address,omitempty"`
	SlaveAddresses []string `json:"slave_addresses,omitempty"`
}

// Clone returns an independent copy of the group state.
func (g GroupState) Clone() GroupState {
	cpy := g
	if g.SlaveAddresses != nil {
		cpy.SlaveAddresses = make([]string, len(g.SlaveAddresses))
		copy(cpy.SlaveAddresses, g.SlaveAddresses)
	}
	return cpy
}

// Snapshot is the published state of one device after a successful poll
// cycle: canonical device records plus the derived group view and the
// poll health the coordinator ran the cycle with.
type Snapshot struct {
	Address  string `json:"address"`
	DeviceID string `json:"device_id,omitempty"`
	Name     string `json:"name,omitempty"`

	Role           Role     `json:"role"`
	MasterAddress  string   `json:"master_address,omitempty"`
	SlaveAddresses []string `json:"slave_addresses,omitempty"`

	Status   *linkplay.PlayerStatus   `json:"status,omitempty"`
	Info     *linkplay.DeviceInfo     `json:"info,omitempty"`
	Extended *linkplay.ExtendedStatus `json:"extended,omitempty"`
	Metadata *linkplay.TrackMetadata  `json:"metadata,omitempty"`
	EQ       *linkplay.EQInfo         `json:"eq,omitempty"`
	Presets  []linkplay.PresetSlot    `json:"presets,omitempty"`

	// PollInterval is the interval the coordinator selected for the next
	// cycle; FailureStreak counts consecutive failed cycles at publish
	// time (zero on a successful publish).
	PollInterval  time.Duration `json:"poll_interval"`
	FailureStreak int           `json:"failure_streak"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Playing reports whether the snapshot shows active playback.
func (s *Snapshot) Playing() bool {
	return s != nil && s.Status.Playing()
}

// Clone returns a deep copy. Snapshots cross goroutine boundaries through
// the registry, so readers and the publisher never share mutable state.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cpy := *s
	if s.SlaveAddresses != nil {
		cpy.SlaveAddresses = make([]string, len(s.SlaveAddresses))
		copy(cpy.SlaveAddresses, s.SlaveAddresses)
	}
	cpy.Status = s.Status.Clone()
	cpy.Info = s.Info.Clone()
	cpy.Extended = s.Extended.Clone()
	cpy.Metadata = s.Metadata.Clone()
	cpy.EQ = s.EQ.Clone()
	if s.Presets != nil {
		cpy.Presets = make([]linkplay.PresetSlot, len(s.Presets))
		copy(cpy.Presets, s.Presets)
	}
	return &cpy
}

// PollFailure records the most recent failed cycle for one device.
type PollFailure struct {
	Address string    `json:"address"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
	Streak  int       `json:"streak"`
}
