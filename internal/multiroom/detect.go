package multiroom

import (
	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/linkplay"
)

// Detection is the outcome of one role pass over a device's poll results.
type Detection struct {
	Role fleet.Role

	// MasterAddress is set for slaves whose firmware reports the master's
	// address. MasterUUID may be set even when the address is not; the
	// resolver falls back to a fleet scan in that case.
	MasterAddress string
	MasterUUID    string

	// SlaveAddresses is set for masters.
	SlaveAddresses []string
}

// GroupState converts the detection into the registry's group view.
// A slave without a resolvable master stays solo in the registry so the
// topology never contains a dangling master reference; the snapshot still
// carries the detected slave role.
func (d Detection) GroupState() fleet.GroupState {
	switch d.Role {
	case fleet.RoleMaster:
		return fleet.GroupState{Role: fleet.RoleMaster, SlaveAddresses: d.SlaveAddresses}
	case fleet.RoleSlave:
		if d.MasterAddress == "" {
			return fleet.GroupState{Role: fleet.RoleSolo}
		}
		return fleet.GroupState{Role: fleet.RoleSlave, MasterAddress: d.MasterAddress}
	}
	return fleet.GroupState{Role: fleet.RoleSolo}
}

// DetectRole derives a device's group role from one cycle's poll results.
// info and mri may be nil when the cycle ran on cached or degraded data.
//
// Evidence precedence, strongest first:
//
//  1. A non-empty slave listing always wins: the device is a master no
//     matter what its other fields claim.
//  2. The device-info group flag plus a reported master identity makes it
//     a slave. Device-info fields outrank the group hint duplicated in
//     the transport payload.
//  3. The group flag alone, with no master identity and no slave listing,
//     is treated as solo. Firmware leaves the flag stale after groups
//     dissolve.
//  4. Follower transport mode while playing makes it a slave with an
//     unknown master.
func DetectRole(status *linkplay.PlayerStatus, info *linkplay.DeviceInfo, mri *linkplay.MultiroomInfo) Detection {
	if mri != nil && mri.SlaveCount > 0 {
		return Detection{
			Role:           fleet.RoleMaster,
			SlaveAddresses: mri.SlaveAddresses(),
		}
	}

	grouped := false
	if info != nil {
		grouped = info.GroupFlag != 0
	} else if status != nil {
		grouped = status.InGroup
	}

	if grouped {
		if info != nil && (info.MasterIP != "" || info.MasterUUID != "") {
			return Detection{
				Role:          fleet.RoleSlave,
				MasterAddress: info.MasterIP,
				MasterUUID:    info.MasterUUID,
			}
		}
		// A stale flag with no master identity is terminal: it outranks
		// the follower-mode heuristic below.
		return Detection{Role: fleet.RoleSolo}
	}

	if status.FollowerMode() && status.Playing() {
		return Detection{Role: fleet.RoleSlave}
	}

	return Detection{Role: fleet.RoleSolo}
}
