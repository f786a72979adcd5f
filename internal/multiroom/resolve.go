package multiroom

import (
	"strings"

	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/linkplay"
)

// FleetView is the read surface the resolver needs from the registry.
type FleetView interface {
	Snapshot(address string) (*fleet.Snapshot, bool)
	Snapshots() []*fleet.Snapshot
	Role(address string) fleet.Role
}

// streamingSources maps title tokens of known streaming services to their
// canonical source label. Masters in a group report the generic multiroom
// source; the real service often leaks through the title field. Matching
// follows slice order, so a title carrying two tokens classifies the same
// way every cycle.
var streamingSources = []struct {
	token  string
	source linkplay.Source
}{
	{"spotify", linkplay.SourceSpotify},
	{"tidal", linkplay.SourceTidal},
	{"qobuz", linkplay.SourceQobuz},
	{"deezer", linkplay.Source("deezer")},
	{"amazon", linkplay.Source("amazon-music")},
	{"pandora", linkplay.Source("pandora")},
	{"tunein", linkplay.Source("tunein")},
	{"iheart", linkplay.Source("iheartradio")},
	{"soundcloud", linkplay.Source("soundcloud")},
	{"vtuner", linkplay.Source("vtuner")},
}

// Resolver turns a device's detected role and raw snapshot into its final
// published form: masters get their generic multiroom source replaced
// with a concrete one, slaves get the master's media mirrored in.
type Resolver struct {
	view FleetView
}

// NewResolver creates a resolver over the given fleet view.
func NewResolver(view FleetView) *Resolver {
	return &Resolver{view: view}
}

// Resolve finalises one device snapshot in place. Devices outside any
// group pass through untouched.
func (r *Resolver) Resolve(snap *fleet.Snapshot) {
	if snap == nil || snap.Status == nil {
		return
	}

	switch snap.Role {
	case fleet.RoleMaster:
		if snap.Status.Source == linkplay.SourceMultiroom {
			snap.Status.Source = resolveMasterSource(snap.Status)
		}
	case fleet.RoleSlave:
		r.mirrorFromMaster(snap)
	}
}

// mirrorFromMaster copies the master's media state onto a slave snapshot.
// The slave keeps its own volume and mute; those are strictly
// device-local. A slave whose master cannot be found anywhere in the
// fleet is marked with the follower source and keeps its own media.
func (r *Resolver) mirrorFromMaster(snap *fleet.Snapshot) {
	master := r.findMaster(snap)
	if master == nil || master.Status == nil {
		snap.Status.Source = linkplay.SourceFollower
		return
	}

	ownVolume, ownMuted := snap.Status.Volume, snap.Status.Muted

	snap.Status.State = master.Status.State
	snap.Status.Title = master.Status.Title
	snap.Status.Artist = master.Status.Artist
	snap.Status.Album = master.Status.Album
	snap.Status.Position = master.Status.Position
	snap.Status.Duration = master.Status.Duration
	snap.Status.ArtworkURL = master.Status.ArtworkURL
	snap.Status.Source = master.Status.Source
	if snap.Status.Source == linkplay.SourceMultiroom {
		snap.Status.Source = resolveMasterSource(master.Status)
	}

	snap.Status.Volume = ownVolume
	snap.Status.Muted = ownMuted

	if master.Metadata != nil {
		meta := master.Metadata.Clone()
		meta.Extra = sanitiseAux(meta.Extra)
		snap.Metadata = meta
	}
}

// findMaster locates the slave's master snapshot: first the explicit
// address the slave reported, verified to actually be a master, then a
// fleet scan for any master listing this slave.
func (r *Resolver) findMaster(snap *fleet.Snapshot) *fleet.Snapshot {
	if snap.MasterAddress != "" {
		if master, ok := r.view.Snapshot(snap.MasterAddress); ok && master.Role == fleet.RoleMaster {
			return master
		}
	}

	for _, candidate := range r.view.Snapshots() {
		if candidate.Role != fleet.RoleMaster || candidate.Address == snap.Address {
			continue
		}
		for _, slaveAddr := range candidate.SlaveAddresses {
			if slaveAddr == snap.Address {
				return candidate
			}
		}
	}
	return nil
}

// resolveMasterSource classifies the real source behind the generic
// multiroom label: a known service token in the title wins, then any
// finite duration suggests a streaming track, else generic network audio.
func resolveMasterSource(status *linkplay.PlayerStatus) linkplay.Source {
	title := strings.ToLower(status.Title)
	for _, s := range streamingSources {
		if strings.Contains(title, s.token) {
			return s.source
		}
	}
	if status.Duration > 0 {
		return linkplay.SourceStreaming
	}
	return linkplay.SourceNetwork
}

// sanitiseAux strips volume and mute named keys from an auxiliary
// metadata map before it is mirrored to a slave. Matching is
// case-insensitive on key substrings.
func sanitiseAux(aux map[string]string) map[string]string {
	if aux == nil {
		return nil
	}
	out := make(map[string]string, len(aux))
	for key, value := range aux {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "vol") || strings.Contains(lower, "mute") {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
