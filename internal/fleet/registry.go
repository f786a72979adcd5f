package fleet

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Registry is the authoritative cross-device view of the fleet: each
// device's group state, its latest published snapshot, and its most recent
// poll failure. One Registry instance is constructed at startup and handed
// to every component that needs fleet-wide lookups.
//
// All mutation goes through the single mutex, so role transitions and the
// departure cascades they trigger are atomic with respect to readers.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*deviceEntry
	nextSub int
	subs    map[int]func(*Snapshot)
}

type deviceEntry struct {
	group    GroupState
	snapshot *Snapshot
	failure  *PollFailure
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]*deviceEntry),
		subs:    make(map[int]func(*Snapshot)),
	}
}

// Register adds a device as solo. Registering an existing address is a
// no-op so reconnecting pollers never reset established group state.
func (r *Registry) Register(address string) {
	if address == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[address]; ok {
		return
	}
	r.devices[address] = &deviceEntry{group: GroupState{Role: RoleSolo}}
}

// Registered reports whether the address is tracked.
func (r *Registry) Registered(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[address]
	return ok
}

// Addresses returns the tracked addresses in sorted order.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.devices))
	for addr := range r.devices {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Unregister removes a device and repairs the state of its group peers:
// a departing slave is pruned from its master's list, demoting the master
// to solo when the list empties; a departing master releases every slave
// to solo.
func (r *Registry) Unregister(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.devices[address]
	if !ok {
		return
	}

	switch entry.group.Role {
	case RoleSlave:
		r.pruneFromMaster(entry.group.MasterAddress, address)
	case RoleMaster:
		r.releaseSlaves(address, entry.group.SlaveAddresses)
	}

	delete(r.devices, address)
}

// Role returns the device's current role, RoleSolo when untracked.
func (r *Registry) Role(address string) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.devices[address]; ok {
		return entry.group.Role
	}
	return RoleSolo
}

// MasterAddress returns the master a slave follows, empty otherwise.
func (r *Registry) MasterAddress(address string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.devices[address]; ok {
		return entry.group.MasterAddress
	}
	return ""
}

// SlaveAddresses returns a copy of the follower list a master leads.
func (r *Registry) SlaveAddresses(address string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.devices[address]
	if !ok || entry.group.SlaveAddresses == nil {
		return nil
	}
	out := make([]string, len(entry.group.SlaveAddresses))
	copy(out, entry.group.SlaveAddresses)
	return out
}

// GroupState returns the device's full group view.
func (r *Registry) GroupState(address string) GroupState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.devices[address]; ok {
		return entry.group.Clone()
	}
	return GroupState{Role: RoleSolo}
}

// HandleRoleChange stores a device's newly detected group state and
// reports whether anything changed. Unknown addresses are registered on
// the spot; a slave claiming an untracked master keeps the claim so the
// master can be matched when its own poller starts.
//
// Leaving a role cascades to the old peers: a device that stops being a
// slave is pruned from its former master's list, demoting that master to
// solo when the list empties; a device that stops being a master releases
// every slave still pointing at it to solo.
func (r *Registry) HandleRoleChange(address string, state GroupState) bool {
	if address == "" || !state.Role.Valid() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.devices[address]
	if !ok {
		entry = &deviceEntry{group: GroupState{Role: RoleSolo}}
		r.devices[address] = entry
	}

	next := state.Clone()
	slices.Sort(next.SlaveAddresses)
	prev := entry.group
	if groupStateEqual(prev, next) {
		return false
	}

	if prev.Role == RoleSlave && (next.Role != RoleSlave || next.MasterAddress != prev.MasterAddress) {
		r.pruneFromMaster(prev.MasterAddress, address)
	}
	if prev.Role == RoleMaster && next.Role != RoleMaster {
		r.releaseSlaves(address, prev.SlaveAddresses)
	}

	entry.group = next
	return true
}

// pruneFromMaster removes a departed slave from its former master's list,
// demoting the master to solo when the list empties. Callers hold the lock.
func (r *Registry) pruneFromMaster(masterAddress, slaveAddress string) {
	master, ok := r.devices[masterAddress]
	if !ok || master.group.Role != RoleMaster {
		return
	}
	master.group.SlaveAddresses = slices.DeleteFunc(master.group.SlaveAddresses,
		func(a string) bool { return a == slaveAddress })
	if len(master.group.SlaveAddresses) == 0 {
		master.group = GroupState{Role: RoleSolo}
	}
}

// releaseSlaves frees every slave still following a demoted master.
// Callers hold the lock.
func (r *Registry) releaseSlaves(masterAddress string, slaveAddresses []string) {
	for _, slaveAddr := range slaveAddresses {
		if slave, ok := r.devices[slaveAddr]; ok && slave.group.MasterAddress == masterAddress {
			slave.group = GroupState{Role: RoleSolo}
		}
	}
}

// GroupPeers returns the other members of the device's group: for a
// master its slaves, for a slave its master plus sibling slaves. Solo
// devices have no peers.
func (r *Registry) GroupPeers(address string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.devices[address]
	if !ok {
		return nil
	}

	switch entry.group.Role {
	case RoleMaster:
		out := make([]string, len(entry.group.SlaveAddresses))
		copy(out, entry.group.SlaveAddresses)
		return out
	case RoleSlave:
		masterAddr := entry.group.MasterAddress
		master, ok := r.devices[masterAddr]
		if !ok {
			if masterAddr == "" {
				return nil
			}
			return []string{masterAddr}
		}
		peers := []string{masterAddr}
		for _, sibling := range master.group.SlaveAddresses {
			if sibling != address {
				peers = append(peers, sibling)
			}
		}
		return peers
	}
	return nil
}

// Publish stores a device snapshot, clears any recorded failure, and
// fans it out to subscribers. Listeners receive independent clones and
// run outside the registry lock.
func (r *Registry) Publish(snap *Snapshot) {
	if snap == nil || snap.Address == "" {
		return
	}

	stored := snap.Clone()
	stored.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	entry, ok := r.devices[stored.Address]
	if !ok {
		entry = &deviceEntry{group: GroupState{Role: RoleSolo}}
		r.devices[stored.Address] = entry
	}
	entry.snapshot = stored
	entry.failure = nil
	listeners := make([]func(*Snapshot), 0, len(r.subs))
	for _, fn := range r.subs {
		listeners = append(listeners, fn)
	}
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(stored.Clone())
	}
}

// Snapshot returns a clone of the device's latest published snapshot.
func (r *Registry) Snapshot(address string) (*Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.devices[address]
	if !ok || entry.snapshot == nil {
		return nil, false
	}
	return entry.snapshot.Clone(), true
}

// Snapshots returns clones of every published snapshot, ordered by
// address.
func (r *Registry) Snapshots() []*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Snapshot, 0, len(r.devices))
	for _, entry := range r.devices {
		if entry.snapshot != nil {
			out = append(out, entry.snapshot.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Subscribe registers a listener for published snapshots and returns its
// removal function. Listeners must not block for long; they run on the
// publishing goroutine.
func (r *Registry) Subscribe(fn func(*Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// RecordFailure stores the most recent failed poll cycle for a device.
// The last good snapshot is kept untouched.
func (r *Registry) RecordFailure(address, message string, streak int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.devices[address]
	if !ok {
		return
	}
	entry.failure = &PollFailure{
		Address: address,
		Message: message,
		At:      time.Now().UTC(),
		Streak:  streak,
	}
}

// LastFailure returns the device's most recent recorded failure, if any.
func (r *Registry) LastFailure(address string) (*PollFailure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.devices[address]
	if !ok || entry.failure == nil {
		return nil, false
	}
	cpy := *entry.failure
	return &cpy, true
}

func groupStateEqual(a, b GroupState) bool {
	return a.Role == b.Role &&
		a.MasterAddress == b.MasterAddress &&
		slices.Equal(a.SlaveAddresses, b.SlaveAddresses)
}
