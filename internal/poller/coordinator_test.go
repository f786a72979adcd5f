package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/linkplay"
	"github.com/soniclink/soniclink-core/internal/multiroom"
)

// fakeClient is a programmable linkplay.Client. Response fields are read
// on every call; error fields win over values; counts record traffic.
type fakeClient struct {
	mu      sync.Mutex
	address string

	status    *linkplay.PlayerStatus
	statusErr error
	info      *linkplay.DeviceInfo
	infoErr   error
	mri       *linkplay.MultiroomInfo
	mriErr    error
	metaErr   error
	eqErr     error
	presetErr error
	extErr    error

	calls map[string]int

	groupMaster string
	groupSlaves []string
}

func newFakeClient(address string) *fakeClient {
	return &fakeClient{
		address: address,
		status:  &linkplay.PlayerStatus{State: linkplay.PlayStateStop},
		info:    &linkplay.DeviceInfo{UUID: "uuid-" + address, Name: "dev-" + address},
		calls:   make(map[string]int),
	}
}

func (f *fakeClient) count(name string) {
	f.calls[name]++
}

func (f *fakeClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) Address() string { return f.address }

func (f *fakeClient) Status(context.Context) (*linkplay.PlayerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("status")
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status.Clone(), nil
}

func (f *fakeClient) DeviceInfo(context.Context) (*linkplay.DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("info")
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info.Clone(), nil
}

func (f *fakeClient) Multiroom(context.Context) (*linkplay.MultiroomInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("multiroom")
	if f.mriErr != nil {
		return nil, f.mriErr
	}
	return f.mri.Clone(), nil
}

func (f *fakeClient) TrackMetadata(context.Context) (*linkplay.TrackMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("metadata")
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return &linkplay.TrackMetadata{AlbumArtURI: "http://art/x.jpg"}, nil
}

func (f *fakeClient) Equalizer(context.Context) (*linkplay.EQInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("eq")
	if f.eqErr != nil {
		return nil, f.eqErr
	}
	return &linkplay.EQInfo{Enabled: true, Preset: "Flat"}, nil
}

func (f *fakeClient) Presets(context.Context) ([]linkplay.PresetSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("presets")
	if f.presetErr != nil {
		return nil, f.presetErr
	}
	return []linkplay.PresetSlot{{Number: 1, Name: "Radio X"}}, nil
}

func (f *fakeClient) ExtendedStatus(context.Context) (*linkplay.ExtendedStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("extended")
	if f.extErr != nil {
		return nil, f.extErr
	}
	return &linkplay.ExtendedStatus{RSSI: -40, Internet: true}, nil
}

func (f *fakeClient) SetGroupMaster(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupMaster = address
}

func (f *fakeClient) SetGroupSlaves(addresses []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupSlaves = addresses
}

func (f *fakeClient) GroupMaster() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupMaster
}

func (f *fakeClient) GroupSlaves() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupSlaves
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func testIntervals() Intervals {
	return Intervals{
		Fast:           time.Second,
		Normal:         5 * time.Second,
		RequestTimeout: time.Second,
		DeviceInfoTTL:  30 * time.Second,
	}
}

func newTestCoordinator(client linkplay.Client, registry *fleet.Registry) *Coordinator {
	return NewCoordinator(CoordinatorOptions{
		Client:    client,
		Registry:  registry,
		Resolver:  multiroom.NewResolver(registry),
		Intervals: testIntervals(),
		Logger:    nopLogger{},
	})
}

func TestCyclePublishesSnapshot(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	client.status = &linkplay.PlayerStatus{State: linkplay.PlayStatePlay, Volume: 40}
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	interval := c.cycle(context.Background())

	snap, ok := registry.Snapshot("192.168.1.10")
	if !ok {
		t.Fatal("no snapshot published after successful cycle")
	}
	if snap.DeviceID != "uuid-192.168.1.10" || snap.Name != "dev-192.168.1.10" {
		t.Errorf("identity not carried into snapshot: %+v", snap)
	}
	if snap.Role != fleet.RoleSolo {
		t.Errorf("Role = %q, want solo", snap.Role)
	}
	if interval != time.Second {
		t.Errorf("interval = %v, want fast while playing", interval)
	}
}

func TestCycleIdleUsesNormalInterval(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	if got := c.cycle(context.Background()); got != 5*time.Second {
		t.Errorf("interval = %v, want normal while idle", got)
	}
}

func TestMandatoryFailureKeepsLastSnapshot(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	client.status = &linkplay.PlayerStatus{State: linkplay.PlayStateStop, Volume: 33}
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	c.cycle(context.Background())

	client.mu.Lock()
	client.statusErr = fmt.Errorf("%w: connection refused", linkplay.ErrTransient)
	client.mu.Unlock()

	c.cycle(context.Background())

	snap, ok := registry.Snapshot("192.168.1.10")
	if !ok || snap.Status.Volume != 33 {
		t.Error("failed cycle disturbed the last good snapshot")
	}
	failure, ok := registry.LastFailure("192.168.1.10")
	if !ok || failure.Streak != 1 {
		t.Errorf("LastFailure = %+v, %v", failure, ok)
	}
}

func TestRepeatedFailuresWidenInterval(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	client.statusErr = fmt.Errorf("%w: unreachable", linkplay.ErrTransient)
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	intervals := make([]time.Duration, 0, 6)
	for i := 0; i < 6; i++ {
		intervals = append(intervals, c.cycle(context.Background()))
	}

	want := []time.Duration{
		5 * time.Second, 10 * time.Second, 30 * time.Second,
		30 * time.Second, 60 * time.Second, 60 * time.Second,
	}
	for i := range want {
		if intervals[i] != want[i] {
			t.Errorf("cycle %d interval = %v, want %v", i+1, intervals[i], want[i])
		}
	}
}

func TestRecoveryResetsBackoff(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	client.statusErr = fmt.Errorf("%w: unreachable", linkplay.ErrTransient)
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	for i := 0; i < 4; i++ {
		c.cycle(context.Background())
	}

	client.mu.Lock()
	client.statusErr = nil
	client.mu.Unlock()

	if got := c.cycle(context.Background()); got != 5*time.Second {
		t.Errorf("interval after recovery = %v, want normal", got)
	}
	if _, ok := registry.LastFailure("192.168.1.10"); ok {
		t.Error("failure record survived a successful cycle")
	}
}

func TestDeviceInfoThrottled(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	for i := 0; i < 5; i++ {
		c.cycle(context.Background())
	}

	if got := client.callCount("status"); got != 5 {
		t.Errorf("status calls = %d, want one per cycle", got)
	}
	if got := client.callCount("info"); got != 1 {
		t.Errorf("info calls = %d, want throttled to one inside the TTL", got)
	}
}

func TestUnsupportedEndpointProbedOnce(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	client.metaErr = fmt.Errorf("%w: getMetaInfo", linkplay.ErrUnsupported)
	client.presetErr = fmt.Errorf("%w: getPresetInfo", linkplay.ErrUnsupported)
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	for i := 0; i < 4; i++ {
		c.cycle(context.Background())
	}

	if got := client.callCount("metadata"); got != 1 {
		t.Errorf("metadata calls = %d, want exactly one probe", got)
	}
	if got := client.callCount("presets"); got != 1 {
		t.Errorf("preset calls = %d, want exactly one probe", got)
	}
	if got := c.probe.State(FeatureMetadata); got != CapabilityUnsupported {
		t.Errorf("metadata capability = %v, want unsupported", got)
	}
	if got := c.probe.State(FeatureEqualizer); got != CapabilitySupported {
		t.Errorf("equaliser capability = %v, want supported", got)
	}
}

func TestMasterDetectionAndBookkeeping(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	client.status = &linkplay.PlayerStatus{State: linkplay.PlayStatePlay}
	client.mri = &linkplay.MultiroomInfo{
		SlaveCount: 1,
		Slaves:     []linkplay.SlaveEntry{{Address: "192.168.1.41", Name: "Bedroom"}},
	}
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	c.cycle(context.Background())

	if got := registry.Role("192.168.1.10"); got != fleet.RoleMaster {
		t.Errorf("registry role = %q, want master", got)
	}
	if got := registry.SlaveAddresses("192.168.1.10"); len(got) != 1 || got[0] != "192.168.1.41" {
		t.Errorf("registry slaves = %v", got)
	}
	if got := client.GroupSlaves(); len(got) != 1 || got[0] != "192.168.1.41" {
		t.Errorf("client bookkeeping slaves = %v", got)
	}
}

func TestMultiroomDegradesToCached(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	client.mri = &linkplay.MultiroomInfo{
		SlaveCount: 1,
		Slaves:     []linkplay.SlaveEntry{{Address: "192.168.1.41"}},
	}
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	c.cycle(context.Background())

	// The slave listing starts failing; the cached listing keeps the
	// device a master.
	client.mu.Lock()
	client.mriErr = fmt.Errorf("%w: timeout", linkplay.ErrTransient)
	client.mu.Unlock()
	c.cycle(context.Background())

	if got := registry.Role("192.168.1.10"); got != fleet.RoleMaster {
		t.Errorf("registry role = %q, want master from cached listing", got)
	}
}

func TestPlayingMasterKeepsSlaveFast(t *testing.T) {
	const masterAddr = "192.168.1.10"
	const slaveAddr = "192.168.1.41"

	registry := fleet.NewRegistry()
	registry.Register(masterAddr)
	registry.HandleRoleChange(masterAddr, fleet.GroupState{
		Role:           fleet.RoleMaster,
		SlaveAddresses: []string{slaveAddr},
	})
	registry.Publish(&fleet.Snapshot{
		Address: masterAddr,
		Role:    fleet.RoleMaster,
		Status:  &linkplay.PlayerStatus{State: linkplay.PlayStatePlay},
	})

	client := newFakeClient(slaveAddr)
	client.info.GroupFlag = 1
	client.info.MasterIP = masterAddr
	c := newTestCoordinator(client, registry)

	// First cycle transitions solo → slave, which forces fast on its
	// own; the second cycle is steady state.
	c.cycle(context.Background())
	if got := c.cycle(context.Background()); got != time.Second {
		t.Errorf("interval = %v, want fast while the master plays", got)
	}
}

func TestUserCommandForcesFastInterval(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	registry := fleet.NewRegistry()
	c := newTestCoordinator(client, registry)

	c.RecordUserCommand()

	if got := c.cycle(context.Background()); got != time.Second {
		t.Errorf("interval = %v, want fast inside the command window", got)
	}
}

func TestCommandFailureCounter(t *testing.T) {
	client := newFakeClient("192.168.1.10")
	c := newTestCoordinator(client, fleet.NewRegistry())

	c.RecordCommandFailure()
	c.RecordCommandFailure()
	if got := c.CommandFailures(); got != 2 {
		t.Errorf("CommandFailures = %d, want 2", got)
	}

	c.ClearCommandFailures()
	if got := c.CommandFailures(); got != 0 {
		t.Errorf("CommandFailures = %d after clear", got)
	}
}
