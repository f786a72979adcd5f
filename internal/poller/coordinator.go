package poller

import (
	"context"
	"sync"
	"time"

	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/linkplay"
	"github.com/soniclink/soniclink-core/internal/multiroom"
)

// fastWindow is how long a user command keeps the device on the fast
// schedule, so the state change the command caused is picked up quickly.
const fastWindow = 10 * time.Second

// Logger is the minimal logging surface the poller needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// HistoryWriter receives time-series samples from successful cycles.
type HistoryWriter interface {
	WritePlaybackSample(deviceID, role, source string, playing bool, positionSec, durationSec float64)
	WritePollHealth(deviceID string, intervalSec float64, failures int)
}

// Intervals carries the coordinator's timing knobs.
type Intervals struct {
	// Fast is used while the device plays, a role just changed, or a
	// user command was issued recently.
	Fast time.Duration
	// Normal is the idle schedule.
	Normal time.Duration
	// RequestTimeout bounds each device call.
	RequestTimeout time.Duration
	// DeviceInfoTTL throttles the identity endpoint; other cycles reuse
	// the cached record.
	DeviceInfoTTL time.Duration
}

// Coordinator runs the poll loop for one device: fetch, normalise, detect
// role, resolve group media, publish. One goroutine per device calls Run;
// the command-feedback methods may be called from any goroutine.
type Coordinator struct {
	address   string
	client    linkplay.Client
	registry  *fleet.Registry
	resolver  *multiroom.Resolver
	probe     *Probe
	backoff   *Backoff
	intervals Intervals
	logger    Logger
	metrics   *Metrics
	history   HistoryWriter

	kick chan struct{}

	mu          sync.Mutex
	info        *linkplay.DeviceInfo
	infoAt      time.Time
	metadata    *linkplay.TrackMetadata
	extended    *linkplay.ExtendedStatus
	eq          *linkplay.EQInfo
	presets     []linkplay.PresetSlot
	mri         *linkplay.MultiroomInfo
	slowAt      time.Time
	fastUntil   time.Time
	cmdFailures int
}

// CoordinatorOptions bundles the dependencies for NewCoordinator.
type CoordinatorOptions struct {
	Client    linkplay.Client
	Registry  *fleet.Registry
	Resolver  *multiroom.Resolver
	Intervals Intervals
	Logger    Logger
	Metrics   *Metrics
	History   HistoryWriter
}

// NewCoordinator creates a coordinator for one device and registers it as
// solo. Metrics and History may be nil.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	c := &Coordinator{
		address:   opts.Client.Address(),
		client:    opts.Client,
		registry:  opts.Registry,
		resolver:  opts.Resolver,
		probe:     NewProbe(),
		backoff:   NewBackoff(),
		intervals: opts.Intervals,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		history:   opts.History,
		kick:      make(chan struct{}, 1),
	}
	c.registry.Register(c.address)
	return c
}

// Address returns the device address this coordinator polls.
func (c *Coordinator) Address() string {
	return c.address
}

// Capabilities returns the probe state for every optional endpoint.
func (c *Coordinator) Capabilities() map[Feature]Capability {
	return c.probe.Snapshot()
}

// Run polls the device until ctx is cancelled. Each cycle selects the
// next interval; a user command wakes the loop immediately.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("poller started", "device", c.address)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("poller stopped", "device", c.address)
			return
		case <-timer.C:
		case <-c.kick:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		interval := c.cycle(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info("poller stopped", "device", c.address)
			return
		default:
		}
		timer.Reset(interval)
	}
}

// RecordUserCommand notes that a control command was just issued: the
// device switches to the fast schedule and the loop wakes immediately.
func (c *Coordinator) RecordUserCommand() {
	c.mu.Lock()
	c.fastUntil = time.Now().Add(fastWindow)
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// RecordCommandFailure counts a failed control command against the
// device.
func (c *Coordinator) RecordCommandFailure() {
	c.mu.Lock()
	c.cmdFailures++
	c.mu.Unlock()
	c.metrics.ObserveCommandFailure(c.address)
}

// CommandFailures returns the failed-command count since the last clear.
func (c *Coordinator) CommandFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmdFailures
}

// ClearCommandFailures resets the failed-command count.
func (c *Coordinator) ClearCommandFailures() {
	c.mu.Lock()
	c.cmdFailures = 0
	c.mu.Unlock()
}

// cycle runs one poll pass and returns the interval until the next.
func (c *Coordinator) cycle(ctx context.Context) time.Duration {
	status, err := c.fetchStatus(ctx)
	if err != nil {
		return c.failCycle("status", err)
	}

	info, err := c.refreshDeviceInfo(ctx)
	if err != nil {
		return c.failCycle("device info", err)
	}

	mri := c.refreshMultiroom(ctx)
	detection := multiroom.DetectRole(status, info, mri)

	c.client.SetGroupMaster(detection.MasterAddress)
	c.client.SetGroupSlaves(detection.SlaveAddresses)

	roleChanged := c.registry.HandleRoleChange(c.address, detection.GroupState())
	if roleChanged {
		c.logger.Info("group role changed",
			"device", c.address, "role", string(detection.Role),
			"master", detection.MasterAddress, "slaves", len(detection.SlaveAddresses))
	}

	c.fetchOptional(ctx, status)

	snap := c.buildSnapshot(status, info, detection)
	c.resolver.Resolve(snap)
	c.registry.Publish(snap)
	c.backoff.Reset()

	interval := c.selectInterval(snap, roleChanged)

	c.metrics.ObserveCycle(c.address, "success", interval)
	c.metrics.ObserveSnapshot(c.address, snap.Role, snap.Playing())
	c.metrics.ObserveCapabilities(c.address, c.probe.Snapshot())
	if c.history != nil {
		c.history.WritePlaybackSample(c.address, string(snap.Role), string(status.Source),
			snap.Playing(), status.Position.Seconds(), status.Duration.Seconds())
		c.history.WritePollHealth(c.address, interval.Seconds(), 0)
	}
	return interval
}

// failCycle handles a failed mandatory call: the last good snapshot is
// left untouched, the failure is recorded, and the backoff staircase
// widens the next interval.
func (c *Coordinator) failCycle(stage string, err error) time.Duration {
	streak := c.backoff.Failure()
	interval := IntervalForStreak(streak, c.intervals.Normal)

	c.registry.RecordFailure(c.address, err.Error(), streak)
	c.logger.Warn("poll cycle failed",
		"device", c.address, "stage", stage, "streak", streak,
		"next_interval", interval.String(), "error", err)

	c.metrics.ObserveCycle(c.address, "failure", interval)
	if c.history != nil {
		c.history.WritePollHealth(c.address, interval.Seconds(), streak)
	}
	return interval
}

func (c *Coordinator) fetchStatus(ctx context.Context) (*linkplay.PlayerStatus, error) {
	cctx, cancel := context.WithTimeout(ctx, c.intervals.RequestTimeout)
	defer cancel()
	return c.client.Status(cctx)
}

// refreshDeviceInfo returns the cached identity record, refreshing it
// when the TTL has lapsed. The identity call is mandatory when due: a
// failed refresh fails the whole cycle.
func (c *Coordinator) refreshDeviceInfo(ctx context.Context) (*linkplay.DeviceInfo, error) {
	c.mu.Lock()
	cached, fetchedAt := c.info, c.infoAt
	c.mu.Unlock()

	if cached != nil && time.Since(fetchedAt) < c.intervals.DeviceInfoTTL {
		return cached, nil
	}

	cctx, cancel := context.WithTimeout(ctx, c.intervals.RequestTimeout)
	defer cancel()

	info, err := c.client.DeviceInfo(cctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.info = info
	c.infoAt = time.Now()
	c.mu.Unlock()
	return info, nil
}

// refreshMultiroom fetches the slave listing, degrading to the cached
// listing on transient failure and backing off permanently when the
// firmware lacks the endpoint.
func (c *Coordinator) refreshMultiroom(ctx context.Context) *linkplay.MultiroomInfo {
	c.mu.Lock()
	cached := c.mri
	c.mu.Unlock()

	if !c.probe.ShouldAttempt(FeatureSlaveList) {
		return cached
	}

	cctx, cancel := context.WithTimeout(ctx, c.intervals.RequestTimeout)
	defer cancel()

	mri, err := c.client.Multiroom(cctx)
	if err != nil {
		// Unlike the truly optional endpoints, the slave listing feeds
		// role detection: only a firmware refusal settles the verdict,
		// a flaky call just reuses the cached listing.
		if linkplay.IsUnsupported(err) {
			c.probe.Observe(FeatureSlaveList, err)
		} else {
			c.logger.Debug("slave listing unavailable, using cached",
				"device", c.address, "error", err)
		}
		return cached
	}
	c.probe.Observe(FeatureSlaveList, nil)

	c.mu.Lock()
	c.mri = mri
	c.mu.Unlock()
	return mri
}

// fetchOptional runs the capability-gated endpoints and folds their
// results into the cycle. Failures here never fail the cycle.
func (c *Coordinator) fetchOptional(ctx context.Context, status *linkplay.PlayerStatus) {
	if c.probe.ShouldAttempt(FeatureMetadata) {
		cctx, cancel := context.WithTimeout(ctx, c.intervals.RequestTimeout)
		meta, err := c.client.TrackMetadata(cctx)
		cancel()
		c.probe.Observe(FeatureMetadata, err)
		if err == nil {
			c.mu.Lock()
			c.metadata = meta
			c.mu.Unlock()
			if status.ArtworkURL == "" {
				status.ArtworkURL = meta.AlbumArtURI
			}
		}
	}

	if c.probe.ShouldAttempt(FeatureEqualizer) {
		cctx, cancel := context.WithTimeout(ctx, c.intervals.RequestTimeout)
		eq, err := c.client.Equalizer(cctx)
		cancel()
		c.probe.Observe(FeatureEqualizer, err)
		if err == nil {
			c.mu.Lock()
			c.eq = eq
			c.mu.Unlock()
			status.EQPreset = eq.Preset
		}
	}

	// Presets and extended status change rarely; ride the identity TTL.
	c.mu.Lock()
	stale := time.Since(c.slowAt) >= c.intervals.DeviceInfoTTL
	if stale {
		c.slowAt = time.Now()
	}
	c.mu.Unlock()
	if !stale {
		return
	}

	if c.probe.ShouldAttempt(FeaturePresets) {
		cctx, cancel := context.WithTimeout(ctx, c.intervals.RequestTimeout)
		presets, err := c.client.Presets(cctx)
		cancel()
		c.probe.Observe(FeaturePresets, err)
		if err == nil {
			c.mu.Lock()
			c.presets = presets
			c.mu.Unlock()
		}
	}

	if c.probe.ShouldAttempt(FeatureExtended) {
		cctx, cancel := context.WithTimeout(ctx, c.intervals.RequestTimeout)
		ext, err := c.client.ExtendedStatus(cctx)
		cancel()
		c.probe.Observe(FeatureExtended, err)
		if err == nil {
			c.mu.Lock()
			c.extended = ext
			c.mu.Unlock()
		}
	}
}

// buildSnapshot assembles the publishable state from this cycle's
// results and the cached optional records.
func (c *Coordinator) buildSnapshot(status *linkplay.PlayerStatus, info *linkplay.DeviceInfo, detection multiroom.Detection) *fleet.Snapshot {
	c.mu.Lock()
	metadata := c.metadata
	eq := c.eq
	extended := c.extended
	presets := c.presets
	streak := 0
	c.mu.Unlock()

	snap := &fleet.Snapshot{
		Address:        c.address,
		Role:           detection.Role,
		MasterAddress:  detection.MasterAddress,
		SlaveAddresses: detection.SlaveAddresses,
		Status:         status,
		Info:           info,
		Extended:       extended,
		Metadata:       metadata,
		EQ:             eq,
		Presets:        presets,
		FailureStreak:  streak,
	}
	if info != nil {
		snap.DeviceID = info.UUID
		snap.Name = info.Name
	}
	return snap
}

// selectInterval picks the next schedule: fast while this device or any
// member of its group is playing, while a role just changed, or inside
// the user-command window; normal otherwise.
func (c *Coordinator) selectInterval(snap *fleet.Snapshot, roleChanged bool) time.Duration {
	c.mu.Lock()
	userActive := time.Now().Before(c.fastUntil)
	c.mu.Unlock()

	if snap.Playing() || roleChanged || userActive || c.groupPeerPlaying() {
		return c.intervals.Fast
	}
	return c.intervals.Normal
}

// groupPeerPlaying reports whether any other member of this device's
// group published a playing snapshot. A slave following a playing master
// polls fast even while its own transport reports idle.
func (c *Coordinator) groupPeerPlaying() bool {
	for _, peer := range c.registry.GroupPeers(c.address) {
		if peerSnap, ok := c.registry.Snapshot(peer); ok && peerSnap.Playing() {
			return true
		}
	}
	return false
}
