package poller

import "sync"

// Capability is the tri-state knowledge of whether a device implements an
// optional endpoint.
type Capability int

// Capability states.
const (
	// CapabilityUnknown means the endpoint has not been probed yet.
	CapabilityUnknown Capability = iota
	// CapabilitySupported means the endpoint has answered successfully at
	// least once. It never downgrades: a later transient failure on a
	// known-supported endpoint is just a failure.
	CapabilitySupported
	// CapabilityUnsupported means the endpoint failed before ever
	// answering. The verdict is permanent for the life of the process.
	CapabilityUnsupported
)

// String returns the state name for logs and metrics.
func (c Capability) String() string {
	switch c {
	case CapabilitySupported:
		return "supported"
	case CapabilityUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Feature names one optional device endpoint.
type Feature string

// Optional endpoint features.
const (
	FeatureMetadata  Feature = "metadata"
	FeatureEqualizer Feature = "equalizer"
	FeaturePresets   Feature = "presets"
	FeatureExtended  Feature = "extended_status"
	FeatureSlaveList Feature = "slave_list"
)

// allFeatures lists every probed feature, for state snapshots.
var allFeatures = []Feature{
	FeatureMetadata, FeatureEqualizer, FeaturePresets, FeatureExtended, FeatureSlaveList,
}

// Probe memoises per-device endpoint support so optional endpoints are
// discovered lazily and unsupported ones are never hammered. Safe for
// concurrent use.
type Probe struct {
	mu     sync.RWMutex
	states map[Feature]Capability
}

// NewProbe creates a probe with every feature unknown.
func NewProbe() *Probe {
	return &Probe{states: make(map[Feature]Capability)}
}

// State returns the current knowledge for a feature.
func (p *Probe) State(feature Feature) Capability {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.states[feature]
}

// ShouldAttempt reports whether a call to the feature's endpoint is worth
// making: anything except a permanent unsupported verdict.
func (p *Probe) ShouldAttempt(feature Feature) bool {
	return p.State(feature) != CapabilityUnsupported
}

// Observe records the outcome of one call to the feature's endpoint.
// Success promotes to supported. Any failure while the feature is still
// unknown settles the verdict as unsupported, even a transient one:
// suppressing an endpoint that might have answered beats hammering one
// that never will. Once supported, later failures never downgrade the
// flag.
func (p *Probe) Observe(feature Feature, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err == nil {
		p.states[feature] = CapabilitySupported
		return
	}
	if p.states[feature] == CapabilityUnknown {
		p.states[feature] = CapabilityUnsupported
	}
}

// Snapshot returns the probe state for every feature.
func (p *Probe) Snapshot() map[Feature]Capability {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[Feature]Capability, len(allFeatures))
	for _, f := range allFeatures {
		out[f] = p.states[f]
	}
	return out
}
