package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soniclink/soniclink-core/internal/fleet"
)

// Metrics holds the poller's Prometheus collectors. A nil *Metrics is a
// valid no-op receiver so tests and trimmed-down deployments can skip
// registration.
type Metrics struct {
	cycles          *prometheus.CounterVec
	interval        *prometheus.GaugeVec
	playing         *prometheus.GaugeVec
	role            *prometheus.GaugeVec
	capability      *prometheus.GaugeVec
	commandFailures *prometheus.CounterVec
}

// NewMetrics creates and registers the poller collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soniclink_poll_cycles_total",
			Help: "Poll cycles per device, partitioned by result.",
		}, []string{"device", "result"}),
		interval: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soniclink_poll_interval_seconds",
			Help: "Interval selected for the device's next poll cycle.",
		}, []string{"device"}),
		playing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soniclink_device_playing",
			Help: "Whether the device is actively playing (1) or not (0).",
		}, []string{"device"}),
		role: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soniclink_device_role",
			Help: "Device group role, 1 for the active role label.",
		}, []string{"device", "role"}),
		capability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soniclink_device_capability",
			Help: "Optional endpoint support: -1 unsupported, 0 unknown, 1 supported.",
		}, []string{"device", "feature"}),
		commandFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soniclink_command_failures_total",
			Help: "Device control commands that failed.",
		}, []string{"device"}),
	}
	reg.MustRegister(m.cycles, m.interval, m.playing, m.role, m.capability, m.commandFailures)
	return m
}

// ObserveCycle records the outcome of one poll cycle.
func (m *Metrics) ObserveCycle(device, result string, interval time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(device, result).Inc()
	m.interval.WithLabelValues(device).Set(interval.Seconds())
}

// ObserveSnapshot records the published device state.
func (m *Metrics) ObserveSnapshot(device string, role fleet.Role, playing bool) {
	if m == nil {
		return
	}
	val := 0.0
	if playing {
		val = 1
	}
	m.playing.WithLabelValues(device).Set(val)
	for _, r := range []fleet.Role{fleet.RoleSolo, fleet.RoleMaster, fleet.RoleSlave} {
		active := 0.0
		if r == role {
			active = 1
		}
		m.role.WithLabelValues(device, string(r)).Set(active)
	}
}

// ObserveCapabilities records the probe state for every feature.
func (m *Metrics) ObserveCapabilities(device string, states map[Feature]Capability) {
	if m == nil {
		return
	}
	for feature, state := range states {
		var val float64
		switch state {
		case CapabilitySupported:
			val = 1
		case CapabilityUnsupported:
			val = -1
		}
		m.capability.WithLabelValues(device, string(feature)).Set(val)
	}
}

// ObserveCommandFailure counts one failed control command.
func (m *Metrics) ObserveCommandFailure(device string) {
	if m == nil {
		return
	}
	m.commandFailures.WithLabelValues(device).Inc()
}

// Forget drops all series for a removed device.
func (m *Metrics) Forget(device string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"device": device}
	m.cycles.DeletePartialMatch(labels)
	m.interval.DeletePartialMatch(labels)
	m.playing.DeletePartialMatch(labels)
	m.role.DeletePartialMatch(labels)
	m.capability.DeletePartialMatch(labels)
	m.commandFailures.DeletePartialMatch(labels)
}
