package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soniclink/soniclink-core/internal/control"
	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/infrastructure/mqtt"
)

// availabilityCheckInterval is how often the bridge sweeps the registry
// for devices whose polling has started failing.
const availabilityCheckInterval = 15 * time.Second

// offlineStreakThreshold is the consecutive-failure streak at which a
// device is announced offline. A single missed cycle is not an outage.
const offlineStreakThreshold = 2

// commandTimeout bounds a device command triggered over MQTT.
const commandTimeout = 10 * time.Second

// Logger is the minimal logging surface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Bridge connects the fleet to an MQTT broker: every published snapshot
// becomes a retained state message, device availability is announced from
// poll health, and the command topic feeds the control dispatcher.
type Bridge struct {
	client     *mqtt.Client
	topics     mqtt.Topics
	registry   *fleet.Registry
	dispatcher *control.Dispatcher
	logger     Logger
	qos        byte

	unsub func()
}

// Deps holds the dependencies required by the bridge.
type Deps struct {
	Client     *mqtt.Client
	Registry   *fleet.Registry
	Dispatcher *control.Dispatcher
	Logger     Logger
	QoS        byte
}

// New creates a bridge. It is inert until Start is called.
func New(deps Deps) *Bridge {
	return &Bridge{
		client:     deps.Client,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		qos:        deps.QoS,
	}
}

// Start subscribes to the command topic, hooks snapshot publishes, and
// launches the availability sweep. It returns after wiring up; the sweep
// runs until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.client.Subscribe(b.topics.AllDeviceCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("mqttbridge: subscribe commands: %w", err)
	}

	b.unsub = b.registry.Subscribe(b.publishSnapshot)

	go b.availabilityLoop(ctx)
	b.logger.Info("mqtt bridge started")
	return nil
}

// Close detaches the bridge from the registry.
func (b *Bridge) Close() {
	if b.unsub != nil {
		b.unsub()
	}
}

// publishSnapshot pushes one snapshot as retained state and marks the
// device online.
func (b *Bridge) publishSnapshot(snap *fleet.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		b.logger.Error("failed to marshal snapshot", "device", snap.Address, "error", err)
		return
	}

	if err := b.client.PublishRetained(b.topics.DeviceState(snap.Address), payload); err != nil {
		b.logger.Warn("failed to publish device state",
			"device", snap.Address, "error", err)
		return
	}
	b.publishAvailability(snap.Address, true)
}

// publishAvailability announces a device's reachability, retained so late
// subscribers see the current value.
func (b *Bridge) publishAvailability(address string, online bool) {
	payload := "offline"
	if online {
		payload = "online"
	}
	if err := b.client.PublishRetained(b.topics.DeviceAvailability(address), []byte(payload)); err != nil {
		b.logger.Debug("failed to publish availability",
			"device", address, "error", err)
	}
}

// availabilityLoop sweeps the registry and announces devices offline once
// their failure streak crosses the threshold. Recovery is announced by
// the next snapshot publish.
func (b *Bridge) availabilityLoop(ctx context.Context) {
	ticker := time.NewTicker(availabilityCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, address := range b.registry.Addresses() {
				if failure, ok := b.registry.LastFailure(address); ok && failure.Streak >= offlineStreakThreshold {
					b.publishAvailability(address, false)
				}
			}
		}
	}
}

// handleCommand executes one device command received over MQTT. The
// device address is carried in the topic, the command in the payload.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	address := mqtt.DeviceIDFromCommandTopic(topic)
	if address == "" {
		return fmt.Errorf("mqttbridge: no device in command topic %q", topic)
	}

	var cmd control.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("mqttbridge: decode command for %s: %w", address, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.dispatcher.Execute(ctx, address, cmd); err != nil {
		return fmt.Errorf("mqttbridge: execute %q on %s: %w", cmd.Action, address, err)
	}
	return nil
}
