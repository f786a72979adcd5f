package control

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soniclink/soniclink-core/internal/linkplay"
	"github.com/soniclink/soniclink-core/internal/poller"
)

// Command is one device control request as it arrives from the HTTP API
// or the MQTT command topic.
type Command struct {
	Action string `json:"action"`

	// Volume for "volume"; preset number for "preset"; seek position in
	// seconds for "seek".
	Value int `json:"value,omitempty"`

	// Muted for "mute"; equaliser on/off for "eq_enable".
	Enabled bool `json:"enabled,omitempty"`

	// Target master address for "join"; slave address for "kick";
	// equaliser preset name for "eq_preset".
	Target string `json:"target,omitempty"`
}

// Logger is the minimal logging surface the dispatcher needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Dispatcher routes control commands to the managed device clients and
// feeds the outcome back into the polling schedule: every accepted
// command forces a fast poll, every failed one is counted against the
// device.
type Dispatcher struct {
	manager *poller.Manager
	logger  Logger
}

// NewDispatcher creates a dispatcher over the poll manager.
func NewDispatcher(manager *poller.Manager, logger Logger) *Dispatcher {
	return &Dispatcher{manager: manager, logger: logger}
}

// Execute runs one command against the device at the given address.
func (d *Dispatcher) Execute(ctx context.Context, address string, cmd Command) error {
	client, ok := d.manager.Controller(address)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, address)
	}
	coordinator, _ := d.manager.Coordinator(address)

	err := d.run(ctx, client, cmd)
	if coordinator != nil {
		if err != nil {
			coordinator.RecordCommandFailure()
		} else {
			coordinator.RecordUserCommand()
		}
	}

	if err != nil {
		d.logger.Warn("device command failed",
			"device", address, "action", cmd.Action, "error", err)
		return err
	}
	d.logger.Info("device command executed", "device", address, "action", cmd.Action)
	return nil
}

func (d *Dispatcher) run(ctx context.Context, client *linkplay.HTTPClient, cmd Command) error {
	switch strings.ToLower(strings.TrimSpace(cmd.Action)) {
	case "play":
		return client.Play(ctx)
	case "pause":
		return client.Pause(ctx)
	case "stop":
		return client.Stop(ctx)
	case "next":
		return client.Next(ctx)
	case "previous":
		return client.Previous(ctx)
	case "seek":
		return client.Seek(ctx, secondsToDuration(cmd.Value))
	case "volume":
		return client.SetVolume(ctx, cmd.Value)
	case "mute":
		return client.SetMute(ctx, cmd.Enabled)
	case "join":
		return client.JoinGroup(ctx, cmd.Target)
	case "leave":
		return client.LeaveGroup(ctx)
	case "kick":
		return client.KickSlave(ctx, cmd.Target)
	case "eq_preset":
		return client.SetEqualizerPreset(ctx, cmd.Target)
	case "eq_enable":
		return client.SetEqualizerEnabled(ctx, cmd.Enabled)
	case "preset":
		return client.PlayPreset(ctx, cmd.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
