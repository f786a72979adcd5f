package linkplay

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Narrow control surfaces. Consumers declare only the capability they
// exercise; *HTTPClient satisfies all of them.

// PlaybackControl drives the transport of one device.
type PlaybackControl interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error
	SetVolume(ctx context.Context, volume int) error
	SetMute(ctx context.Context, muted bool) error
}

// GroupControl manages multiroom membership of one device.
type GroupControl interface {
	JoinGroup(ctx context.Context, masterAddress string) error
	LeaveGroup(ctx context.Context) error
	KickSlave(ctx context.Context, slaveAddress string) error
}

// EqualizerControl adjusts the equaliser of one device.
type EqualizerControl interface {
	SetEqualizerPreset(ctx context.Context, preset string) error
	SetEqualizerEnabled(ctx context.Context, enabled bool) error
}

// PresetControl triggers hardware presets on one device.
type PresetControl interface {
	PlayPreset(ctx context.Context, number int) error
}

// maxVolume is the device volume ceiling.
const maxVolume = 100

// Play resumes playback.
func (c *HTTPClient) Play(ctx context.Context) error {
	return c.ack(ctx, "setPlayerCmd:resume")
}

// Pause pauses playback.
func (c *HTTPClient) Pause(ctx context.Context) error {
	return c.ack(ctx, "setPlayerCmd:pause")
}

// Stop stops playback.
func (c *HTTPClient) Stop(ctx context.Context) error {
	return c.ack(ctx, "setPlayerCmd:stop")
}

// Next skips to the next track.
func (c *HTTPClient) Next(ctx context.Context) error {
	return c.ack(ctx, "setPlayerCmd:next")
}

// Previous skips to the previous track.
func (c *HTTPClient) Previous(ctx context.Context) error {
	return c.ack(ctx, "setPlayerCmd:prev")
}

// Seek moves playback to the given position. Devices seek in whole
// seconds.
func (c *HTTPClient) Seek(ctx context.Context, position time.Duration) error {
	if position < 0 {
		return fmt.Errorf("%w: negative seek position", ErrMalformed)
	}
	return c.ack(ctx, fmt.Sprintf("setPlayerCmd:seek:%d", int(position.Seconds())))
}

// SetVolume sets the device-local volume, clamped to 0..100.
func (c *HTTPClient) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 {
		volume = 0
	}
	if volume > maxVolume {
		volume = maxVolume
	}
	return c.ack(ctx, fmt.Sprintf("setPlayerCmd:vol:%d", volume))
}

// SetMute sets the device-local mute state.
func (c *HTTPClient) SetMute(ctx context.Context, muted bool) error {
	flag := 0
	if muted {
		flag = 1
	}
	return c.ack(ctx, fmt.Sprintf("setPlayerCmd:mute:%d", flag))
}

// JoinGroup attaches this device to the group led by masterAddress.
func (c *HTTPClient) JoinGroup(ctx context.Context, masterAddress string) error {
	if masterAddress == "" {
		return fmt.Errorf("%w: empty master address", ErrMalformed)
	}
	cmd := fmt.Sprintf("ConnectMasterAp:JoinGroupMaster:eth%s:wifi0.0.0.0", masterAddress)
	return c.ack(ctx, cmd)
}

// LeaveGroup detaches this device from its group. Issued on a master it
// dissolves the whole group.
func (c *HTTPClient) LeaveGroup(ctx context.Context) error {
	return c.ack(ctx, "multiroom:Ungroup")
}

// KickSlave removes one follower from the group this device leads.
func (c *HTTPClient) KickSlave(ctx context.Context, slaveAddress string) error {
	if slaveAddress == "" {
		return fmt.Errorf("%w: empty slave address", ErrMalformed)
	}
	return c.ack(ctx, "multiroom:SlaveKickout:"+slaveAddress)
}

// SetEqualizerPreset loads a named equaliser preset.
func (c *HTTPClient) SetEqualizerPreset(ctx context.Context, preset string) error {
	if preset == "" {
		return fmt.Errorf("%w: empty equaliser preset", ErrMalformed)
	}
	return c.ack(ctx, "EQLoad:"+preset)
}

// SetEqualizerEnabled switches the equaliser on or off.
func (c *HTTPClient) SetEqualizerEnabled(ctx context.Context, enabled bool) error {
	if enabled {
		return c.ack(ctx, "EQOn")
	}
	return c.ack(ctx, "EQOff")
}

// PlayPreset triggers the numbered hardware preset.
func (c *HTTPClient) PlayPreset(ctx context.Context, number int) error {
	if number < 1 {
		return fmt.Errorf("%w: preset number must be positive", ErrMalformed)
	}
	return c.ack(ctx, fmt.Sprintf("MCUKeyShortClick:%d", number))
}

// ack issues a write command and verifies the firmware acknowledgement.
func (c *HTTPClient) ack(ctx context.Context, command string) error {
	body, err := c.command(ctx, command)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(string(body)), "OK") {
		c.logger.Warn("unexpected command acknowledgement",
			"device", c.address, "command", command, "body", strings.TrimSpace(string(body)))
		return fmt.Errorf("%w: %s: unexpected acknowledgement", ErrTransient, command)
	}
	return nil
}
