package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePlaybackSample records one polling cycle's playback view of a device.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Stable device identifier
//   - role: Current group role ("solo", "master", "slave")
//   - source: Current playback source label
//   - playing: Whether the device is actively playing
//   - positionSec: Playback position in seconds
//   - durationSec: Track duration in seconds (0 when unknown)
func (c *Client) WritePlaybackSample(deviceID, role, source string, playing bool, positionSec, durationSec float64) {
	if !c.IsConnected() {
		return
	}

	playingVal := 0
	if playing {
		playingVal = 1
	}

	point := write.NewPoint(
		"playback",
		map[string]string{
			"device_id": deviceID,
			"role":      role,
			"source":    source,
		},
		map[string]interface{}{
			"playing":      playingVal,
			"position_sec": positionSec,
			"duration_sec": durationSec,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePollHealth records the health of a device's polling loop.
//
// Used to chart backoff behaviour and flaky devices over time.
//
// Parameters:
//   - deviceID: Stable device identifier
//   - intervalSec: The polling interval chosen for the next cycle
//   - failures: Consecutive mandatory-call failures (0 when healthy)
func (c *Client) WritePollHealth(deviceID string, intervalSec float64, failures int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_health",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"interval_sec": intervalSec,
			"failures":     failures,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
