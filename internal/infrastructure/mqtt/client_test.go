package mqtt

import (
	"errors"
	"strings"
	"testing"
)

// offlineClient builds a client that never connected, for exercising the
// validation paths that run before any network traffic.
func offlineClient() *Client {
	return &Client{subscriptions: make(map[string]subscription)}
}

func TestTopicBuilders(t *testing.T) {
	var topics Topics

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"system status", topics.SystemStatus(), "soniclink/system/status"},
		{"device state", topics.DeviceState("192.168.1.10"), "soniclink/state/192.168.1.10"},
		{"availability", topics.DeviceAvailability("192.168.1.10"), "soniclink/availability/192.168.1.10"},
		{"command", topics.DeviceCommand("192.168.1.10"), "soniclink/command/192.168.1.10"},
		{"command wildcard", topics.AllDeviceCommands(), "soniclink/command/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDeviceIDFromCommandTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"soniclink/command/192.168.1.10", "192.168.1.10"},
		{"soniclink/command/", ""},
		{"soniclink/state/192.168.1.10", ""},
		{"other/command/192.168.1.10", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DeviceIDFromCommandTopic(tt.topic); got != tt.want {
			t.Errorf("DeviceIDFromCommandTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestPublishValidation(t *testing.T) {
	c := offlineClient()

	if err := c.Publish("", []byte("x"), 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("soniclink/state/a", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3: got %v, want ErrInvalidQoS", err)
	}

	huge := []byte(strings.Repeat("x", maxPayloadSize+1))
	if err := c.Publish("soniclink/state/a", huge, 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload: got %v, want ErrPublishFailed", err)
	}

	if err := c.Publish("soniclink/state/a", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected publish: got %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := offlineClient()
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("soniclink/command/+", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3: got %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("soniclink/command/+", 0, nil); err == nil {
		t.Error("nil handler should be rejected")
	}
	if err := c.Subscribe("soniclink/command/+", 0, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected subscribe: got %v, want ErrNotConnected", err)
	}
}

func TestIsConnectedInitialState(t *testing.T) {
	if offlineClient().IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
}
