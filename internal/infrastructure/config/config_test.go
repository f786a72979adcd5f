package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8090
polling:
  fast_interval: 1
  normal_interval: 5
devices:
  - name: "Kitchen"
    host: "192.168.1.40"
  - name: "Lounge"
    host: "192.168.1.41"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}
	if cfg.Devices[0].Host != "192.168.1.40" {
		t.Errorf("Devices[0].Host = %q, want %q", cfg.Devices[0].Host, "192.168.1.40")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  path: /tmp/t.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Polling.FastInterval != 1 {
		t.Errorf("Polling.FastInterval = %d, want 1", cfg.Polling.FastInterval)
	}
	if cfg.Polling.NormalInterval != 5 {
		t.Errorf("Polling.NormalInterval = %d, want 5", cfg.Polling.NormalInterval)
	}
	if cfg.Polling.DeviceInfoTTL != 30 {
		t.Errorf("Polling.DeviceInfoTTL = %d, want 30", cfg.Polling.DeviceInfoTTL)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want 8090", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty database path",
			content: "database:\n  path: \"\"\n",
			wantErr: "database.path",
		},
		{
			name:    "invalid qos",
			content: "database:\n  path: /tmp/t.db\nmqtt:\n  qos: 3\n",
			wantErr: "mqtt.qos",
		},
		{
			name:    "fast interval above normal",
			content: "database:\n  path: /tmp/t.db\npolling:\n  fast_interval: 10\n  normal_interval: 5\n",
			wantErr: "polling.normal_interval",
		},
		{
			name:    "device missing host",
			content: "database:\n  path: /tmp/t.db\ndevices:\n  - name: NoHost\n",
			wantErr: "devices[0].host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SONICLINK_DATABASE_PATH", "/env/override.db")
	t.Setenv("SONICLINK_MQTT_HOST", "broker.local")
	t.Setenv("SONICLINK_API_PORT", "9999")

	cfg, err := Load(writeConfig(t, "database:\n  path: /tmp/t.db\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/env/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", cfg.API.Port)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.Polling.GetFastInterval().Seconds(); got != 1 {
		t.Errorf("GetFastInterval() = %vs, want 1s", got)
	}
	if got := cfg.Polling.GetNormalInterval().Seconds(); got != 5 {
		t.Errorf("GetNormalInterval() = %vs, want 5s", got)
	}
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %vs, want 30s", got)
	}
}
