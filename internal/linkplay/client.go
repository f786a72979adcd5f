package linkplay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// API command strings understood by LinkPlay-class firmware. All commands
// travel as a single GET against /httpapi.asp.
const (
	cmdPlayerStatus   = "getPlayerStatus"
	cmdDeviceInfo     = "getStatus"
	cmdExtendedStatus = "getStatusEx"
	cmdSlaveList      = "multiroom:getSlaveList"
	cmdMetaInfo       = "getMetaInfo"
	cmdEQStatus       = "EQGetStat"
	cmdPresetInfo     = "getPresetInfo"
)

// maxResponseBytes caps how much of a device response is read. Device
// payloads are small; anything larger is a misbehaving endpoint.
const maxResponseBytes = 64 << 10

// Client is the read surface of one device. Every call issues at most one
// HTTP request and returns canonical records; errors wrap exactly one of
// the package sentinels.
//
// The master/slave bookkeeping methods record the relationships the role
// detector derives each cycle so resolvers can follow them without a
// device round-trip.
type Client interface {
	Address() string

	Status(ctx context.Context) (*PlayerStatus, error)
	DeviceInfo(ctx context.Context) (*DeviceInfo, error)
	ExtendedStatus(ctx context.Context) (*ExtendedStatus, error)
	Multiroom(ctx context.Context) (*MultiroomInfo, error)
	TrackMetadata(ctx context.Context) (*TrackMetadata, error)
	Equalizer(ctx context.Context) (*EQInfo, error)
	Presets(ctx context.Context) ([]PresetSlot, error)

	SetGroupMaster(address string)
	SetGroupSlaves(addresses []string)
	GroupMaster() string
	GroupSlaves() []string
}

// Logger is the minimal logging surface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// HTTPClient talks to one device over its HTTP API. Safe for concurrent
// use; the group bookkeeping fields are guarded separately from requests.
type HTTPClient struct {
	address string
	http    *http.Client
	logger  Logger

	mu          sync.RWMutex
	groupMaster string
	groupSlaves []string
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTimeout sets the per-request timeout. The context passed to each
// call still bounds the request; this is the ceiling when it does not.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(l Logger) Option {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, used by tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *HTTPClient) {
		if h != nil {
			c.http = h
		}
	}
}

// NewHTTPClient creates a client for the device at the given host address.
func NewHTTPClient(address string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		address: address,
		http:    &http.Client{Timeout: 5 * time.Second},
		logger:  noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the device host address.
func (c *HTTPClient) Address() string {
	return c.address
}

// Status fetches the transport snapshot.
func (c *HTTPClient) Status(ctx context.Context) (*PlayerStatus, error) {
	var raw rawPlayerStatus
	if err := c.fetchJSON(ctx, cmdPlayerStatus, &raw); err != nil {
		return nil, err
	}
	return normalisePlayerStatus(&raw), nil
}

// DeviceInfo fetches the identity record.
func (c *HTTPClient) DeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	var raw rawDeviceInfo
	if err := c.fetchJSON(ctx, cmdDeviceInfo, &raw); err != nil {
		return nil, err
	}
	return normaliseDeviceInfo(&raw)
}

// ExtendedStatus fetches the optional diagnostics record.
func (c *HTTPClient) ExtendedStatus(ctx context.Context) (*ExtendedStatus, error) {
	var raw rawExtendedStatus
	if err := c.fetchJSON(ctx, cmdExtendedStatus, &raw); err != nil {
		return nil, err
	}
	return normaliseExtendedStatus(&raw), nil
}

// Multiroom fetches the slave listing this device reports as a master.
func (c *HTTPClient) Multiroom(ctx context.Context) (*MultiroomInfo, error) {
	var raw rawMultiroomInfo
	if err := c.fetchJSON(ctx, cmdSlaveList, &raw); err != nil {
		return nil, err
	}
	return normaliseMultiroomInfo(&raw), nil
}

// TrackMetadata fetches the optional now-playing metadata.
func (c *HTTPClient) TrackMetadata(ctx context.Context) (*TrackMetadata, error) {
	var raw rawMetaInfo
	if err := c.fetchJSON(ctx, cmdMetaInfo, &raw); err != nil {
		return nil, err
	}
	return normaliseTrackMetadata(&raw)
}

// Equalizer fetches the optional equaliser state.
func (c *HTTPClient) Equalizer(ctx context.Context) (*EQInfo, error) {
	var raw rawEQStatus
	if err := c.fetchJSON(ctx, cmdEQStatus, &raw); err != nil {
		return nil, err
	}
	return normaliseEQInfo(&raw), nil
}

// Presets fetches the optional hardware preset listing.
func (c *HTTPClient) Presets(ctx context.Context) ([]PresetSlot, error) {
	var raw rawPresetInfo
	if err := c.fetchJSON(ctx, cmdPresetInfo, &raw); err != nil {
		return nil, err
	}
	return normalisePresets(&raw), nil
}

// SetGroupMaster records the master address this device currently follows.
func (c *HTTPClient) SetGroupMaster(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupMaster = address
}

// SetGroupSlaves records the follower addresses this device currently leads.
func (c *HTTPClient) SetGroupSlaves(addresses []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addresses == nil {
		c.groupSlaves = nil
		return
	}
	c.groupSlaves = make([]string, len(addresses))
	copy(c.groupSlaves, addresses)
}

// GroupMaster returns the recorded master address, empty when ungrouped.
func (c *HTTPClient) GroupMaster() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.groupMaster
}

// GroupSlaves returns a copy of the recorded follower addresses.
func (c *HTTPClient) GroupSlaves() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.groupSlaves == nil {
		return nil
	}
	out := make([]string, len(c.groupSlaves))
	copy(out, c.groupSlaves)
	return out
}

// command issues a raw API command and returns the response body. The
// body "OK" acknowledges write commands; read commands return JSON.
func (c *HTTPClient) command(ctx context.Context, command string) ([]byte, error) {
	endpoint := fmt.Sprintf("http://%s/httpapi.asp?command=%s", c.address, url.QueryEscape(command))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransient, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransient, c.address, command, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, command)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: http %d", ErrTransient, command, resp.StatusCode)
	}
	if isUnsupportedBody(body) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, command)
	}
	return body, nil
}

// fetchJSON issues a command and decodes its JSON response into out.
func (c *HTTPClient) fetchJSON(ctx context.Context, command string, out any) error {
	body, err := c.command(ctx, command)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Debug("undecodable device response",
			"device", c.address, "command", command, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrMalformed, command, err)
	}
	return nil
}

// isUnsupportedBody recognises the plain-text refusals firmware returns
// for endpoints it does not implement.
func isUnsupportedBody(body []byte) bool {
	text := strings.ToLower(strings.TrimSpace(string(body)))
	switch text {
	case "unknown command", "unknown command.", "failed", "not support":
		return true
	}
	return false
}
