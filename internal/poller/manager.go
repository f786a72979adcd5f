package poller

import (
	"context"
	"net/http"
	"sync"

	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/linkplay"
	"github.com/soniclink/soniclink-core/internal/multiroom"
)

// Manager owns one coordinator per polled device: it builds the device
// client, starts the poll goroutine, and tears both down on removal.
type Manager struct {
	registry  *fleet.Registry
	resolver  *multiroom.Resolver
	intervals Intervals
	logger    Logger
	metrics   *Metrics
	history   HistoryWriter
	transport *http.Client

	mu      sync.Mutex
	entries map[string]*managedDevice
	wg      sync.WaitGroup
}

type managedDevice struct {
	coordinator *Coordinator
	client      *linkplay.HTTPClient
	cancel      context.CancelFunc
}

// ManagerOptions bundles the dependencies for NewManager.
type ManagerOptions struct {
	Registry  *fleet.Registry
	Resolver  *multiroom.Resolver
	Intervals Intervals
	Logger    Logger
	Metrics   *Metrics
	History   HistoryWriter

	// Transport overrides the HTTP client used for device calls; tests
	// point it at local fixtures.
	Transport *http.Client
}

// NewManager creates a manager with no devices.
func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		registry:  opts.Registry,
		resolver:  opts.Resolver,
		intervals: opts.Intervals,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		history:   opts.History,
		transport: opts.Transport,
		entries:   make(map[string]*managedDevice),
	}
}

// Add starts polling the device at the given address. Adding an address
// already under management is a no-op.
func (m *Manager) Add(ctx context.Context, address string) {
	if address == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[address]; ok {
		return
	}

	clientOpts := []linkplay.Option{
		linkplay.WithTimeout(m.intervals.RequestTimeout),
		linkplay.WithLogger(m.logger),
	}
	if m.transport != nil {
		clientOpts = append(clientOpts, linkplay.WithHTTPClient(m.transport))
	}
	client := linkplay.NewHTTPClient(address, clientOpts...)

	coordinator := NewCoordinator(CoordinatorOptions{
		Client:    client,
		Registry:  m.registry,
		Resolver:  m.resolver,
		Intervals: m.intervals,
		Logger:    m.logger,
		Metrics:   m.metrics,
		History:   m.history,
	})

	runCtx, cancel := context.WithCancel(ctx)
	m.entries[address] = &managedDevice{
		coordinator: coordinator,
		client:      client,
		cancel:      cancel,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		coordinator.Run(runCtx)
	}()
}

// Remove stops polling the device and drops it from the registry,
// triggering the group departure cascades.
func (m *Manager) Remove(address string) {
	m.mu.Lock()
	entry, ok := m.entries[address]
	if ok {
		delete(m.entries, address)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	entry.cancel()
	m.registry.Unregister(address)
	m.metrics.Forget(address)
	m.logger.Info("device removed from polling", "device", address)
}

// Coordinator returns the coordinator for an address.
func (m *Manager) Coordinator(address string) (*Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[address]
	if !ok {
		return nil, false
	}
	return entry.coordinator, true
}

// Controller returns the device client for an address, for issuing
// control commands.
func (m *Manager) Controller(address string) (*linkplay.HTTPClient, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[address]
	if !ok {
		return nil, false
	}
	return entry.client, true
}

// Addresses returns the addresses currently under management.
func (m *Manager) Addresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for addr := range m.entries {
		out = append(out, addr)
	}
	return out
}

// StopAll cancels every poll loop and waits for them to finish.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for _, entry := range m.entries {
		entry.cancel()
	}
	m.entries = make(map[string]*managedDevice)
	m.mu.Unlock()

	m.wg.Wait()
}
