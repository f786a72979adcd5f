package control

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/multiroom"
	"github.com/soniclink/soniclink-core/internal/poller"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// pollCommands are the read endpoints the background poll loop hits;
// the recorder drops them so tests see only control traffic.
var pollCommands = map[string]bool{
	"getPlayerStatus":        true,
	"getStatus":              true,
	"getStatusEx":            true,
	"multiroom:getSlaveList": true,
	"getMetaInfo":            true,
	"EQGetStat":              true,
	"getPresetInfo":          true,
}

// commandRecorder acknowledges every device command and records the
// control ones.
type commandRecorder struct {
	mu       sync.Mutex
	commands []string
}

func (cr *commandRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd := r.URL.Query().Get("command")
		if !pollCommands[cmd] {
			cr.mu.Lock()
			cr.commands = append(cr.commands, cmd)
			cr.mu.Unlock()
		}
		w.Write([]byte("OK"))
	}
}

func (cr *commandRecorder) received() []string {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	out := make([]string, len(cr.commands))
	copy(out, cr.commands)
	return out
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *poller.Manager, *commandRecorder, string) {
	t.Helper()

	recorder := &commandRecorder{}
	srv := httptest.NewServer(recorder.handler())
	t.Cleanup(srv.Close)
	address := srv.Listener.Addr().String()

	registry := fleet.NewRegistry()
	manager := poller.NewManager(poller.ManagerOptions{
		Registry: registry,
		Resolver: multiroom.NewResolver(registry),
		Intervals: poller.Intervals{
			Fast:           time.Second,
			Normal:         5 * time.Second,
			RequestTimeout: time.Second,
			DeviceInfoTTL:  30 * time.Second,
		},
		Logger: nopLogger{},
	})
	t.Cleanup(manager.StopAll)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	manager.Add(ctx, address)

	return NewDispatcher(manager, nopLogger{}), manager, recorder, address
}

func TestExecuteRoutesCommands(t *testing.T) {
	dispatcher, _, recorder, address := newTestDispatcher(t)
	ctx := context.Background()

	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{Action: "play"}, "setPlayerCmd:resume"},
		{Command{Action: "volume", Value: 30}, "setPlayerCmd:vol:30"},
		{Command{Action: "mute", Enabled: true}, "setPlayerCmd:mute:1"},
		{Command{Action: "seek", Value: 90}, "setPlayerCmd:seek:90"},
		{Command{Action: "leave"}, "multiroom:Ungroup"},
		{Command{Action: "kick", Target: "192.168.1.41"}, "multiroom:SlaveKickout:192.168.1.41"},
		{Command{Action: "eq_preset", Target: "Flat"}, "EQLoad:Flat"},
		{Command{Action: "preset", Value: 2}, "MCUKeyShortClick:2"},
	}

	for _, tt := range tests {
		if err := dispatcher.Execute(ctx, address, tt.cmd); err != nil {
			t.Fatalf("Execute(%q) returned error: %v", tt.cmd.Action, err)
		}
	}

	got := recorder.received()
	if len(got) != len(tests) {
		t.Fatalf("device received %d commands, want %d: %v", len(got), len(tests), got)
	}
	for i, tt := range tests {
		if got[i] != tt.want {
			t.Errorf("command %d = %q, want %q", i, got[i], tt.want)
		}
	}
}

func TestExecuteCaseInsensitiveAction(t *testing.T) {
	dispatcher, _, recorder, address := newTestDispatcher(t)

	if err := dispatcher.Execute(context.Background(), address, Command{Action: " PAUSE "}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if got := recorder.received(); len(got) != 1 || got[0] != "setPlayerCmd:pause" {
		t.Errorf("device received %v", got)
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	dispatcher, manager, _, address := newTestDispatcher(t)

	err := dispatcher.Execute(context.Background(), address, Command{Action: "explode"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}

	coordinator, ok := manager.Coordinator(address)
	if !ok {
		t.Fatal("coordinator missing")
	}
	if got := coordinator.CommandFailures(); got != 1 {
		t.Errorf("CommandFailures = %d, want the failure counted", got)
	}
}

func TestExecuteUnknownDevice(t *testing.T) {
	dispatcher, _, _, _ := newTestDispatcher(t)

	err := dispatcher.Execute(context.Background(), "10.0.0.99", Command{Action: "play"})
	if !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("expected ErrUnknownDevice, got %v", err)
	}
}
