package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soniclink/soniclink-core/internal/control"
	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/linkplay"
)

// stateEnvelope is the live-state response for one device: the latest
// published snapshot plus poll health and discovered capabilities.
type stateEnvelope struct {
	Snapshot        *fleet.Snapshot    `json:"snapshot"`
	LastFailure     *fleet.PollFailure `json:"last_failure,omitempty"`
	Capabilities    map[string]string  `json:"capabilities,omitempty"`
	CommandFailures int                `json:"command_failures"`
}

// buildEnvelope assembles the live-state view for one address.
func (s *Server) buildEnvelope(address string) stateEnvelope {
	env := stateEnvelope{}
	if snap, ok := s.registry.Snapshot(address); ok {
		env.Snapshot = snap
	}
	if failure, ok := s.registry.LastFailure(address); ok {
		env.LastFailure = failure
	}
	if coordinator, ok := s.manager.Coordinator(address); ok {
		caps := make(map[string]string)
		for feature, state := range coordinator.Capabilities() {
			caps[string(feature)] = state.String()
		}
		env.Capabilities = caps
		env.CommandFailures = coordinator.CommandFailures()
	}
	return env
}

// handleFleetState returns the live state of every polled device.
func (s *Server) handleFleetState(w http.ResponseWriter, _ *http.Request) {
	addresses := s.registry.Addresses()
	states := make(map[string]stateEnvelope, len(addresses))
	for _, address := range addresses {
		states[address] = s.buildEnvelope(address)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"states": states,
		"count":  len(states),
	})
}

// handleDeviceState returns the live state of one directory device.
func (s *Server) handleDeviceState(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.buildEnvelope(device.Host))
}

// handleDeviceCommand executes a control command against one device.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var cmd control.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.dispatcher.Execute(r.Context(), device.Host, cmd); err != nil {
		switch {
		case errors.Is(err, control.ErrUnknownAction), linkplay.IsMalformed(err):
			writeBadRequest(w, err.Error())
		case errors.Is(err, control.ErrUnknownDevice):
			writeNotFound(w, "device not under management")
		default:
			writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted", "action": cmd.Action})
}

// handleClearFailures resets the device's command-failure counter.
func (s *Server) handleClearFailures(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	coordinator, ok := s.manager.Coordinator(device.Host)
	if !ok {
		writeNotFound(w, "device not under management")
		return
	}
	coordinator.ClearCommandFailures()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
