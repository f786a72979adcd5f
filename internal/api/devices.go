package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/soniclink/soniclink-core/internal/fleet"
)

// deviceRequest is the create/update payload for a directory entry.
type deviceRequest struct {
	Name string `json:"name"`
	Host string `json:"host"`
	MAC  string `json:"mac"`
}

// handleListDevices returns the device directory.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.repo.List(r.Context())
	if err != nil {
		s.logger.Error("list devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleCreateDevice adds a directory entry and starts polling it.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Host = strings.TrimSpace(req.Host)
	if req.Host == "" {
		writeBadRequest(w, "host is required")
		return
	}

	device := &fleet.Device{Name: req.Name, Host: req.Host, MAC: req.MAC}
	if err := s.repo.Create(r.Context(), device); err != nil {
		if errors.Is(err, fleet.ErrInvalidDevice) {
			writeBadRequest(w, err.Error())
			return
		}
		writeError(w, http.StatusConflict, ErrCodeConflict, "device host already registered")
		return
	}

	s.manager.Add(s.pollContext(), device.Host)
	writeJSON(w, http.StatusCreated, device)
}

// handleGetDevice returns one directory entry.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleUpdateDevice patches a directory entry. A host change moves the
// poller to the new address.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	oldHost := device.Host
	if req.Name != "" {
		device.Name = req.Name
	}
	if req.MAC != "" {
		device.MAC = req.MAC
	}
	if host := strings.TrimSpace(req.Host); host != "" {
		device.Host = host
	}

	if err := s.repo.Update(r.Context(), device); err != nil {
		s.logger.Error("update device failed", "id", device.ID, "error", err)
		writeInternalError(w, "failed to update device")
		return
	}

	if device.Host != oldHost {
		s.manager.Remove(oldHost)
		s.manager.Add(s.pollContext(), device.Host)
	}
	writeJSON(w, http.StatusOK, device)
}

// handleDeleteDevice removes a directory entry and stops polling it.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	if err := s.repo.Delete(r.Context(), device.ID); err != nil {
		s.logger.Error("delete device failed", "id", device.ID, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	s.manager.Remove(device.Host)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": device.ID})
}

// lookupDevice resolves the {id} route parameter, writing the error
// response itself when the device does not exist.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*fleet.Device, bool) {
	id := chi.URLParam(r, "id")
	device, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, fleet.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
		} else {
			s.logger.Error("get device failed", "id", id, "error", err)
			writeInternalError(w, "failed to load device")
		}
		return nil, false
	}
	return device, true
}

// pollContext returns the context new poll loops run under.
func (s *Server) pollContext() context.Context {
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}
