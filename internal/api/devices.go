package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iris-core/internal/bus"
	"github.com/nerrad567/iris-core/internal/ota"
	"github.com/nerrad567/iris-core/internal/state"
)

func toDeviceInfo(d *state.DeviceState) deviceInfo {
	info := deviceInfo{
		DeviceID:      d.DeviceID,
		Status:        string(d.Status),
		Version:       d.Version,
		LastErrorCode: d.LastErrorCode,
		Health:        d.Health,
	}
	if !d.LastSeen.IsZero() {
		info.LastSeen = d.LastSeen.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return info
}

// handleListDevices returns every known device's registry view.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), readDeadline)
	defer cancel()

	devices := s.store.SnapshotAll()
	out := make(map[string]deviceInfo, len(devices))
	for id, d := range devices {
		out[id] = toDeviceInfo(d)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetDevice returns one device's registry view.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), readDeadline)
	defer cancel()

	deviceID := chi.URLParam(r, "deviceID")
	snap := s.store.Snapshot(deviceID)
	if snap == nil {
		writeNotFound(w, "unknown device")
		return
	}
	writeJSON(w, http.StatusOK, toDeviceInfo(snap))
}

// handleRebootDevice asks a device to restart.
func (s *Server) handleRebootDevice(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), writeDeadline)
	defer cancel()

	deviceID := chi.URLParam(r, "deviceID")
	if err := s.dispatcher.Reboot(deviceID); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Accepted: true})
}

type otaTriggerRequest struct {
	Ref string `json:"ref"`
}

// handleTriggerOTA builds and publishes an OTA manifest for a device.
// Wired directly to the OTA Orchestrator (the Command Dispatcher has no
// update operation), so a successful publish is recorded in
// the orchestrator's attempt tracker for OnStateChange to later mark
// failed if the device reports needs_help.
func (s *Server) handleTriggerOTA(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), writeDeadline)
	defer cancel()

	if s.orchestrator == nil {
		writeUnavailable(w, "OTA is not configured")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	var req otaTriggerRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
	}

	if err := s.orchestrator.TriggerUpdate(deviceID, req.Ref); err != nil {
		writeOTAError(w, err)
		return
	}

	manifest, err := s.orchestrator.BuildManifest(deviceID, req.Ref)
	if err != nil {
		// The update was already published; the manifest preview is a
		// best-effort echo, so a failure here does not flip accepted.
		s.log.Warn("rebuilding manifest for OTA trigger response", "device_id", deviceID, "error", err)
		writeJSON(w, http.StatusOK, acceptedResponse{Accepted: true})
		return
	}
	var parsed any
	_ = json.Unmarshal(manifest, &parsed)
	writeJSON(w, http.StatusOK, otaTriggerResponse{Accepted: true, Manifest: parsed})
}

// handlePreviewOTA returns the manifest that trigger OTA would publish,
// without publishing it.
func (s *Server) handlePreviewOTA(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), writeDeadline)
	defer cancel()

	if s.orchestrator == nil {
		writeUnavailable(w, "OTA is not configured")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	ref := r.URL.Query().Get("ref")

	manifest, err := s.orchestrator.BuildManifest(deviceID, ref)
	if err != nil {
		writeOTAError(w, err)
		return
	}
	var parsed any
	if err := json.Unmarshal(manifest, &parsed); err != nil {
		writeInternalError(w, "failed to decode manifest")
		return
	}
	writeJSON(w, http.StatusOK, parsed)
}

func writeOTAError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ota.ErrUnknownDevice):
		writeNotFound(w, err.Error())
	case errors.Is(err, ota.ErrInvalidRef), errors.Is(err, ota.ErrSourceRootNotConfigured):
		writeBadRequest(w, err.Error())
	case errors.Is(err, bus.ErrNotRunning):
		writeUnavailable(w, "bus is unavailable, try again shortly")
	default:
		writeInternalError(w, "failed to build OTA manifest")
	}
}
