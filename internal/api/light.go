package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nerrad567/iris-core/internal/codec"
)

// handleLightState returns the garage light's most recently reported state.
func (s *Server) handleLightState(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), readDeadline)
	defer cancel()

	snap := s.store.Snapshot(codec.DeviceGarageController)
	if snap == nil || snap.Light == nil {
		writeJSON(w, http.StatusOK, lightResponse{State: "unknown"})
		return
	}
	resp := lightResponse{State: snap.Light.State}
	if !snap.Light.Ts.IsZero() {
		ts := snap.Light.Ts.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.LastUpdated = &ts
	}
	writeJSON(w, http.StatusOK, resp)
}

type lightCommandRequest struct {
	State string `json:"state"`
}

// handleLightCommand accepts a light command (on, off, toggle).
func (s *Server) handleLightCommand(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), writeDeadline)
	defer cancel()

	var req lightCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.State != "on" && req.State != "off" && req.State != "toggle" {
		writeBadRequest(w, "state must be one of: on, off, toggle")
		return
	}

	if err := s.dispatcher.Light(req.State); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Accepted: true})
}
