package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/iris-core/internal/bus"
	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/command"
)

// handleDoorState returns the garage door's most recently reported state.
func (s *Server) handleDoorState(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), readDeadline)
	defer cancel()

	snap := s.store.Snapshot(codec.DeviceGarageController)
	if snap == nil || snap.Door == nil {
		writeJSON(w, http.StatusOK, doorResponse{State: "unknown"})
		return
	}
	writeJSON(w, http.StatusOK, doorResponse{State: snap.Door.State})
}

type doorCommandRequest struct {
	Command string `json:"command"`
}

// handleDoorCommand accepts a door command (open, close, toggle) and hands
// it to the Command Dispatcher. Accepted means "queued for publish", not
// "the door moved" — the device's own status topic reports the outcome.
func (s *Server) handleDoorCommand(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), writeDeadline)
	defer cancel()

	var req doorCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Command != "open" && req.Command != "close" && req.Command != "toggle" {
		writeBadRequest(w, "command must be one of: open, close, toggle")
		return
	}

	if err := s.dispatcher.Door(req.Command); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acceptedResponse{Accepted: true})
}

// writeCommandError maps a Command Dispatcher error to the appropriate
// HTTP response, per the error taxonomy: unknown devices are a client
// error, bus unavailability and not-yet-started are surfaced as 503 so
// callers can retry rather than treat it as a permanent failure.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, command.ErrUnknownDevice):
		writeNotFound(w, err.Error())
	case errors.Is(err, command.ErrBusUnavailable), errors.Is(err, bus.ErrNotRunning):
		writeUnavailable(w, "bus is unavailable, try again shortly")
	default:
		writeInternalError(w, "failed to dispatch command")
	}
}
