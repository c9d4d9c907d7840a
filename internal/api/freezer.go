package api

import (
	"context"
	"net/http"

	"github.com/nerrad567/iris-core/internal/codec"
)

// handleFreezerState returns the most recent freezer temperature reading.
// The garage controller's Freezer temperature
// (home/garage/freezer/temperature) is used when present; otherwise the
// house monitor's Freezer section, which comes from its consolidated status
// and whose temperature may be null. Standalone probe readings are separate
// metric series and are not used here.
func (s *Server) handleFreezerState(w http.ResponseWriter, r *http.Request) {
	_, cancel := context.WithTimeout(r.Context(), readDeadline)
	defer cancel()

	if snap := s.store.Snapshot(codec.DeviceGarageController); snap != nil && snap.Freezer != nil && snap.Freezer.TemperatureF != nil {
		writeJSON(w, http.StatusOK, freezerResponse{TemperatureF: snap.Freezer.TemperatureF})
		return
	}
	if snap := s.store.Snapshot(codec.DeviceHouseMonitor); snap != nil && snap.Freezer != nil {
		writeJSON(w, http.StatusOK, freezerResponse{TemperatureF: snap.Freezer.TemperatureF})
		return
	}
	writeJSON(w, http.StatusOK, freezerResponse{})
}
