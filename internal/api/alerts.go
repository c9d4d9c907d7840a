package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/iris-core/internal/alerts"
)

// handleCurrentAlerts returns the current ActiveAlert set, combining the
// Alert Evaluator's in-memory predicates with currently-open incidents.
func (s *Server) handleCurrentAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readDeadline)
	defer cancel()

	if s.evaluator == nil {
		writeJSON(w, http.StatusOK, []alerts.ActiveAlert{})
		return
	}

	openIncidents, err := s.repo.ListOpenIncidents(ctx)
	if err != nil {
		writeInternalError(w, "failed to load open incidents")
		return
	}

	active := s.evaluator.Evaluate(time.Now(), s.store.SnapshotAll(), openIncidents)
	if active == nil {
		active = []alerts.ActiveAlert{}
	}
	writeJSON(w, http.StatusOK, active)
}
