package supervisor

import (
	"context"
	"time"

	"github.com/nerrad567/iris-core/internal/alerts"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/persistence"
	"github.com/nerrad567/iris-core/internal/state"
)

// alertsQueryTimeout bounds the open-incidents lookup StateSource performs
// on every Alerts() call — this runs on the Client Fan-Out's periodic
// alert-check tick and on every new WebSocket connection's snapshot.
const alertsQueryTimeout = 2 * time.Second

// StateSource adapts the State Store, Alert Evaluator, and incident
// repository into the single fanout.Source the Client Fan-Out needs for
// its on-connect snapshot and periodic alert re-check.
type StateSource struct {
	store     *state.Store
	evaluator *alerts.Evaluator
	repo      persistence.Repository
	log       *logging.Logger
}

// NewStateSource builds a StateSource.
func NewStateSource(store *state.Store, evaluator *alerts.Evaluator, repo persistence.Repository, log *logging.Logger) *StateSource {
	return &StateSource{store: store, evaluator: evaluator, repo: repo, log: log}
}

// Devices returns every known device's current snapshot.
func (s *StateSource) Devices() map[string]*state.DeviceState {
	return s.store.SnapshotAll()
}

// Alerts returns the current ActiveAlert set. A failure to load open
// incidents degrades to evaluating without them rather than failing the
// snapshot or alert broadcast outright.
func (s *StateSource) Alerts() []alerts.ActiveAlert {
	ctx, cancel := context.WithTimeout(context.Background(), alertsQueryTimeout)
	defer cancel()

	openIncidents, err := s.repo.ListOpenIncidents(ctx)
	if err != nil {
		s.log.Warn("loading open incidents for fan-out alert check", "error", err)
	}
	return s.evaluator.Evaluate(time.Now(), s.store.SnapshotAll(), openIncidents)
}
