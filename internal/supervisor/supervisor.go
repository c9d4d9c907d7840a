// Package supervisor implements the Lifecycle Supervisor (C10): it starts
// every long-lived component in the order the system needs to be useful
// (persistence before state, state before the bus, the bus before alerts
// and the outward-facing surfaces), and tears them down in reverse order
// with bounded drains so in-flight work is not dropped on the floor.
package supervisor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/iris-core/internal/alerts"
	"github.com/nerrad567/iris-core/internal/api"
	"github.com/nerrad567/iris-core/internal/bus"
	"github.com/nerrad567/iris-core/internal/fanout"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/ota"
	"github.com/nerrad567/iris-core/internal/persistence"
	"github.com/nerrad567/iris-core/internal/state"
)

// systemEventTimeout bounds the best-effort RecordSystemEvent calls this
// package makes on startup and shutdown; a slow or unavailable database must
// never block the lifecycle transition itself.
const systemEventTimeout = 2 * time.Second

// fanoutDrainTimeout and persistenceDrainTimeout are the shutdown drain
// bounds named in spec §4.10.
const (
	fanoutDrainTimeout      = 2 * time.Second
	persistenceDrainTimeout = 5 * time.Second
)

// busRestartDelay is how long the supervisor waits before retrying a
// Bus Adapter that failed to start (e.g. the broker rejected a Subscribe
// call). The underlying mqtt.Client already auto-reconnects at the
// transport level; this loop only covers the adapter's own startup path.
const busRestartDelay = 5 * time.Second

// Deps holds every long-lived component the supervisor coordinates. All
// fields are required except Orchestrator, which may be nil when OTA is
// not configured, and Repo, which may be nil, in which case no system
// events are recorded.
type Deps struct {
	Store        *state.Store
	Writer       *persistence.Writer
	Repo         persistence.Repository
	Bus          *bus.Adapter
	Evaluator    *alerts.Evaluator
	Orchestrator *ota.Orchestrator
	Fanout       *fanout.Hub
	API          *api.Server

	AlertsCheckInterval  time.Duration
	OfflineSweepInterval time.Duration
	OfflineTimeout       time.Duration

	Log *logging.Logger
}

// Supervisor runs and coordinates the shutdown of every component in Deps.
type Supervisor struct {
	deps Deps
}

// New builds a Supervisor over the given component set.
func New(deps Deps) *Supervisor {
	return &Supervisor{deps: deps}
}

// Run starts every component in startup order and blocks until ctx is
// cancelled, then shuts everything down in reverse order. It returns the
// first error from any component's goroutine, if any (context
// cancellation itself is not treated as an error).
func (s *Supervisor) Run(ctx context.Context) error {
	d := s.deps
	g, gctx := errgroup.WithContext(ctx)

	s.recordSystemEvent(ctx, "server_started", "")

	// Persistence Writer — started first so it is ready to receive the
	// very first StateChange the State Store ever emits.
	g.Go(func() error {
		if err := d.Writer.Run(gctx, d.Store); err != nil && gctx.Err() == nil {
			d.Log.Error("persistence writer exited", "error", err)
			return err
		}
		return nil
	})

	// State Store has no Run loop of its own (C2's invariant: no I/O on
	// the write path) but its offline sweeper is a long-lived task.
	sweepInterval := d.OfflineSweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	offlineTimeout := d.OfflineTimeout
	if offlineTimeout <= 0 {
		offlineTimeout = 90 * time.Second
	}
	g.Go(func() error {
		state.RunOfflineSweeper(gctx, d.Store, sweepInterval, offlineTimeout)
		return nil
	})

	// Bus Adapter — restarted on its own if Start fails, without
	// affecting anything already running.
	g.Go(func() error {
		return s.runBus(gctx)
	})

	// Alert Evaluator and OTA Orchestrator have no Run loop; they are fed
	// via OnStateChange from a dedicated store subscription.
	g.Go(func() error {
		s.feedStateChangeSubscribers(gctx)
		return nil
	})

	// Query Surface + Client Fan-Out.
	alertsInterval := d.AlertsCheckInterval
	if alertsInterval <= 0 {
		alertsInterval = 5 * time.Second
	}
	g.Go(func() error {
		d.Fanout.Run(gctx, d.Store, alertsInterval, fanoutDrainTimeout)
		return nil
	})

	if d.Orchestrator != nil {
		if err := d.Orchestrator.StartScheduler(); err != nil {
			d.Log.Error("ota scheduler failed to start", "error", err)
			return err
		}
	}

	if err := d.API.Start(gctx); err != nil {
		d.Log.Error("API server failed to start", "error", err)
		return err
	}

	<-gctx.Done()
	s.shutdown()

	// The Fan-Out hub bounds its own drain internally (fanoutDrainTimeout);
	// the Persistence Writer's shutdown flush does not carry an explicit
	// bound, so the overall wait is capped here instead of blocking
	// indefinitely on a stalled store.
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	case <-time.After(persistenceDrainTimeout + time.Second):
		d.Log.Warn("shutdown drain timed out, exiting anyway")
		return nil
	}
}

// runBus starts the Bus Adapter and retries on startup failure until ctx
// is cancelled. A successful Start returns immediately — message handling
// and outbound draining continue in background goroutines the Adapter
// itself owns — so this loop only re-fires on failure, not on a timer.
func (s *Supervisor) runBus(ctx context.Context) error {
	for {
		if err := s.deps.Bus.Start(ctx); err != nil {
			s.deps.Log.Error("bus adapter failed to start, retrying", "error", err, "retry_in", busRestartDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(busRestartDelay):
				continue
			}
		}
		return nil
	}
}

// feedStateChangeSubscribers drives every component that reacts to state
// changes but owns no Run loop of its own: the Alert Evaluator's
// freezer-streak tracker and the OTA Orchestrator's attempt tracker.
func (s *Supervisor) feedStateChangeSubscribers(ctx context.Context) {
	ch, unsubscribe := s.deps.Store.Subscribe(256)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}
			if s.deps.Evaluator != nil {
				s.deps.Evaluator.OnStateChange(c)
			}
			if s.deps.Orchestrator != nil {
				s.deps.Orchestrator.OnStateChange(c)
			}
		}
	}
}

// shutdown tears down components with no Run-loop lifetime tied to ctx:
// the OTA scheduler, the API server (graceful HTTP shutdown), and the Bus
// Adapter (drains its outbound queue). Everything else stops on its own
// once gctx is done.
func (s *Supervisor) shutdown() {
	d := s.deps
	s.recordSystemEvent(context.Background(), "server_stopped", "")
	if d.Orchestrator != nil {
		d.Orchestrator.StopScheduler()
	}
	if d.API != nil {
		if err := d.API.Close(); err != nil {
			d.Log.Error("API server shutdown error", "error", err)
		}
	}
	if d.Bus != nil {
		d.Bus.Stop()
	}
}

// recordSystemEvent writes a best-effort server-lifecycle audit row. It is a
// no-op when Deps.Repo was not supplied, and never returns an error to its
// caller — a database hiccup here must not affect startup or shutdown.
func (s *Supervisor) recordSystemEvent(ctx context.Context, kind, detail string) {
	d := s.deps
	if d.Repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, systemEventTimeout)
	defer cancel()
	if err := d.Repo.RecordSystemEvent(ctx, kind, "", detail, time.Now()); err != nil {
		d.Log.Warn("recording system event", "kind", kind, "error", err)
	}
}
