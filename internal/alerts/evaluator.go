package alerts

import (
	"sync"
	"time"

	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/persistence"
	"github.com/nerrad567/iris-core/internal/state"
)

// Evaluator produces the ActiveAlert set (C5).
type Evaluator struct {
	cfg config.AlertsConfig

	mu            sync.Mutex
	freezerStreak map[string]int
}

// New builds an Evaluator with the given thresholds.
func New(cfg config.AlertsConfig) *Evaluator {
	return &Evaluator{cfg: cfg, freezerStreak: make(map[string]int)}
}

// OnStateChange feeds the freezer-temperature streak tracker. It should be
// called for every StateChange the Bus Adapter produces, ahead of or
// alongside Evaluate.
func (e *Evaluator) OnStateChange(c state.StateChange) {
	if c.Kind != state.ChangeFreezer && c.Kind != state.ChangeMetric {
		return
	}
	temp, ok := freezerTemp(c)
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if temp > e.cfg.FreezerTempCriticalF {
		e.freezerStreak[c.DeviceID]++
	} else {
		e.freezerStreak[c.DeviceID] = 0
	}
}

func freezerTemp(c state.StateChange) (float64, bool) {
	switch d := c.Detail.(type) {
	case *codec.TelemetryReadingPayload:
		if d.Metric == codec.MetricGarageFreezerTemperatureF || d.Metric == codec.MetricStandaloneFreezerTempF {
			return d.Value, true
		}
	case *codec.ConsolidatedStatusPayload:
		if d.Freezer != nil && d.Freezer.TemperatureF != nil {
			return *d.Freezer.TemperatureF, true
		}
	}
	return 0, false
}

// Evaluate returns the current ActiveAlert set for every known device,
// de-duplicated by (device_id, code). now anchors the silent-device and
// weather-stall predicates; openIncidents feeds the device-degraded
// predicate.
func (e *Evaluator) Evaluate(now time.Time, devices map[string]*state.DeviceState, openIncidents []persistence.Incident) []ActiveAlert {
	incidentsByDevice := make(map[string]bool, len(openIncidents))
	for _, inc := range openIncidents {
		incidentsByDevice[inc.DeviceID] = true
	}

	e.mu.Lock()
	streaks := make(map[string]int, len(e.freezerStreak))
	for k, v := range e.freezerStreak {
		streaks[k] = v
	}
	e.mu.Unlock()

	seen := make(map[string]bool)
	var out []ActiveAlert
	add := func(a *ActiveAlert) {
		if a == nil {
			return
		}
		k := key(a.DeviceID, a.Code)
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, *a)
	}

	for id, d := range devices {
		add(evalFreezerTempCritical(d, streaks[id]))
		add(evalFreezerDoorAjar(d, e.cfg.FreezerDoorAjarS))
		add(evalCityPowerOffline(d))
		add(evalDeviceDegraded(d, incidentsByDevice[id]))
		add(evalDeviceSilent(d, now, e.cfg.SilentDeviceS))
		add(evalWeatherStuck(d, now, e.cfg.WeatherStallS))
	}
	return out
}

func evalFreezerTempCritical(d *state.DeviceState, streak int) *ActiveAlert {
	if d.Freezer == nil || streak < 2 {
		return nil
	}
	return &ActiveAlert{DeviceID: d.DeviceID, Code: CodeFreezerTempCritical, Message: "freezer temperature above critical threshold", LastSeen: d.Freezer.Ts}
}

func evalFreezerDoorAjar(d *state.DeviceState, thresholdS int) *ActiveAlert {
	if d.Freezer == nil || d.Freezer.DoorAjarS <= int64(thresholdS) {
		return nil
	}
	return &ActiveAlert{DeviceID: d.DeviceID, Code: CodeFreezerDoorAjar, Message: "freezer door held open too long", LastSeen: d.Freezer.Ts}
}

func evalCityPowerOffline(d *state.DeviceState) *ActiveAlert {
	if d.Power == nil || d.Power.City != "offline" {
		return nil
	}
	return &ActiveAlert{DeviceID: d.DeviceID, Code: CodeCityPowerOffline, Message: "city power reported offline", LastSeen: d.Power.Ts}
}

func evalDeviceDegraded(d *state.DeviceState, hasOpenIncident bool) *ActiveAlert {
	if d.Status != state.StatusNeedsHelp && !hasOpenIncident {
		return nil
	}
	return &ActiveAlert{DeviceID: d.DeviceID, Code: CodeDeviceDegraded, Message: "device degraded or has an open incident", LastSeen: d.LastSeen}
}

func evalDeviceSilent(d *state.DeviceState, now time.Time, thresholdS int) *ActiveAlert {
	if d.LastSeen.IsZero() || d.Status != state.StatusOnline {
		return nil
	}
	if now.Sub(d.LastSeen) <= time.Duration(thresholdS)*time.Second {
		return nil
	}
	return &ActiveAlert{DeviceID: d.DeviceID, Code: CodeDeviceSilent, Message: "device has not reported in longer than expected", LastSeen: d.LastSeen}
}

func evalWeatherStuck(d *state.DeviceState, now time.Time, thresholdS int) *ActiveAlert {
	if d.Weather == nil || d.Status != state.StatusOnline {
		return nil
	}
	if now.Sub(d.Weather.Ts) <= time.Duration(thresholdS)*time.Second {
		return nil
	}
	return &ActiveAlert{DeviceID: d.DeviceID, Code: CodeWeatherStuck, Message: "no new weather reading received", LastSeen: d.Weather.Ts}
}
