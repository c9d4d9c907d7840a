package state

import (
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/iris-core/internal/codec"
)

type subscriber struct {
	id      int
	ch      chan StateChange
	dropped int
}

// Store is the State Store (C2): the sole authoritative in-memory view of
// device state. All exported methods are safe for concurrent use; a
// mutex serializes writers the way spec's "single writer" requirement
// demands, while Snapshot/SnapshotAll hand back deep copies so readers
// never race with the next Apply.
type Store struct {
	mu      sync.Mutex
	devices map[string]*DeviceState

	subMu     sync.Mutex
	subs      map[int]*subscriber
	nextSubID int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		devices: make(map[string]*DeviceState),
		subs:    make(map[int]*subscriber),
	}
}

func (s *Store) deviceLocked(id string) *DeviceState {
	d, ok := s.devices[id]
	if !ok {
		d = &DeviceState{DeviceID: id, Status: StatusUnknown, Metrics: make(map[string]MetricSample)}
		s.devices[id] = d
	}
	return d
}

// Apply applies a decoded bus event to the store, returning zero or more
// StateChange records. Re-applying the same event (same ts, same values)
// is idempotent: DeviceState after the second Apply equals DeviceState
// after the first.
func (s *Store) Apply(ev codec.Event) []StateChange {
	if ev.Kind == "" {
		return nil
	}

	s.mu.Lock()
	d := s.deviceLocked(ev.DeviceID)
	before := d.deepCopy()

	var changes []StateChange
	switch ev.Kind {
	case codec.EventSos:
		d.Status = StatusNeedsHelp
		d.LastSeen = maxTime(d.LastSeen, ev.Ts)
		changes = append(changes, StateChange{Kind: ChangeSos, Detail: ev.Sos})

	case codec.EventStatusUpdate:
		s.applyStatusUpdate(d, ev.StatusUpdate.Status, ev.Ts)
		changes = append(changes, StateChange{Kind: ChangeStatus, Detail: ev.StatusUpdate})

	case codec.EventHealth:
		s.applyHealth(d, ev.Health.Health, ev.Ts)
		changes = append(changes, StateChange{Kind: ChangeHealth, Detail: ev.Health})

	case codec.EventVersion:
		d.Version = ev.Version.Version
		s.markSeenAndAdvance(d, ev.Ts)
		changes = append(changes, StateChange{Kind: ChangeVersion, Detail: ev.Version})

	case codec.EventBoot:
		if ev.Boot.Timestamp.After(d.LastBoot) {
			d.LastBoot = ev.Boot.Timestamp
		}
		s.markSeenAndAdvance(d, ev.Ts)
		changes = append(changes, StateChange{Kind: ChangeBoot, Detail: ev.Boot})

	case codec.EventDoorState:
		if d.Door == nil || !ev.Ts.Before(d.Door.Ts) {
			d.Door = &DoorState{State: ev.DoorState.State, Ts: ev.Ts}
		}
		s.markSeenAndAdvance(d, ev.Ts)
		changes = append(changes, StateChange{Kind: ChangeDoor, Detail: ev.DoorState})

	case codec.EventLightState:
		if d.Light == nil || !ev.Ts.Before(d.Light.Ts) {
			d.Light = &LightState{State: ev.LightState.State, Ts: ev.Ts}
		}
		s.markSeenAndAdvance(d, ev.Ts)
		changes = append(changes, StateChange{Kind: ChangeLight, Detail: ev.LightState})

	case codec.EventPowerStatus:
		if d.Power == nil || !ev.Ts.Before(d.Power.Ts) {
			d.Power = &PowerState{City: ev.PowerStatus.Status, Ts: ev.Ts}
		}
		s.markSeenAndAdvance(d, ev.Ts)
		changes = append(changes, StateChange{Kind: ChangePower, Detail: ev.PowerStatus})

	case codec.EventTelemetryReading:
		s.applyTelemetry(d, ev.TelemetryReading.Metric, ev.TelemetryReading.Value, ev.Ts)
		s.markSeenAndAdvance(d, ev.Ts)
		changes = append(changes, StateChange{Kind: classifyMetric(ev.TelemetryReading.Metric), Detail: ev.TelemetryReading})

	case codec.EventConsolidatedStatus:
		changes = append(changes, s.applyConsolidatedStatus(d, ev.ConsolidatedStatus, ev.Ts)...)
		for i := range changes {
			changes[i].Detail = ev.ConsolidatedStatus
		}
		s.markSeenAndAdvance(d, ev.Ts)

	default:
		s.mu.Unlock()
		return nil
	}

	after := d.deepCopy()
	s.mu.Unlock()

	for i := range changes {
		changes[i].DeviceID = ev.DeviceID
		changes[i].Before = before
		changes[i].After = after
		changes[i].Ts = ev.Ts
	}
	s.broadcast(changes)
	return changes
}

// applyStatusUpdate implements the device status automaton (spec §4.2).
func (s *Store) applyStatusUpdate(d *DeviceState, status string, ts time.Time) {
	d.LastSeen = maxTime(d.LastSeen, ts)
	switch status {
	case "offline":
		d.Status = StatusOffline
		d.awaitingPostUpdateOnline = false
	case "update_received", "updating":
		d.Status = StatusUpdating
		d.awaitingPostUpdateOnline = false
	case "updated":
		d.Status = StatusUpdating
		d.awaitingPostUpdateOnline = true
	default: // running, alive
		if d.Status == StatusUpdating {
			d.Status = StatusOnline
			d.awaitingPostUpdateOnline = false
		} else {
			d.Status = StatusOnline
		}
	}
}

// applyHealth implements the device status automaton for home/system/<id>/
// health (spec §4.2/§6): the topic's enum (online|error|needs_help|offline)
// is the same vocabulary Status uses, so it is applied directly rather than
// routed through markSeenAndAdvance's generic "any message -> online" rule.
// An "online" report still has to resolve the "updated -> subsequent
// message -> online" automaton step rather than skip it.
func (s *Store) applyHealth(d *DeviceState, health string, ts time.Time) {
	d.LastSeen = maxTime(d.LastSeen, ts)
	d.Status = DeviceStatus(health)
	d.awaitingPostUpdateOnline = false
}

// markSeenAndAdvance implements the "any message: * -> online" fallback
// for event kinds other than sos and status updates.
func (s *Store) markSeenAndAdvance(d *DeviceState, ts time.Time) {
	d.LastSeen = maxTime(d.LastSeen, ts)
	switch d.Status {
	case StatusOffline, StatusUnknown, StatusError:
		d.Status = StatusOnline
	case StatusUpdating:
		if d.awaitingPostUpdateOnline {
			d.Status = StatusOnline
			d.awaitingPostUpdateOnline = false
		}
	}
}

func (s *Store) applyTelemetry(d *DeviceState, metric string, value float64, ts time.Time) {
	if existing, ok := d.Metrics[metric]; ok && ts.Before(existing.Ts) {
		return
	}
	d.Metrics[metric] = MetricSample{Value: value, Ts: ts}

	switch metric {
	case codec.MetricGarageWeatherTemperatureF:
		w := ensureWeather(d)
		if w.Ts.IsZero() || !ts.Before(w.Ts) {
			v := value
			w.TemperatureF = &v
			w.Ts = ts
		}
	case codec.MetricGarageWeatherPressureInHg:
		w := ensureWeather(d)
		if w.Ts.IsZero() || !ts.Before(w.Ts) {
			v := value
			w.PressureInHg = &v
			w.Ts = ts
		}
	case codec.MetricGarageFreezerTemperatureF:
		f := ensureFreezer(d)
		if f.Ts.IsZero() || !ts.Before(f.Ts) {
			v := value
			f.TemperatureF = &v
			f.Ts = ts
		}
	case codec.MetricFreezerDoorAjarS:
		f := ensureFreezer(d)
		if f.Ts.IsZero() || !ts.Before(f.Ts) {
			f.DoorAjarS = int64(value)
			f.Ts = ts
		}
	}
}

func ensureWeather(d *DeviceState) *WeatherState {
	if d.Weather == nil {
		d.Weather = &WeatherState{}
	}
	return d.Weather
}

func ensureFreezer(d *DeviceState) *FreezerState {
	if d.Freezer == nil {
		d.Freezer = &FreezerState{}
	}
	return d.Freezer
}

func classifyMetric(metric string) StateChangeKind {
	switch {
	case strings.Contains(metric, "weather"):
		return ChangeWeather
	case strings.Contains(metric, "freezer"):
		return ChangeFreezer
	case strings.Contains(metric, "power"):
		return ChangePower
	default:
		return ChangeMetric
	}
}

func (s *Store) applyConsolidatedStatus(d *DeviceState, p *codec.ConsolidatedStatusPayload, ts time.Time) []StateChange {
	var changes []StateChange

	if p.Health != "" {
		d.Health = p.Health
	}
	if p.IPAddress != "" {
		d.IPAddress = p.IPAddress
	}
	if p.RSSI != nil {
		v := *p.RSSI
		d.RSSI = &v
	}
	d.Errors = nil
	for _, e := range p.Errors {
		d.Errors = append(d.Errors, DeviceError{Code: e.Code, Message: e.Message, Since: e.Since})
		d.LastErrorCode = e.Code
	}

	if p.Power != nil && (d.Power == nil || !ts.Before(d.Power.Ts)) {
		d.Power = &PowerState{City: p.Power.City, Ts: ts}
		changes = append(changes, StateChange{Kind: ChangePower})
	}
	if p.Freezer != nil && (d.Freezer == nil || !ts.Before(d.Freezer.Ts)) {
		d.Freezer = &FreezerState{
			TemperatureF: p.Freezer.TemperatureF,
			Door:         p.Freezer.Door,
			DoorAjarS:    p.Freezer.DoorAjarS,
			Ts:           ts,
		}
		changes = append(changes, StateChange{Kind: ChangeFreezer})
	}
	if p.Weather != nil && (d.Weather == nil || !ts.Before(d.Weather.Ts)) {
		d.Weather = &WeatherState{
			TemperatureF:       p.Weather.TemperatureF,
			PressureInHg:       p.Weather.PressureInHg,
			Bmp388TemperatureF: p.Weather.Bmp388TemperatureF,
			Ts:                 ts,
		}
		changes = append(changes, StateChange{Kind: ChangeWeather})
	}
	if p.Door != nil && (d.Door == nil || !ts.Before(d.Door.Ts)) {
		d.Door = &DoorState{State: p.Door.State, OpenSwitch: p.Door.OpenSwitch, ClosedSwitch: p.Door.ClosedSwitch, Ts: ts}
		changes = append(changes, StateChange{Kind: ChangeDoor})
	}
	if p.Light != nil && (d.Light == nil || !ts.Before(d.Light.Ts)) {
		d.Light = &LightState{State: p.Light.State, Ts: ts}
		changes = append(changes, StateChange{Kind: ChangeLight})
	}

	changes = append(changes, StateChange{Kind: ChangeStatus})
	return changes
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Snapshot returns a deep copy of one device's state, or nil if unknown.
func (s *Store) Snapshot(deviceID string) *DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil
	}
	return d.deepCopy()
}

// SnapshotAll returns a deep copy of every known device's state.
func (s *Store) SnapshotAll() map[string]*DeviceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*DeviceState, len(s.devices))
	for id, d := range s.devices {
		out[id] = d.deepCopy()
	}
	return out
}

// Subscribe returns a channel of StateChange records and an unsubscribe
// function. bufferSize bounds the channel; when full, the oldest queued
// change is dropped to make room for the new one rather than blocking
// Apply.
func (s *Store) Subscribe(bufferSize int) (<-chan StateChange, func()) {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	sub := &subscriber{id: id, ch: make(chan StateChange, bufferSize)}
	s.subs[id] = sub
	s.subMu.Unlock()

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if existing, ok := s.subs[id]; ok {
			close(existing.ch)
			delete(s.subs, id)
		}
	}
	return sub.ch, unsubscribe
}

func (s *Store) broadcast(changes []StateChange) {
	if len(changes) == 0 {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		for _, c := range changes {
			select {
			case sub.ch <- c:
			default:
				select {
				case <-sub.ch:
					sub.dropped++
				default:
				}
				select {
				case sub.ch <- c:
				default:
				}
			}
		}
	}
}
