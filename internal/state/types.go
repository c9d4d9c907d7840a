package state

import "time"

// DeviceStatus is the device status automaton's state (spec §4.2).
type DeviceStatus string

const (
	StatusUnknown   DeviceStatus = "unknown"
	StatusOnline    DeviceStatus = "online"
	StatusOffline   DeviceStatus = "offline"
	StatusNeedsHelp DeviceStatus = "needs_help"
	StatusUpdating  DeviceStatus = "updating"
	StatusError     DeviceStatus = "error"
)

// MetricSample is a single named numeric reading with its timestamp.
type MetricSample struct {
	Value float64
	Ts    time.Time
}

// PowerState mirrors the consolidated status "power" section.
type PowerState struct {
	City string
	Ts   time.Time
}

// FreezerState mirrors the consolidated status "freezer" section.
type FreezerState struct {
	TemperatureF *float64
	Door         string
	DoorAjarS    int64
	Ts           time.Time
}

// WeatherState mirrors the consolidated status "weather" section.
type WeatherState struct {
	TemperatureF       *float64
	PressureInHg       *float64
	Bmp388TemperatureF *float64
	Ts                 time.Time
}

// DoorState mirrors the consolidated status / garage door "door" section.
type DoorState struct {
	State        string
	OpenSwitch   bool
	ClosedSwitch bool
	Ts           time.Time
}

// LightState mirrors the consolidated status / garage light "light"
// section.
type LightState struct {
	State string
	Ts    time.Time
}

// DeviceError is one entry of the consolidated status "errors" array.
type DeviceError struct {
	Code    string
	Message string
	Since   time.Time
}

// DeviceState is the derived current view of one device (spec §3).
// Zero-value nested pointers mean the device has never reported that
// capability. Callers receive a deep copy from Snapshot/SnapshotAll and
// may not mutate it.
type DeviceState struct {
	DeviceID      string
	Status        DeviceStatus
	LastSeen      time.Time
	Version       string
	LastBoot      time.Time
	LastErrorCode string
	IPAddress     string
	RSSI          *int
	Health        string // "online" | "degraded", from consolidated status only

	Power   *PowerState
	Freezer *FreezerState
	Weather *WeatherState
	Door    *DoorState
	Light   *LightState
	Errors  []DeviceError

	// Metrics holds the latest sample of every telemetry metric the device
	// has reported, keyed by codec metric name, including metrics that are
	// also mirrored into the nested sections above.
	Metrics map[string]MetricSample

	// awaitingPostUpdateOnline is set once an "updated" status message
	// arrives while updating; the *next* message of any kind flips the
	// device back to online, per spec's "status=updated followed by a
	// subsequent health/status message: updating -> online".
	awaitingPostUpdateOnline bool
}

func (d *DeviceState) deepCopy() *DeviceState {
	if d == nil {
		return nil
	}
	c := *d
	if d.RSSI != nil {
		v := *d.RSSI
		c.RSSI = &v
	}
	if d.Power != nil {
		p := *d.Power
		c.Power = &p
	}
	if d.Freezer != nil {
		f := *d.Freezer
		if f.TemperatureF != nil {
			v := *f.TemperatureF
			f.TemperatureF = &v
		}
		c.Freezer = &f
	}
	if d.Weather != nil {
		w := *d.Weather
		if w.TemperatureF != nil {
			v := *w.TemperatureF
			w.TemperatureF = &v
		}
		if w.PressureInHg != nil {
			v := *w.PressureInHg
			w.PressureInHg = &v
		}
		if w.Bmp388TemperatureF != nil {
			v := *w.Bmp388TemperatureF
			w.Bmp388TemperatureF = &v
		}
		c.Weather = &w
	}
	if d.Door != nil {
		dd := *d.Door
		c.Door = &dd
	}
	if d.Light != nil {
		l := *d.Light
		c.Light = &l
	}
	if d.Errors != nil {
		c.Errors = append([]DeviceError(nil), d.Errors...)
	}
	if d.Metrics != nil {
		c.Metrics = make(map[string]MetricSample, len(d.Metrics))
		for k, v := range d.Metrics {
			c.Metrics[k] = v
		}
	}
	return &c
}

// StateChangeKind classifies a StateChange for fan-out grouping.
type StateChangeKind string

const (
	ChangeStatus  StateChangeKind = "status"
	ChangeDoor    StateChangeKind = "door"
	ChangeLight   StateChangeKind = "light"
	ChangeWeather StateChangeKind = "weather"
	ChangeFreezer StateChangeKind = "freezer"
	ChangePower   StateChangeKind = "power"
	ChangeSos     StateChangeKind = "sos"
	ChangeBoot    StateChangeKind = "boot"
	ChangeVersion StateChangeKind = "version"
	ChangeHealth  StateChangeKind = "health"
	ChangeMetric  StateChangeKind = "metric"
)

// StateChange is a coarse record emitted whenever any device-visible field
// transitions. Detail carries the originating codec payload (e.g.
// *codec.SosPayload, *codec.BootPayload) so downstream consumers that need
// more than the before/after snapshot — the Persistence Writer recording
// an incident, the Alert Evaluator reading a raw sos code — do not have to
// reverse-engineer it from DeviceState.
type StateChange struct {
	DeviceID string
	Kind     StateChangeKind
	Before   *DeviceState
	After    *DeviceState
	Detail   any
	Ts       time.Time
}
