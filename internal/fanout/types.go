// Package fanout implements the Client Fan-Out (C9): it serves the
// streaming WebSocket surface, sending a full snapshot on connect and then
// coalesced per-topic change events, with a strict slow-consumer policy so
// one stalled client cannot back up the rest.
package fanout

import (
	"github.com/nerrad567/iris-core/internal/alerts"
	"github.com/nerrad567/iris-core/internal/state"
)

// Message types, matching spec §6's streaming fan-out surface.
const (
	TypeSnapshot        = "snapshot"
	TypeDoor            = "door"
	TypeLight           = "light"
	TypeWeather         = "weather"
	TypeFreezer         = "freezer"
	TypeHouseMonitor    = "house-monitor"
	TypeGarageController = "garage-controller"
	TypeAlerts          = "alerts"
	TypePong            = "pong"

	// typePing is the only message type a client may send.
	typePing = "ping"
)

// Message is the envelope for every server-to-client frame.
type Message struct {
	Type     string                        `json:"type"`
	DeviceID string                        `json:"device_id,omitempty"`
	Data     any                           `json:"data,omitempty"`
	Devices  map[string]*state.DeviceState `json:"devices,omitempty"`
	Alerts   []alerts.ActiveAlert          `json:"alerts,omitempty"`
}

// clientMessage is the shape of an incoming client frame. Only "ping" is
// meaningful; every other type (including malformed JSON) is ignored.
type clientMessage struct {
	Type string `json:"type"`
}

// Source supplies the data a newly-connected client needs for its initial
// snapshot and the data a periodic alert re-check needs. Implemented by
// the Lifecycle Supervisor's wiring over state.Store, alerts.Evaluator, and
// the incident repository.
type Source interface {
	Devices() map[string]*state.DeviceState
	Alerts() []alerts.ActiveAlert
}

func topicGroup(deviceID string, kind state.StateChangeKind) string {
	switch kind {
	case state.ChangeDoor:
		return TypeDoor
	case state.ChangeLight:
		return TypeLight
	case state.ChangeWeather:
		return TypeWeather
	case state.ChangeFreezer:
		return TypeFreezer
	default:
		return deviceID
	}
}

func dataFor(c state.StateChange) any {
	if c.After == nil {
		return nil
	}
	switch c.Kind {
	case state.ChangeDoor:
		return c.After.Door
	case state.ChangeLight:
		return c.After.Light
	case state.ChangeWeather:
		return c.After.Weather
	case state.ChangeFreezer:
		return c.After.Freezer
	default:
		return c.After
	}
}
