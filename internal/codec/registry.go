package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/iris-core/internal/infrastructure/mqtt"
)

// Registry is the Codec Registry (C1): it resolves a concrete topic to a
// decoder and turns outbound command intents into (topic, payload) pairs.
//
// A Registry is immutable after construction and safe for concurrent use
// by any number of callers — decoders are pure functions, so there is no
// shared mutable state to protect beyond the registration table built once
// in NewRegistry.
type Registry struct {
	registrations []registration
}

// NewRegistry builds a Registry with decoders for every topic in the
// bus's subscribed set (spec §6).
func NewRegistry() *Registry {
	t := mqtt.Topics{}
	r := &Registry{}

	r.register(t.AllConsolidatedStatus(), func(topic string, payload []byte) (Event, error) {
		deviceID := deviceIDFromWildcard(topic, wildcardIndex(strings.Split(t.AllConsolidatedStatus(), "/")))
		return decodeConsolidatedStatus(topic, payload, deviceID)
	})
	r.register(t.GarageDoorStatus(), func(topic string, payload []byte) (Event, error) {
		return decodeDoorState(topic, payload, DeviceGarageController)
	})
	r.register(t.GarageLightStatus(), func(topic string, payload []byte) (Event, error) {
		return decodeLightState(topic, payload, DeviceGarageController)
	})
	r.register(t.GarageWeatherTemperature(), func(topic string, payload []byte) (Event, error) {
		return decodeTelemetry(topic, payload, DeviceGarageController, MetricGarageWeatherTemperatureF)
	})
	r.register(t.GarageWeatherPressure(), func(topic string, payload []byte) (Event, error) {
		return decodeTelemetry(topic, payload, DeviceGarageController, MetricGarageWeatherPressureInHg)
	})
	r.register(t.GarageFreezerTemperature(), func(topic string, payload []byte) (Event, error) {
		return decodeTelemetry(topic, payload, DeviceGarageController, MetricGarageFreezerTemperatureF)
	})
	r.register(t.CityPowerStatus(), func(topic string, payload []byte) (Event, error) {
		return decodePowerStatus(topic, payload, DeviceHouseMonitor)
	})
	r.register(t.CityPowerHeartbeat(), func(topic string, payload []byte) (Event, error) {
		return decodeIntTelemetry(topic, payload, DeviceHouseMonitor, MetricCityPowerHeartbeat)
	})
	r.register(t.StandaloneFreezerTemperature(), func(topic string, payload []byte) (Event, error) {
		levels := strings.Split(t.StandaloneFreezerTemperature(), "/")
		label := deviceIDFromWildcard(topic, wildcardIndex(levels))
		metric := fmt.Sprintf("%s_%s", MetricStandaloneFreezerTempF, label)
		return decodeTelemetry(topic, payload, DeviceHouseMonitor, metric)
	})
	r.register(t.FreezerDoorStatus(), func(topic string, payload []byte) (Event, error) {
		return decodeDoorState(topic, payload, DeviceHouseMonitor)
	})
	r.register(t.FreezerDoorAjarTime(), func(topic string, payload []byte) (Event, error) {
		return decodeIntTelemetry(topic, payload, DeviceHouseMonitor, MetricFreezerDoorAjarS)
	})
	r.register(t.SystemStatus(), func(topic string, payload []byte) (Event, error) {
		deviceID := deviceIDFromWildcard(topic, wildcardIndex(strings.Split(t.SystemStatus(), "/")))
		return decodeStatusUpdate(topic, payload, deviceID)
	})
	r.register(t.SystemSos(), func(topic string, payload []byte) (Event, error) {
		deviceID := deviceIDFromWildcard(topic, wildcardIndex(strings.Split(t.SystemSos(), "/")))
		return decodeSos(topic, payload, deviceID)
	})
	r.register(t.SystemHealth(), func(topic string, payload []byte) (Event, error) {
		deviceID := deviceIDFromWildcard(topic, wildcardIndex(strings.Split(t.SystemHealth(), "/")))
		return decodeHealth(topic, payload, deviceID)
	})
	r.register(t.SystemVersion(), func(topic string, payload []byte) (Event, error) {
		deviceID := deviceIDFromWildcard(topic, wildcardIndex(strings.Split(t.SystemVersion(), "/")))
		return decodeVersion(topic, payload, deviceID)
	})
	r.register(t.SystemBoot(), func(topic string, payload []byte) (Event, error) {
		deviceID := deviceIDFromWildcard(topic, wildcardIndex(strings.Split(t.SystemBoot(), "/")))
		return decodeBoot(topic, payload, deviceID)
	})

	return r
}

func (r *Registry) register(pattern string, decode decoderFunc) {
	r.registrations = append(r.registrations, registration{
		pattern: pattern,
		levels:  strings.Split(pattern, "/"),
		decode:  decode,
		order:   len(r.registrations),
	})
}

// Decode resolves topic against the registered patterns and runs the
// matching decoder. Topics outside home/ are silently ignored (nil Event,
// nil error). Topics inside home/ that match no registered pattern, or
// whose payload fails to decode, produce a *DecodeError.
func (r *Registry) Decode(topic string, payload []byte) (Event, error) {
	if !strings.HasPrefix(topic, "home/") {
		return Event{}, nil
	}

	var best *registration
	var bestScore specificity
	for i := range r.registrations {
		reg := &r.registrations[i]
		if !matchTopic(reg.pattern, topic) {
			continue
		}
		score := specificityOf(*reg)
		if best == nil || score.less(bestScore) {
			best = reg
			bestScore = score
		}
	}

	if best == nil {
		return Event{}, decodeErr(topic, payload, "no registered decoder for topic", nil)
	}

	return best.decode(topic, payload)
}

// EncodeCommand turns a logical command into the (topic, payload) pair the
// Bus Adapter should publish, per spec §6's "Published by server" table.
func (r *Registry) EncodeCommand(kind CommandKind, args any) (topic string, payload []byte, err error) {
	t := mqtt.Topics{}

	switch kind {
	case CommandDoor:
		a, ok := args.(DoorArgs)
		if !ok {
			return "", nil, fmt.Errorf("%w: door command needs DoorArgs", ErrInvalidArgs)
		}
		switch a.Command {
		case "open", "close", "toggle":
		default:
			return "", nil, fmt.Errorf("%w: unrecognised door command %q", ErrInvalidArgs, a.Command)
		}
		return t.GarageDoorCommand(), []byte(a.Command), nil

	case CommandLight:
		a, ok := args.(LightArgs)
		if !ok {
			return "", nil, fmt.Errorf("%w: light command needs LightArgs", ErrInvalidArgs)
		}
		switch a.State {
		case "on", "off", "toggle":
		default:
			return "", nil, fmt.Errorf("%w: unrecognised light state %q", ErrInvalidArgs, a.State)
		}
		return t.GarageLightCommand(), []byte(a.State), nil

	case CommandReboot:
		a, ok := args.(DeviceArgs)
		if !ok || a.DeviceID == "" {
			return "", nil, fmt.Errorf("%w: reboot command needs DeviceArgs", ErrInvalidArgs)
		}
		return t.SystemReboot(a.DeviceID), []byte("{}"), nil

	case CommandPing:
		a, ok := args.(DeviceArgs)
		if !ok || a.DeviceID == "" {
			return "", nil, fmt.Errorf("%w: ping command needs DeviceArgs", ErrInvalidArgs)
		}
		return t.SystemPing(a.DeviceID), []byte("{}"), nil

	case CommandUpdate:
		a, ok := args.(UpdateArgs)
		if !ok || a.DeviceID == "" {
			return "", nil, fmt.Errorf("%w: update command needs UpdateArgs", ErrInvalidArgs)
		}
		if len(a.Manifest) == 0 {
			return "", nil, fmt.Errorf("%w: update command needs a manifest payload", ErrInvalidArgs)
		}
		if !json.Valid(a.Manifest) {
			return "", nil, fmt.Errorf("%w: update manifest is not valid JSON", ErrInvalidArgs)
		}
		return t.SystemUpdate(a.DeviceID), a.Manifest, nil

	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
}
