package codec

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Well-known device identities for sensors published on fixed (non
// wildcarded) topics. The bus has no device_id segment for these; the
// identity is implied by which physical controller owns that sensor.
const (
	DeviceGarageController = "garage-controller"
	DeviceHouseMonitor     = "house-monitor"
)

func parseFloatPayload(topic string, payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, decodeErr(topic, payload, "not a decimal string", err)
	}
	return v, nil
}

func parseIntPayload(topic string, payload []byte) (int64, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, decodeErr(topic, payload, "not an integer string", err)
	}
	return v, nil
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

type sosWire struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	DeviceID  string `json:"device_id"`
}

func decodeSos(topic string, payload []byte, deviceID string) (Event, error) {
	var w sosWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return Event{}, decodeErr(topic, payload, "invalid sos JSON", err)
	}
	if w.Error == "" {
		return Event{}, decodeErr(topic, payload, "sos missing error field", nil)
	}
	return Event{
		Kind:     EventSos,
		DeviceID: deviceID,
		Topic:    topic,
		Ts:       msToTime(w.Timestamp),
		Sos: &SosPayload{
			Code:      w.Error,
			Message:   w.Message,
			Timestamp: msToTime(w.Timestamp),
		},
	}, nil
}

type bootWire struct {
	Ts      int64  `json:"ts"`
	Reason  string `json:"reason"`
	Success bool   `json:"success"`
}

func decodeBoot(topic string, payload []byte, deviceID string) (Event, error) {
	var w bootWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return Event{}, decodeErr(topic, payload, "invalid boot JSON", err)
	}
	return Event{
		Kind:     EventBoot,
		DeviceID: deviceID,
		Topic:    topic,
		Ts:       msToTime(w.Ts),
		Boot: &BootPayload{
			Timestamp: msToTime(w.Ts),
			Reason:    w.Reason,
			Success:   w.Success,
		},
	}, nil
}

func decodeStatusUpdate(topic string, payload []byte, deviceID string) (Event, error) {
	status := strings.TrimSpace(string(payload))
	switch status {
	case "running", "update_received", "updating", "updated", "alive", "offline":
	default:
		return Event{}, decodeErr(topic, payload, "unrecognised status value: "+status, nil)
	}
	return Event{
		Kind:          EventStatusUpdate,
		DeviceID:      deviceID,
		Topic:         topic,
		Ts:            time.Now().UTC(),
		StatusUpdate:  &StatusUpdatePayload{Status: status},
	}, nil
}

func decodePowerStatus(topic string, payload []byte, deviceID string) (Event, error) {
	status := strings.TrimSpace(string(payload))
	switch status {
	case "online", "offline":
	default:
		return Event{}, decodeErr(topic, payload, "unrecognised power status: "+status, nil)
	}
	return Event{
		Kind:        EventPowerStatus,
		DeviceID:    deviceID,
		Topic:       topic,
		Ts:          time.Now().UTC(),
		PowerStatus: &PowerStatusPayload{Status: status},
	}, nil
}

func decodeHealth(topic string, payload []byte, deviceID string) (Event, error) {
	health := strings.TrimSpace(string(payload))
	switch health {
	case "online", "error", "needs_help", "offline":
	default:
		return Event{}, decodeErr(topic, payload, "unrecognised health value: "+health, nil)
	}
	return Event{
		Kind:     EventHealth,
		DeviceID: deviceID,
		Topic:    topic,
		Ts:       time.Now().UTC(),
		Health:   &HealthPayload{Health: health},
	}, nil
}

func decodeVersion(topic string, payload []byte, deviceID string) (Event, error) {
	v := strings.TrimSpace(string(payload))
	if v == "" {
		return Event{}, decodeErr(topic, payload, "empty version", nil)
	}
	return Event{
		Kind:     EventVersion,
		DeviceID: deviceID,
		Topic:    topic,
		Ts:       time.Now().UTC(),
		Version:  &VersionPayload{Version: v},
	}, nil
}

func decodeDoorState(topic string, payload []byte, deviceID string) (Event, error) {
	state := strings.TrimSpace(string(payload))
	switch state {
	case "open", "closed", "opening", "closing", "error":
	default:
		return Event{}, decodeErr(topic, payload, "unrecognised door state: "+state, nil)
	}
	return Event{
		Kind:      EventDoorState,
		DeviceID:  deviceID,
		Topic:     topic,
		Ts:        time.Now().UTC(),
		DoorState: &DoorStatePayload{State: state},
	}, nil
}

func decodeLightState(topic string, payload []byte, deviceID string) (Event, error) {
	state := strings.TrimSpace(string(payload))
	switch state {
	case "on", "off":
	default:
		return Event{}, decodeErr(topic, payload, "unrecognised light state: "+state, nil)
	}
	return Event{
		Kind:       EventLightState,
		DeviceID:   deviceID,
		Topic:      topic,
		Ts:         time.Now().UTC(),
		LightState: &LightStatePayload{State: state},
	}, nil
}

func decodeTelemetry(topic string, payload []byte, deviceID, metric string) (Event, error) {
	v, err := parseFloatPayload(topic, payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Kind:     EventTelemetryReading,
		DeviceID: deviceID,
		Topic:    topic,
		Ts:       time.Now().UTC(),
		TelemetryReading: &TelemetryReadingPayload{
			Metric: metric,
			Value:  v,
		},
	}, nil
}

func decodeIntTelemetry(topic string, payload []byte, deviceID, metric string) (Event, error) {
	v, err := parseIntPayload(topic, payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Kind:     EventTelemetryReading,
		DeviceID: deviceID,
		Topic:    topic,
		Ts:       time.Now().UTC(),
		TelemetryReading: &TelemetryReadingPayload{
			Metric: metric,
			Value:  float64(v),
		},
	}, nil
}

type consolidatedStatusWire struct {
	Timestamp int64  `json:"timestamp"`
	UptimeS   int64  `json:"uptime_s"`
	Health    string `json:"health"`

	Power *struct {
		City string `json:"city"`
	} `json:"power"`

	Freezer *struct {
		TemperatureF *float64 `json:"temperature_f"`
		Door         string   `json:"door"`
		DoorAjarS    int64    `json:"door_ajar_s"`
	} `json:"freezer"`

	Weather *struct {
		TemperatureF       *float64 `json:"temperature_f"`
		PressureInHg       *float64 `json:"pressure_inhg"`
		Bmp388TemperatureF *float64 `json:"bmp388_temperature_f"`
	} `json:"weather"`

	Door *struct {
		State        string `json:"state"`
		OpenSwitch   bool   `json:"open_switch"`
		ClosedSwitch bool   `json:"closed_switch"`
	} `json:"door"`

	Light *struct {
		State string `json:"state"`
	} `json:"light"`

	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Since   int64  `json:"since"`
	} `json:"errors"`

	Memory *struct {
		Free      int64 `json:"free"`
		Allocated int64 `json:"allocated"`
	} `json:"memory"`

	// Supplemented fields (SPEC_FULL §"WiFi/IP/RSSI reporting"): not part
	// of the normative shape, extracted when present.
	IPAddress string `json:"ip_address"`
	RSSI      *int   `json:"rssi"`
}

func decodeConsolidatedStatus(topic string, payload []byte, deviceID string) (Event, error) {
	var w consolidatedStatusWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return Event{}, decodeErr(topic, payload, "invalid consolidated status JSON", err)
	}

	p := &ConsolidatedStatusPayload{
		Timestamp: msToTime(w.Timestamp),
		UptimeS:   w.UptimeS,
		Health:    w.Health,
		IPAddress: w.IPAddress,
		RSSI:      w.RSSI,
	}
	if w.Power != nil {
		p.Power = &PowerSection{City: w.Power.City}
	}
	if w.Freezer != nil {
		p.Freezer = &FreezerSection{
			TemperatureF: w.Freezer.TemperatureF,
			Door:         w.Freezer.Door,
			DoorAjarS:    w.Freezer.DoorAjarS,
		}
	}
	if w.Weather != nil {
		p.Weather = &WeatherSection{
			TemperatureF:       w.Weather.TemperatureF,
			PressureInHg:       w.Weather.PressureInHg,
			Bmp388TemperatureF: w.Weather.Bmp388TemperatureF,
		}
	}
	if w.Door != nil {
		p.Door = &DoorSection{
			State:        w.Door.State,
			OpenSwitch:   w.Door.OpenSwitch,
			ClosedSwitch: w.Door.ClosedSwitch,
		}
	}
	if w.Light != nil {
		p.Light = &LightSection{State: w.Light.State}
	}
	if w.Memory != nil {
		p.Memory = &MemorySection{Free: w.Memory.Free, Allocated: w.Memory.Allocated}
	}
	for _, e := range w.Errors {
		p.Errors = append(p.Errors, StatusError{
			Code:    e.Code,
			Message: e.Message,
			Since:   msToTime(e.Since),
		})
	}

	return Event{
		Kind:               EventConsolidatedStatus,
		DeviceID:           deviceID,
		Topic:              topic,
		Ts:                 msToTime(w.Timestamp),
		ConsolidatedStatus: p,
	}, nil
}
