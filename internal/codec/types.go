package codec

import "time"

// EventKind tags the variant carried by an Event.
type EventKind string

const (
	EventStatusUpdate       EventKind = "status_update"
	EventTelemetryReading    EventKind = "telemetry_reading"
	EventDoorState           EventKind = "door_state"
	EventLightState          EventKind = "light_state"
	EventSos                 EventKind = "sos"
	EventBoot                EventKind = "boot"
	EventVersion             EventKind = "version"
	EventHealth              EventKind = "health"
	EventConsolidatedStatus  EventKind = "consolidated_status"

	// EventPowerStatus is a small extension beyond spec.md's nine named
	// variants: home/power/city/status carries a distinct online/offline
	// enum that neither StatusUpdate (device lifecycle enum) nor Health
	// (device health enum) matches semantically.
	EventPowerStatus EventKind = "power_status"
)

// Event is a closed tagged variant produced by Decode. Exactly one of the
// typed payload fields is non-nil, selected by Kind. DeviceID is always
// populated — extracted either from the topic's wildcard segment or, for
// fixed-topic garage/freezer sensors, from a configured well-known ID.
type Event struct {
	Kind     EventKind
	DeviceID string
	Topic    string
	Ts       time.Time

	StatusUpdate      *StatusUpdatePayload
	TelemetryReading  *TelemetryReadingPayload
	DoorState         *DoorStatePayload
	LightState        *LightStatePayload
	Sos               *SosPayload
	Boot              *BootPayload
	Version           *VersionPayload
	Health            *HealthPayload
	ConsolidatedStatus *ConsolidatedStatusPayload
	PowerStatus       *PowerStatusPayload
}

// StatusUpdatePayload is the decoded body of home/system/<id>/status:
// running | update_received | updating | updated | alive | offline.
type StatusUpdatePayload struct {
	Status string
}

// TelemetryReadingPayload is a single numeric sample decoded from one of
// the weather/freezer/power-heartbeat topics. Metric identifies which
// series it belongs to (see MetricXxx constants).
type TelemetryReadingPayload struct {
	Metric string
	Value  float64
}

// DoorStatePayload is the decoded body of home/garage/door/status.
type DoorStatePayload struct {
	State string // open | closed | opening | closing | error
}

// LightStatePayload is the decoded body of home/garage/light/status.
type LightStatePayload struct {
	State string // on | off
}

// SosPayload is the decoded body of home/system/<id>/sos.
type SosPayload struct {
	Code      string
	Message   string
	Timestamp time.Time
}

// BootPayload is the decoded body of home/system/<id>/boot.
type BootPayload struct {
	Timestamp time.Time
	Reason    string
	Success   bool
}

// VersionPayload is the decoded body of home/system/<id>/version.
type VersionPayload struct {
	Version string
}

// PowerStatusPayload is the decoded body of home/power/city/status.
type PowerStatusPayload struct {
	Status string // online | offline
}

// HealthPayload is the decoded body of home/system/<id>/health:
// online | error | needs_help | offline.
type HealthPayload struct {
	Health string
}

// ConsolidatedStatusPayload is the decoded body of home/<id>/status, the
// periodic atomic snapshot a device publishes every ~30s. Missing nested
// sections (nil pointers) mean the device lacks that capability; they are
// never inferred from a prior message.
type ConsolidatedStatusPayload struct {
	Timestamp time.Time
	UptimeS   int64
	Health    string // online | degraded

	Power   *PowerSection
	Freezer *FreezerSection
	Weather *WeatherSection
	Door    *DoorSection
	Light   *LightSection

	Errors []StatusError
	Memory *MemorySection

	// IPAddress and RSSI are extracted when present, per the supplemented
	// WiFi/IP/RSSI reporting feature; absent otherwise.
	IPAddress string
	RSSI      *int
}

type PowerSection struct {
	City string // online | offline
}

type FreezerSection struct {
	TemperatureF *float64
	Door         string // open | closed
	DoorAjarS    int64
}

type WeatherSection struct {
	TemperatureF       *float64
	PressureInHg       *float64
	Bmp388TemperatureF *float64
}

type DoorSection struct {
	State       string // open | closed | opening | closing | error
	OpenSwitch  bool
	ClosedSwitch bool
}

type LightSection struct {
	State string // on | off
}

type StatusError struct {
	Code    string
	Message string
	Since   time.Time
}

type MemorySection struct {
	Free      int64
	Allocated int64
}

// Metric names used in TelemetryReadingPayload and history queries.
const (
	MetricGarageWeatherTemperatureF = "garage_weather_temperature_f"
	MetricGarageWeatherPressureInHg = "garage_weather_pressure_inhg"
	MetricGarageFreezerTemperatureF = "garage_freezer_temperature_f"
	MetricCityPowerHeartbeat        = "city_power_heartbeat"
	MetricStandaloneFreezerTempF    = "standalone_freezer_temperature_f"
	MetricFreezerDoorAjarS          = "freezer_door_ajar_s"
)

// CommandKind identifies an outbound command encoded by EncodeCommand.
type CommandKind string

const (
	CommandDoor     CommandKind = "door"
	CommandLight    CommandKind = "light"
	CommandUpdate   CommandKind = "update"
	CommandReboot   CommandKind = "reboot"
	CommandPing     CommandKind = "ping"
)

// DoorArgs is the argument shape for CommandDoor.
type DoorArgs struct {
	Command string // open | close | toggle
}

// LightArgs is the argument shape for CommandLight.
type LightArgs struct {
	State string // on | off | toggle
}

// DeviceArgs is the argument shape for CommandReboot and CommandPing.
type DeviceArgs struct {
	DeviceID string
}

// UpdateArgs is the argument shape for CommandUpdate.
type UpdateArgs struct {
	DeviceID string
	Manifest []byte // pre-serialised OTAManifest JSON
}
