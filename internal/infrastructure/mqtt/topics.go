package mqtt

import "fmt"

// Topic hierarchy for the IRIS bus. All topics are rooted at "home/".
//
// Topics is a small set of builders so callers never hand-assemble topic
// strings. Wildcard patterns here are subscription patterns, not concrete
// topics — matching a concrete topic against a pattern is the Codec
// Registry's job (internal/codec), not this package's.
type Topics struct{}

// ConsolidatedStatus returns the per-device consolidated status topic.
//
// Example: home/garage-controller/status
func (Topics) ConsolidatedStatus(deviceID string) string {
	return fmt.Sprintf("home/%s/status", deviceID)
}

// AllConsolidatedStatus returns the subscription pattern for every device's
// consolidated status.
//
// Pattern: home/+/status
func (Topics) AllConsolidatedStatus() string {
	return "home/+/status"
}

// GarageDoorStatus is the garage door state topic.
func (Topics) GarageDoorStatus() string { return "home/garage/door/status" }

// GarageDoorCommand is the garage door command topic.
func (Topics) GarageDoorCommand() string { return "home/garage/door/command" }

// GarageLightStatus is the garage light state topic.
func (Topics) GarageLightStatus() string { return "home/garage/light/status" }

// GarageLightCommand is the garage light command topic.
func (Topics) GarageLightCommand() string { return "home/garage/light/command" }

// GarageWeatherTemperature is the garage weather station temperature topic.
func (Topics) GarageWeatherTemperature() string { return "home/garage/weather/temperature" }

// GarageWeatherPressure is the garage weather station pressure topic.
func (Topics) GarageWeatherPressure() string { return "home/garage/weather/pressure" }

// GarageFreezerTemperature is the garage freezer temperature topic.
func (Topics) GarageFreezerTemperature() string { return "home/garage/freezer/temperature" }

// CityPowerStatus reports city utility power presence.
func (Topics) CityPowerStatus() string { return "home/power/city/status" }

// CityPowerHeartbeat carries periodic liveness timestamps from the city
// power monitor while mains power is present.
func (Topics) CityPowerHeartbeat() string { return "home/power/city/heartbeat" }

// StandaloneFreezerTemperature returns the subscription pattern for the
// independent freezer-probe sensors, keyed by probe label.
//
// Pattern: home/freezer/temperature/+
func (Topics) StandaloneFreezerTemperature() string { return "home/freezer/temperature/+" }

// FreezerDoorStatus is the standalone freezer door state topic.
func (Topics) FreezerDoorStatus() string { return "home/freezer/door/status" }

// FreezerDoorAjarTime carries how long the standalone freezer door has been
// held open, in seconds.
func (Topics) FreezerDoorAjarTime() string { return "home/freezer/door/ajar_time" }

// SystemStatus returns the subscription pattern for per-device lifecycle
// status (running/update_received/updating/updated/alive/offline).
//
// Pattern: home/system/+/status
func (Topics) SystemStatus() string { return "home/system/+/status" }

// SystemSos returns the subscription pattern for per-device SOS reports.
//
// Pattern: home/system/+/sos
func (Topics) SystemSos() string { return "home/system/+/sos" }

// SystemHealth returns the subscription pattern for per-device health.
//
// Pattern: home/system/+/health
func (Topics) SystemHealth() string { return "home/system/+/health" }

// SystemVersion returns the subscription pattern for per-device firmware
// version reports.
//
// Pattern: home/system/+/version
func (Topics) SystemVersion() string { return "home/system/+/version" }

// SystemBoot returns the subscription pattern for per-device boot reports.
//
// Pattern: home/system/+/boot
func (Topics) SystemBoot() string { return "home/system/+/boot" }

// SystemUpdate returns the OTA manifest topic for a specific device.
//
// Example: home/system/garage-controller/update
func (Topics) SystemUpdate(deviceID string) string {
	return fmt.Sprintf("home/system/%s/update", deviceID)
}

// SystemReboot returns the reboot command topic for a specific device.
//
// Example: home/system/garage-controller/reboot
func (Topics) SystemReboot(deviceID string) string {
	return fmt.Sprintf("home/system/%s/reboot", deviceID)
}

// SystemPing returns the liveness-probe command topic for a specific device.
//
// Example: home/system/garage-controller/ping
func (Topics) SystemPing(deviceID string) string {
	return fmt.Sprintf("home/system/%s/ping", deviceID)
}

// AllTopics returns the pattern matching every IRIS bus topic. Used only by
// diagnostic tooling, never by normal subscriptions.
//
// Pattern: home/#
func (Topics) AllTopics() string { return "home/#" }

// CoreStatus is the retained presence topic for the IRIS Core process
// itself — distinct from any device's own home/system/<id>/status. Carries
// the server's LWT and graceful-shutdown announcements so bus observers can
// tell the coordination core apart from device outages.
func (Topics) CoreStatus() string { return "home/system/iris-core/status" }

// SubscriptionPatterns returns every wildcard pattern the Bus Adapter
// subscribes on connect, plus the fixed garage/power/freezer topics that
// have no device_id wildcard segment.
func (t Topics) SubscriptionPatterns() []string {
	return []string{
		t.AllConsolidatedStatus(),
		t.GarageDoorStatus(),
		t.GarageLightStatus(),
		t.GarageWeatherTemperature(),
		t.GarageWeatherPressure(),
		t.GarageFreezerTemperature(),
		t.CityPowerStatus(),
		t.CityPowerHeartbeat(),
		t.StandaloneFreezerTemperature(),
		t.FreezerDoorStatus(),
		t.FreezerDoorAjarTime(),
		t.SystemStatus(),
		t.SystemSos(),
		t.SystemHealth(),
		t.SystemVersion(),
		t.SystemBoot(),
	}
}
