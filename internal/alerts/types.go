package alerts

import "time"

// Alert codes, stable across evaluations so clients can key off them.
const (
	CodeFreezerTempCritical = "freezer_temp_critical"
	CodeFreezerDoorAjar     = "freezer_door_ajar"
	CodeCityPowerOffline    = "city_power_offline"
	CodeDeviceDegraded      = "device_degraded"
	CodeDeviceSilent        = "device_silent"
	CodeWeatherStuck        = "weather_stuck"
)

// ActiveAlert is a derived, non-persistent record of one currently-true
// alert predicate for one device.
type ActiveAlert struct {
	DeviceID string
	Code     string
	Message  string
	LastSeen time.Time
}

func key(deviceID, code string) string { return deviceID + "\x00" + code }
