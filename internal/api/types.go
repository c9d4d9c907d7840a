package api

// currentWeatherResponse is the "get current weather" operation output.
type currentWeatherResponse struct {
	TemperatureF *float64 `json:"temperature_f"`
	PressureInHg *float64 `json:"pressure_inhg"`
}

// historyPoint is one bucketed row of the "get weather history" operation
// output.
type historyPoint struct {
	Ts           string   `json:"ts"`
	TemperatureF *float64 `json:"temperature_f,omitempty"`
	PressureInHg *float64 `json:"pressure_inhg,omitempty"`
}

// freezerResponse is the "get freezer state" operation output.
type freezerResponse struct {
	TemperatureF *float64 `json:"temperature_f"`
}

// doorResponse is the "get door state" operation output.
type doorResponse struct {
	State string `json:"state"`
}

// lightResponse is the "get light state" operation output.
type lightResponse struct {
	State       string  `json:"state"`
	LastUpdated *string `json:"last_updated,omitempty"`
}

// acceptedResponse is the common shape for every command-style operation:
// door, light, reboot, trigger OTA.
type acceptedResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// otaTriggerResponse extends acceptedResponse with the manifest that was
// published, for callers that want to confirm exactly what was sent.
type otaTriggerResponse struct {
	Accepted bool        `json:"accepted"`
	Reason   string      `json:"reason,omitempty"`
	Manifest interface{} `json:"manifest,omitempty"`
}

// deviceInfo is one entry of the "list devices" / "get device" operation
// output — a JSON-friendly projection of state.DeviceState plus the fields
// that only the persistence layer carries (none at present; kept distinct
// from state.DeviceState in case the registry grows persisted metadata
// later).
type deviceInfo struct {
	DeviceID      string `json:"device_id"`
	Status        string `json:"status"`
	LastSeen      string `json:"last_seen,omitempty"`
	Version       string `json:"version,omitempty"`
	LastErrorCode string `json:"last_error_code,omitempty"`
	Health        string `json:"health,omitempty"`
}
