package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ConsolidatedStatus(t *testing.T) {
	r := NewRegistry()
	payload := []byte(`{
		"timestamp": 1700000000000,
		"uptime_s": 120,
		"health": "online",
		"door": {"state": "open", "open_switch": true, "closed_switch": false},
		"errors": []
	}`)

	ev, err := r.Decode("home/garage-controller/status", payload)
	require.NoError(t, err)
	assert.Equal(t, EventConsolidatedStatus, ev.Kind)
	assert.Equal(t, "garage-controller", ev.DeviceID)
	require.NotNil(t, ev.ConsolidatedStatus)
	assert.Equal(t, "online", ev.ConsolidatedStatus.Health)
	require.NotNil(t, ev.ConsolidatedStatus.Door)
	assert.Equal(t, "open", ev.ConsolidatedStatus.Door.State)
}

func TestDecode_GarageDoorStatus(t *testing.T) {
	r := NewRegistry()
	ev, err := r.Decode("home/garage/door/status", []byte("opening"))
	require.NoError(t, err)
	assert.Equal(t, EventDoorState, ev.Kind)
	assert.Equal(t, DeviceGarageController, ev.DeviceID)
	assert.Equal(t, "opening", ev.DoorState.State)
}

func TestDecode_GarageDoorStatus_InvalidValue(t *testing.T) {
	r := NewRegistry()
	_, err := r.Decode("home/garage/door/status", []byte("sideways"))
	require.Error(t, err)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecode_SystemStatus_ExtractsDeviceID(t *testing.T) {
	r := NewRegistry()
	ev, err := r.Decode("home/system/house-monitor/status", []byte("running"))
	require.NoError(t, err)
	assert.Equal(t, EventStatusUpdate, ev.Kind)
	assert.Equal(t, "house-monitor", ev.DeviceID)
	assert.Equal(t, "running", ev.StatusUpdate.Status)
}

func TestDecode_Sos(t *testing.T) {
	r := NewRegistry()
	payload := []byte(`{"error":"ds18b20_read_error","message":"CRC mismatch","timestamp":1700000000000,"device_id":"house-monitor"}`)
	ev, err := r.Decode("home/system/house-monitor/sos", payload)
	require.NoError(t, err)
	assert.Equal(t, EventSos, ev.Kind)
	assert.Equal(t, "house-monitor", ev.DeviceID)
	assert.Equal(t, "ds18b20_read_error", ev.Sos.Code)
	assert.Equal(t, "CRC mismatch", ev.Sos.Message)
}

func TestDecode_Boot(t *testing.T) {
	r := NewRegistry()
	payload := []byte(`{"ts":1700000000000,"reason":"power_cycle","success":true}`)
	ev, err := r.Decode("home/system/garage-controller/boot", payload)
	require.NoError(t, err)
	assert.Equal(t, EventBoot, ev.Kind)
	assert.Equal(t, "power_cycle", ev.Boot.Reason)
	assert.True(t, ev.Boot.Success)
}

func TestDecode_CityPowerStatus(t *testing.T) {
	r := NewRegistry()
	ev, err := r.Decode("home/power/city/status", []byte("offline"))
	require.NoError(t, err)
	assert.Equal(t, EventPowerStatus, ev.Kind)
	assert.Equal(t, "offline", ev.PowerStatus.Status)
}

func TestDecode_StandaloneFreezerTemperature(t *testing.T) {
	r := NewRegistry()
	ev, err := r.Decode("home/freezer/temperature/main", []byte("12.5"))
	require.NoError(t, err)
	assert.Equal(t, EventTelemetryReading, ev.Kind)
	assert.Equal(t, DeviceHouseMonitor, ev.DeviceID)
	assert.Equal(t, "standalone_freezer_temperature_f_main", ev.TelemetryReading.Metric)
	assert.InDelta(t, 12.5, ev.TelemetryReading.Value, 0.0001)
}

func TestDecode_MostSpecificPatternWins(t *testing.T) {
	r := NewRegistry()
	// "home/garage/door/status" matches both the fixed garage door pattern
	// and no wildcard pattern coincidentally overlapping it — confirm the
	// fixed (non-wildcard) decoder still resolves correctly even though
	// AllConsolidatedStatus ("home/+/status") has a different level count
	// and therefore cannot match a 4-level topic at all.
	ev, err := r.Decode("home/garage/door/status", []byte("closed"))
	require.NoError(t, err)
	assert.Equal(t, EventDoorState, ev.Kind)
}

func TestDecode_UnknownTopicOutsideHome_Ignored(t *testing.T) {
	r := NewRegistry()
	ev, err := r.Decode("other/topic", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, Event{}, ev)
}

func TestDecode_UnregisteredHomeTopic_DecodeError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Decode("home/unknown/thing", []byte("x"))
	require.Error(t, err)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestEncodeCommand_DoorRoundTrips(t *testing.T) {
	r := NewRegistry()
	topic, payload, err := r.EncodeCommand(CommandDoor, DoorArgs{Command: "open"})
	require.NoError(t, err)
	assert.Equal(t, "home/garage/door/command", topic)
	assert.Equal(t, []byte("open"), payload)
}

func TestEncodeCommand_LightInvalidState(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.EncodeCommand(CommandLight, LightArgs{State: "blink"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgs)
}

func TestEncodeCommand_RebootAndPing(t *testing.T) {
	r := NewRegistry()

	topic, payload, err := r.EncodeCommand(CommandReboot, DeviceArgs{DeviceID: "garage-controller"})
	require.NoError(t, err)
	assert.Equal(t, "home/system/garage-controller/reboot", topic)
	assert.Equal(t, []byte("{}"), payload)

	topic, _, err = r.EncodeCommand(CommandPing, DeviceArgs{DeviceID: "house-monitor"})
	require.NoError(t, err)
	assert.Equal(t, "home/system/house-monitor/ping", topic)
}

func TestEncodeCommand_UpdateRejectsInvalidJSON(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.EncodeCommand(CommandUpdate, UpdateArgs{DeviceID: "garage-controller", Manifest: []byte("not json")})
	require.Error(t, err)
}

func TestEncodeCommand_UpdateRoundTrips(t *testing.T) {
	r := NewRegistry()
	manifest := []byte(`{"ref":"main","files":[]}`)
	topic, payload, err := r.EncodeCommand(CommandUpdate, UpdateArgs{DeviceID: "garage-controller", Manifest: manifest})
	require.NoError(t, err)
	assert.Equal(t, "home/system/garage-controller/update", topic)
	assert.Equal(t, manifest, payload)
}

func TestEncodeCommand_UnknownKind(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.EncodeCommand(CommandKind("bogus"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
