package fanout

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/iris-core/internal/alerts"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/state"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

type fakeSource struct {
	devices map[string]*state.DeviceState
	alerts  []alerts.ActiveAlert
}

func (f *fakeSource) Devices() map[string]*state.DeviceState { return f.devices }
func (f *fakeSource) Alerts() []alerts.ActiveAlert            { return f.alerts }

func TestTopicGroup(t *testing.T) {
	require.Equal(t, TypeDoor, topicGroup("garage-controller", state.ChangeDoor))
	require.Equal(t, TypeLight, topicGroup("garage-controller", state.ChangeLight))
	require.Equal(t, TypeWeather, topicGroup("garage-controller", state.ChangeWeather))
	require.Equal(t, TypeFreezer, topicGroup("house-monitor", state.ChangeFreezer))
	require.Equal(t, "house-monitor", topicGroup("house-monitor", state.ChangeStatus))
	require.Equal(t, "garage-controller", topicGroup("garage-controller", state.ChangePower))
}

func TestAlertSetsEqual(t *testing.T) {
	a := []alerts.ActiveAlert{{DeviceID: "house-monitor", Code: "device_silent"}}
	b := []alerts.ActiveAlert{{DeviceID: "house-monitor", Code: "device_silent"}}
	require.True(t, alertSetsEqual(a, b))

	c := []alerts.ActiveAlert{{DeviceID: "house-monitor", Code: "weather_stuck"}}
	require.False(t, alertSetsEqual(a, c))
	require.False(t, alertSetsEqual(a, nil))
	require.True(t, alertSetsEqual(nil, nil))
}

func TestHub_HandleUpgrade_SendsSnapshot(t *testing.T) {
	src := &fakeSource{
		devices: map[string]*state.DeviceState{"garage-controller": {DeviceID: "garage-controller", Status: state.StatusOnline}},
		alerts:  []alerts.ActiveAlert{{DeviceID: "house-monitor", Code: "device_silent"}},
	}
	fanoutCfg := config.FanoutConfig{QueueSize: 4, CoalesceWindow: 50}
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(fanoutCfg, wsCfg, src, testLogger())

	server := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"type":"snapshot"`)
	require.Contains(t, string(data), "garage-controller")
	require.Contains(t, string(data), "device_silent")
}
