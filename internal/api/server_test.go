package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/iris-core/internal/alerts"
	"github.com/nerrad567/iris-core/internal/bus"
	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/command"
	"github.com/nerrad567/iris-core/internal/fanout"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/persistence"
	"github.com/nerrad567/iris-core/internal/state"
)

type fakeRepo struct{}

func (f *fakeRepo) UpsertDevice(context.Context, persistence.DeviceRow) error { return nil }
func (f *fakeRepo) GetDevice(context.Context, string) (*persistence.DeviceRow, error) {
	return nil, persistence.ErrDeviceNotFound
}
func (f *fakeRepo) ListDevices(context.Context) ([]persistence.DeviceRow, error) { return nil, nil }
func (f *fakeRepo) InsertReadings(context.Context, []persistence.Reading) error  { return nil }
func (f *fakeRepo) History(context.Context, string, string, time.Time, time.Duration) ([]persistence.HistoryBucket, error) {
	return nil, nil
}
func (f *fakeRepo) RecordBoot(context.Context, persistence.Boot) error { return nil }
func (f *fakeRepo) ListBoots(context.Context, string, int) ([]persistence.Boot, error) {
	return nil, nil
}
func (f *fakeRepo) OpenIncident(context.Context, string, string, string, time.Time) error {
	return nil
}
func (f *fakeRepo) ResolveIncident(context.Context, string, string, string, time.Time) error {
	return nil
}
func (f *fakeRepo) ListOpenIncidents(context.Context) ([]persistence.Incident, error) {
	return nil, nil
}
func (f *fakeRepo) ListIncidents(context.Context, string) ([]persistence.Incident, error) {
	return nil, nil
}
func (f *fakeRepo) AppendLog(context.Context, persistence.LogLine) error { return nil }
func (f *fakeRepo) RecordSystemEvent(context.Context, string, string, string, time.Time) error {
	return nil
}
func (f *fakeRepo) PruneOlderThan(context.Context, time.Time) error { return nil }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testServer(t *testing.T) *Server {
	t.Helper()
	log := testLogger()
	store := state.New()
	registry := codec.NewRegistry()
	adapter := bus.New(nil, registry, store, config.MQTTConfig{}, log)
	dispatcher := command.New(adapter, registry, store, log)
	evaluator := alerts.New(config.AlertsConfig{FreezerTempCriticalF: 10, SilentDeviceS: 90, WeatherStallS: 120})
	repo := &fakeRepo{}
	hub := fanout.NewHub(config.FanoutConfig{}, config.WebSocketConfig{Path: "/ws"}, &testSource{store: store}, log)

	srv, err := New(Deps{
		Config:     config.APIConfig{Host: "127.0.0.1", Port: 0},
		WebSocket:  config.WebSocketConfig{Path: "/ws"},
		Store:      store,
		Repo:       repo,
		Evaluator:  evaluator,
		Dispatcher: dispatcher,
		Fanout:     hub,
		Logger:     log,
		Version:    "test",
	})
	require.NoError(t, err)
	return srv
}

type testSource struct{ store *state.Store }

func (s *testSource) Devices() map[string]*state.DeviceState { return s.store.SnapshotAll() }
func (s *testSource) Alerts() []alerts.ActiveAlert            { return nil }

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
	require.Contains(t, rec.Body.String(), `"bus_connected":false`, "no bus wired in testServer")
}

func TestHandleRoot(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"service":"iris-core"`)
}

func TestHandleDoorCommand_ValidatesBody(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/door/command", strings.NewReader(`{"command":"bogus"}`))
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDoorCommand_BusNotRunning(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/door/command", strings.NewReader(`{"command":"open"}`))
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleGetDevice_UnknownReturnsNotFound(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/nonexistent", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListDevices_EmptyStore(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "{}\n", rec.Body.String())
}

func TestHandleTriggerOTA_NotConfigured(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/garage-controller/update", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleCurrentAlerts_EmptyByDefault(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]\n", rec.Body.String())
}
