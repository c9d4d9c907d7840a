package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database with the persistence
// schema, mirroring migrations/20260101_000000_initial_schema.up.sql and
// migrations/20260101_000100_logs_and_events.up.sql.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	schema := `
		CREATE TABLE devices (
			device_id       TEXT PRIMARY KEY,
			status          TEXT NOT NULL DEFAULT 'unknown',
			last_seen       TEXT,
			version         TEXT,
			last_error_code TEXT,
			last_boot       TEXT,
			ip_address      TEXT,
			rssi            INTEGER
		);
		CREATE TABLE sensor_readings (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			metric    TEXT NOT NULL,
			value     REAL NOT NULL,
			ts        TEXT NOT NULL
		);
		CREATE INDEX idx_sensor_readings_device_metric_ts ON sensor_readings (device_id, metric, ts);
		CREATE TABLE incidents (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id        TEXT NOT NULL,
			code             TEXT NOT NULL,
			message          TEXT,
			first_seen       TEXT NOT NULL,
			last_seen        TEXT NOT NULL,
			resolved         INTEGER NOT NULL DEFAULT 0,
			resolution_note  TEXT
		);
		CREATE UNIQUE INDEX idx_incidents_open_unique ON incidents (device_id, code) WHERE resolved = 0;
		CREATE INDEX idx_incidents_device_id ON incidents (device_id);
		CREATE TABLE device_boots (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			ts        TEXT NOT NULL,
			reason    TEXT,
			success   INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_device_boots_device_id_ts ON device_boots (device_id, ts);
		CREATE TABLE device_logs (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			ts        TEXT NOT NULL,
			level     TEXT,
			message   TEXT NOT NULL
		);
		CREATE INDEX idx_device_logs_device_id_ts ON device_logs (device_id, ts);
		CREATE TABLE system_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			ts        TEXT NOT NULL,
			kind      TEXT NOT NULL,
			device_id TEXT,
			detail    TEXT
		);
		CREATE INDEX idx_system_events_ts ON system_events (ts);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteRepository_UpsertAndGetDevice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	rssi := -42

	require.NoError(t, repo.UpsertDevice(ctx, DeviceRow{
		DeviceID: "garage-controller", Status: "online", LastSeen: now, Version: "1.2.3", RSSI: &rssi,
	}))

	got, err := repo.GetDevice(ctx, "garage-controller")
	require.NoError(t, err)
	require.Equal(t, "online", got.Status)
	require.Equal(t, "1.2.3", got.Version)
	require.NotNil(t, got.RSSI)
	require.Equal(t, -42, *got.RSSI)

	// Upsert again should replace, not duplicate.
	require.NoError(t, repo.UpsertDevice(ctx, DeviceRow{
		DeviceID: "garage-controller", Status: "offline", LastSeen: now.Add(time.Minute),
	}))
	got, err = repo.GetDevice(ctx, "garage-controller")
	require.NoError(t, err)
	require.Equal(t, "offline", got.Status)

	all, err := repo.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSQLiteRepository_GetDevice_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	_, err := repo.GetDevice(context.Background(), "nonexistent")
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSQLiteRepository_InsertReadingsAndHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	readings := []Reading{
		{DeviceID: "d1", Metric: "temp_f", Value: 10.0, Ts: base},
		{DeviceID: "d1", Metric: "temp_f", Value: 20.0, Ts: base.Add(30 * time.Second)},
		{DeviceID: "d1", Metric: "temp_f", Value: 30.0, Ts: base.Add(90 * time.Second)},
	}
	require.NoError(t, repo.InsertReadings(ctx, readings))

	buckets, err := repo.History(ctx, "d1", "temp_f", base.Add(-time.Hour), time.Minute)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.InDelta(t, 15.0, buckets[0].Avg, 0.0001)
	require.Equal(t, 2, buckets[0].SampleCount)
	require.InDelta(t, 30.0, buckets[1].Avg, 0.0001)
}

func TestSQLiteRepository_InsertReadings_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	require.NoError(t, repo.InsertReadings(context.Background(), nil))
}

func TestSQLiteRepository_IncidentLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	t1 := time.Now().UTC()

	require.NoError(t, repo.OpenIncident(ctx, "house-monitor", "ds18b20_read_error", "sensor fault", t1))
	// Repeat sos reports must collapse into the same open row.
	require.NoError(t, repo.OpenIncident(ctx, "house-monitor", "ds18b20_read_error", "sensor fault again", t1.Add(time.Minute)))

	open, err := repo.ListOpenIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "sensor fault again", open[0].Message)

	require.NoError(t, repo.ResolveIncident(ctx, "house-monitor", "ds18b20_read_error", "sensor replaced", t1.Add(2*time.Minute)))

	open, err = repo.ListOpenIncidents(ctx)
	require.NoError(t, err)
	require.Empty(t, open)

	history, err := repo.ListIncidents(ctx, "house-monitor")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].Resolved)
	require.Equal(t, "sensor replaced", history[0].ResolutionNote)

	// A fresh sos after resolution opens a new row.
	require.NoError(t, repo.OpenIncident(ctx, "house-monitor", "ds18b20_read_error", "fault again", t1.Add(3*time.Minute)))
	open, err = repo.ListOpenIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestSQLiteRepository_Boots(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.RecordBoot(ctx, Boot{DeviceID: "garage-controller", Ts: now, Reason: "power_cycle", Success: true}))
	require.NoError(t, repo.RecordBoot(ctx, Boot{DeviceID: "garage-controller", Ts: now.Add(time.Hour), Reason: "watchdog", Success: false}))

	boots, err := repo.ListBoots(ctx, "garage-controller", 10)
	require.NoError(t, err)
	require.Len(t, boots, 2)
	require.Equal(t, "watchdog", boots[0].Reason) // newest first
	require.False(t, boots[0].Success)
}

func TestSQLiteRepository_AppendLogAndSystemEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AppendLog(ctx, LogLine{DeviceID: "garage-controller", Ts: time.Now(), Level: "warn", Message: "wifi flapping"}))
	require.NoError(t, repo.RecordSystemEvent(ctx, "ota_rollout_started", "garage-controller", "ref=main", time.Now()))

	var logCount, eventCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM device_logs").Scan(&logCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM system_events").Scan(&eventCount))
	require.Equal(t, 1, logCount)
	require.Equal(t, 1, eventCount)
}

func TestSQLiteRepository_PruneOlderThan(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	old := time.Now().Add(-30 * 24 * time.Hour)
	recent := time.Now()

	require.NoError(t, repo.InsertReadings(ctx, []Reading{{DeviceID: "d1", Metric: "m", Value: 1, Ts: old}}))
	require.NoError(t, repo.InsertReadings(ctx, []Reading{{DeviceID: "d1", Metric: "m", Value: 2, Ts: recent}}))

	require.NoError(t, repo.PruneOlderThan(ctx, time.Now().Add(-24*time.Hour)))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sensor_readings").Scan(&count))
	require.Equal(t, 1, count)
}
