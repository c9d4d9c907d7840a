package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DeviceRow is the durable devices-table view of one device, independent of
// the in-memory state.DeviceState snapshot.
type DeviceRow struct {
	DeviceID      string
	Status        string
	LastSeen      time.Time
	Version       string
	LastErrorCode string
	LastBoot      time.Time
	IPAddress     string
	RSSI          *int
}

// Incident is one row of the incidents table.
type Incident struct {
	ID             int64
	DeviceID       string
	Code           string
	Message        string
	FirstSeen      time.Time
	LastSeen       time.Time
	Resolved       bool
	ResolutionNote string
}

// Boot is one row of the device_boots table.
type Boot struct {
	ID       int64
	DeviceID string
	Ts       time.Time
	Reason   string
	Success  bool
}

// Reading is one row of the sensor_readings table.
type Reading struct {
	DeviceID string
	Metric   string
	Value    float64
	Ts       time.Time
}

// LogLine is one row of the device_logs table.
type LogLine struct {
	DeviceID string
	Ts       time.Time
	Level    string
	Message  string
}

// Repository defines the durable store operations the Persistence Writer
// drives. It is the SQL boundary the writer and the Query Surface share.
type Repository interface {
	UpsertDevice(ctx context.Context, d DeviceRow) error
	GetDevice(ctx context.Context, deviceID string) (*DeviceRow, error)
	ListDevices(ctx context.Context) ([]DeviceRow, error)

	InsertReadings(ctx context.Context, readings []Reading) error
	History(ctx context.Context, deviceID, metric string, since time.Time, bucket time.Duration) ([]HistoryBucket, error)

	RecordBoot(ctx context.Context, b Boot) error
	ListBoots(ctx context.Context, deviceID string, limit int) ([]Boot, error)

	OpenIncident(ctx context.Context, deviceID, code, message string, ts time.Time) error
	ResolveIncident(ctx context.Context, deviceID, code, note string, ts time.Time) error
	ListOpenIncidents(ctx context.Context) ([]Incident, error)
	ListIncidents(ctx context.Context, deviceID string) ([]Incident, error)

	AppendLog(ctx context.Context, l LogLine) error
	RecordSystemEvent(ctx context.Context, kind, deviceID, detail string, ts time.Time) error

	PruneOlderThan(ctx context.Context, cutoff time.Time) error
}

// SQLiteRepository implements Repository over the schema in migrations/.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// UpsertDevice inserts or replaces the devices row for a device_id.
func (r *SQLiteRepository) UpsertDevice(ctx context.Context, d DeviceRow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, status, last_seen, version, last_error_code, last_boot, ip_address, rssi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			status = excluded.status,
			last_seen = excluded.last_seen,
			version = excluded.version,
			last_error_code = excluded.last_error_code,
			last_boot = excluded.last_boot,
			ip_address = excluded.ip_address,
			rssi = excluded.rssi`,
		d.DeviceID,
		d.Status,
		nullableTime(d.LastSeen),
		nullableString(d.Version),
		nullableString(d.LastErrorCode),
		nullableTime(d.LastBoot),
		nullableString(d.IPAddress),
		nullableInt(d.RSSI),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// GetDevice retrieves the durable row for a device_id.
func (r *SQLiteRepository) GetDevice(ctx context.Context, deviceID string) (*DeviceRow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT device_id, status, last_seen, version, last_error_code, last_boot, ip_address, rssi
		FROM devices WHERE device_id = ?`, deviceID)
	d, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return d, nil
}

// ListDevices returns all durable device rows, ordered by device_id.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]DeviceRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, status, last_seen, version, last_error_code, last_boot, ip_address, rssi
		FROM devices ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var out []DeviceRow
	for rows.Next() {
		d, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// InsertReadings inserts a batch of sensor readings in a single transaction.
func (r *SQLiteRepository) InsertReadings(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reading batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sensor_readings (device_id, metric, value, ts) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing reading insert: %w", err)
	}
	defer stmt.Close()

	for _, rd := range readings {
		if _, err := stmt.ExecContext(ctx, rd.DeviceID, rd.Metric, rd.Value, rd.Ts.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reading batch: %w", err)
	}
	return nil
}

// RecordBoot appends a boot-history row.
func (r *SQLiteRepository) RecordBoot(ctx context.Context, b Boot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_boots (device_id, ts, reason, success) VALUES (?, ?, ?, ?)`,
		b.DeviceID, b.Ts.UTC().Format(time.RFC3339), nullableString(b.Reason), boolToInt(b.Success),
	)
	if err != nil {
		return fmt.Errorf("recording boot: %w", err)
	}
	return nil
}

// ListBoots returns recent boots for a device, newest first.
func (r *SQLiteRepository) ListBoots(ctx context.Context, deviceID string, limit int) ([]Boot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_id, ts, reason, success FROM device_boots
		WHERE device_id = ? ORDER BY ts DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying boots: %w", err)
	}
	defer rows.Close()

	var out []Boot
	for rows.Next() {
		var b Boot
		var ts string
		var reason sql.NullString
		var success int
		if err := rows.Scan(&b.ID, &b.DeviceID, &ts, &reason, &success); err != nil {
			return nil, fmt.Errorf("scanning boot: %w", err)
		}
		b.Reason = reason.String
		b.Success = success != 0
		parsed, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		b.Ts = parsed
		out = append(out, b)
	}
	return out, rows.Err()
}

// OpenIncident opens or refreshes the single unresolved incident for a
// (device_id, code) pair, relying on the partial unique index to collapse
// repeat sos reports into one open row.
func (r *SQLiteRepository) OpenIncident(ctx context.Context, deviceID, code, message string, ts time.Time) error {
	tsStr := ts.UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, `
		UPDATE incidents SET last_seen = ?, message = ?
		WHERE device_id = ? AND code = ? AND resolved = 0`,
		tsStr, message, deviceID, code,
	)
	if err != nil {
		return fmt.Errorf("refreshing incident: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking incident refresh: %w", err)
	}
	if n > 0 {
		return nil
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO incidents (device_id, code, message, first_seen, last_seen, resolved)
		VALUES (?, ?, ?, ?, ?, 0)`,
		deviceID, code, message, tsStr, tsStr,
	)
	if err != nil {
		return fmt.Errorf("opening incident: %w", err)
	}
	return nil
}

// ResolveIncident marks the open incident for a (device_id, code) pair
// resolved. A no-op if none is open.
func (r *SQLiteRepository) ResolveIncident(ctx context.Context, deviceID, code, note string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE incidents SET resolved = 1, resolution_note = ?, last_seen = ?
		WHERE device_id = ? AND code = ? AND resolved = 0`,
		nullableString(note), ts.UTC().Format(time.RFC3339), deviceID, code,
	)
	if err != nil {
		return fmt.Errorf("resolving incident: %w", err)
	}
	return nil
}

// ListOpenIncidents returns every unresolved incident, across all devices.
func (r *SQLiteRepository) ListOpenIncidents(ctx context.Context) ([]Incident, error) {
	return r.queryIncidents(ctx, `
		SELECT id, device_id, code, message, first_seen, last_seen, resolved, resolution_note
		FROM incidents WHERE resolved = 0 ORDER BY first_seen`)
}

// ListIncidents returns incident history for a device, newest first.
func (r *SQLiteRepository) ListIncidents(ctx context.Context, deviceID string) ([]Incident, error) {
	return r.queryIncidents(ctx, `
		SELECT id, device_id, code, message, first_seen, last_seen, resolved, resolution_note
		FROM incidents WHERE device_id = ? ORDER BY first_seen DESC`, deviceID)
}

func (r *SQLiteRepository) queryIncidents(ctx context.Context, query string, args ...any) ([]Incident, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var inc Incident
		var message, resolutionNote sql.NullString
		var firstSeen, lastSeen string
		var resolved int
		if err := rows.Scan(&inc.ID, &inc.DeviceID, &inc.Code, &message, &firstSeen, &lastSeen, &resolved, &resolutionNote); err != nil {
			return nil, fmt.Errorf("scanning incident: %w", err)
		}
		inc.Message = message.String
		inc.ResolutionNote = resolutionNote.String
		inc.Resolved = resolved != 0

		inc.FirstSeen, err = parseTimestamp(firstSeen)
		if err != nil {
			return nil, err
		}
		inc.LastSeen, err = parseTimestamp(lastSeen)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// AppendLog stores one device log line (the Bus Adapter writes one for each
// bus message it cannot decode).
func (r *SQLiteRepository) AppendLog(ctx context.Context, l LogLine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_logs (device_id, ts, level, message) VALUES (?, ?, ?, ?)`,
		l.DeviceID, l.Ts.UTC().Format(time.RFC3339), nullableString(l.Level), l.Message,
	)
	if err != nil {
		return fmt.Errorf("appending log line: %w", err)
	}
	return nil
}

// RecordSystemEvent stores one server-originated lifecycle event.
func (r *SQLiteRepository) RecordSystemEvent(ctx context.Context, kind, deviceID, detail string, ts time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_events (ts, kind, device_id, detail) VALUES (?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339), kind, nullableString(deviceID), nullableString(detail),
	)
	if err != nil {
		return fmt.Errorf("recording system event: %w", err)
	}
	return nil
}

// PruneOlderThan deletes readings, resolved incidents, boots, and logs with
// a timestamp before cutoff. Open incidents are never pruned regardless of
// age.
func (r *SQLiteRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) error {
	c := cutoff.UTC().Format(time.RFC3339)
	stmts := []string{
		`DELETE FROM sensor_readings WHERE ts < ?`,
		`DELETE FROM device_logs WHERE ts < ?`,
		`DELETE FROM device_boots WHERE ts < ?`,
		`DELETE FROM incidents WHERE resolved = 1 AND last_seen < ?`,
		`DELETE FROM system_events WHERE ts < ?`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt, c); err != nil {
			return fmt.Errorf("pruning: %w", err)
		}
	}
	return nil
}

func scanDeviceRow(scanner interface{ Scan(dest ...any) error }) (*DeviceRow, error) {
	var d DeviceRow
	var lastSeen, version, lastErrorCode, lastBoot, ipAddress sql.NullString
	var rssi sql.NullInt64

	err := scanner.Scan(&d.DeviceID, &d.Status, &lastSeen, &version, &lastErrorCode, &lastBoot, &ipAddress, &rssi)
	if err != nil {
		return nil, err
	}

	if lastSeen.Valid {
		t, err := parseTimestamp(lastSeen.String)
		if err != nil {
			return nil, err
		}
		d.LastSeen = t
	}
	if lastBoot.Valid {
		t, err := parseTimestamp(lastBoot.String)
		if err != nil {
			return nil, err
		}
		d.LastBoot = t
	}
	d.Version = version.String
	d.LastErrorCode = lastErrorCode.String
	d.IPAddress = ipAddress.String
	if rssi.Valid {
		v := int(rssi.Int64)
		d.RSSI = &v
	}
	return &d, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
