package persistence

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/state"
)

const (
	retryInitial = 100 * time.Millisecond
	retryCap     = 10 * time.Second
	retryJitter  = 0.2
)

// Writer is the Persistence Writer (C3). It subscribes to a state.Store's
// change stream and durably records readings, incidents, boots, and device
// health, batching numeric readings and retrying transient store errors
// with exponential backoff.
type Writer struct {
	repo   Repository
	influx *influxdb.Client
	cfg    config.PersistenceConfig
	log    *logging.Logger

	batch []Reading

	// errorFreeStreak counts consecutive consolidated-status messages with
	// an empty errors array, per device. Run's single goroutine is the only
	// reader/writer, so no lock is needed.
	errorFreeStreak map[string]int
}

// NewWriter builds a Writer. influx may be nil, in which case the optional
// dual-write path is skipped entirely.
func NewWriter(repo Repository, influx *influxdb.Client, cfg config.PersistenceConfig, log *logging.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 250
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	return &Writer{repo: repo, influx: influx, cfg: cfg, log: log, errorFreeStreak: make(map[string]int)}
}

// Run subscribes to store and blocks until ctx is cancelled, flushing any
// buffered readings before returning.
func (w *Writer) Run(ctx context.Context, store *state.Store) error {
	ch, unsubscribe := store.Subscribe(w.cfg.QueueSize)
	defer unsubscribe()

	ticker := time.NewTicker(time.Duration(w.cfg.BatchInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(context.Background())
			return ctx.Err()

		case c, ok := <-ch:
			if !ok {
				w.flush(context.Background())
				return nil
			}
			w.handle(ctx, c)
			if len(w.batch) >= w.cfg.BatchSize {
				w.flush(ctx)
			}

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Writer) handle(ctx context.Context, c state.StateChange) {
	switch detail := c.Detail.(type) {
	case *codec.TelemetryReadingPayload:
		w.enqueueReading(Reading{DeviceID: c.DeviceID, Metric: detail.Metric, Value: detail.Value, Ts: c.Ts})

	case *codec.ConsolidatedStatusPayload:
		w.enqueueConsolidated(c.DeviceID, detail, c.Ts)
		w.upsertFromState(ctx, c.After)
		w.trackErrorStreak(ctx, c.DeviceID, detail.Errors, c.Ts)

	case *codec.StatusUpdatePayload:
		w.upsertFromState(ctx, c.After)

	case *codec.HealthPayload:
		w.upsertFromState(ctx, c.After)

	case *codec.VersionPayload:
		w.upsertFromState(ctx, c.After)

	case *codec.BootPayload:
		w.upsertFromState(ctx, c.After)
		w.retry(ctx, "record boot", func() error {
			return w.repo.RecordBoot(ctx, Boot{
				DeviceID: c.DeviceID,
				Ts:       detail.Timestamp,
				Reason:   detail.Reason,
				Success:  detail.Success,
			})
		})

	case *codec.SosPayload:
		w.upsertFromState(ctx, c.After)
		w.retry(ctx, "open incident", func() error {
			return w.repo.OpenIncident(ctx, c.DeviceID, detail.Code, detail.Message, c.Ts)
		})
	}
}

// trackErrorStreak resolves every open incident for a device once its
// consolidated status reports an empty errors array for two consecutive
// messages (spec end-to-end scenario 5). Any non-empty errors array resets
// the streak immediately.
func (w *Writer) trackErrorStreak(ctx context.Context, deviceID string, errs []codec.StatusError, ts time.Time) {
	if len(errs) > 0 {
		w.errorFreeStreak[deviceID] = 0
		return
	}
	w.errorFreeStreak[deviceID]++
	if w.errorFreeStreak[deviceID] < 2 {
		return
	}
	w.errorFreeStreak[deviceID] = 0

	open, err := w.repo.ListIncidents(ctx, deviceID)
	if err != nil {
		w.log.Warn("listing incidents for resolution check", "device_id", deviceID, "error", err)
		return
	}
	for _, inc := range open {
		if inc.Resolved {
			continue
		}
		code := inc.Code
		w.retry(ctx, "resolve incident", func() error {
			return w.repo.ResolveIncident(ctx, deviceID, code, "two consecutive clean status reports", ts)
		})
	}
}

func (w *Writer) enqueueConsolidated(deviceID string, p *codec.ConsolidatedStatusPayload, ts time.Time) {
	if p.Weather != nil {
		if p.Weather.TemperatureF != nil {
			w.enqueueReading(Reading{DeviceID: deviceID, Metric: codec.MetricGarageWeatherTemperatureF, Value: *p.Weather.TemperatureF, Ts: ts})
		}
		if p.Weather.PressureInHg != nil {
			w.enqueueReading(Reading{DeviceID: deviceID, Metric: codec.MetricGarageWeatherPressureInHg, Value: *p.Weather.PressureInHg, Ts: ts})
		}
	}
	if p.Freezer != nil {
		if p.Freezer.TemperatureF != nil {
			w.enqueueReading(Reading{DeviceID: deviceID, Metric: codec.MetricGarageFreezerTemperatureF, Value: *p.Freezer.TemperatureF, Ts: ts})
		}
		w.enqueueReading(Reading{DeviceID: deviceID, Metric: codec.MetricFreezerDoorAjarS, Value: float64(p.Freezer.DoorAjarS), Ts: ts})
	}
}

func (w *Writer) enqueueReading(r Reading) {
	w.batch = append(w.batch, r)
	if w.influx != nil && w.influx.IsConnected() {
		w.influx.WriteDeviceMetric(r.DeviceID, r.Metric, r.Value)
	}
}

func (w *Writer) upsertFromState(ctx context.Context, d *state.DeviceState) {
	if d == nil {
		return
	}
	row := DeviceRow{
		DeviceID:      d.DeviceID,
		Status:        string(d.Status),
		LastSeen:      d.LastSeen,
		Version:       d.Version,
		LastErrorCode: d.LastErrorCode,
		LastBoot:      d.LastBoot,
		IPAddress:     d.IPAddress,
		RSSI:          d.RSSI,
	}
	w.retry(ctx, "upsert device", func() error {
		return w.repo.UpsertDevice(ctx, row)
	})
}

// flush writes the buffered readings in one batch. Shedding under
// backpressure applies only here, to readings — never to the immediate
// incident/boot/device writes in handle, per spec's critical-event
// durability requirement. When the batch still can't be written after
// retrying, it is dropped and a system event records the loss rather than
// blocking the writer indefinitely.
func (w *Writer) flush(ctx context.Context) {
	if len(w.batch) == 0 {
		return
	}
	batch := w.batch
	w.batch = nil

	err := w.retryN(ctx, "insert readings", 5, func() error {
		return w.repo.InsertReadings(ctx, batch)
	})
	if err != nil {
		w.log.Error("dropping reading batch after repeated failures", "count", len(batch), "error", err)
		_ = w.repo.RecordSystemEvent(context.Background(), "persistence_reading_batch_dropped", "", err.Error(), time.Now())
	}
}

// retry retries fn with backoff until it succeeds or ctx is done, logging
// each failure. Used for writes that must never be silently dropped.
func (w *Writer) retry(ctx context.Context, op string, fn func() error) {
	delay := retryInitial
	for {
		err := fn()
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("persistence write failed, retrying", "op", op, "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(jitter(delay)):
		}
		delay = nextDelay(delay)
	}
}

// retryN retries fn up to maxAttempts times with backoff, returning the
// last error if every attempt failed.
func (w *Writer) retryN(ctx context.Context, op string, maxAttempts int, fn func() error) error {
	delay := retryInitial
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return errors.Join(lastErr, ctx.Err())
		}
		w.log.Warn("persistence write failed, retrying", "op", op, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(jitter(delay)):
		}
		delay = nextDelay(delay)
	}
	return lastErr
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > retryCap {
		d = retryCap
	}
	return d
}

func jitter(d time.Duration) time.Duration {
	spread := float64(d) * retryJitter
	offset := (rand.Float64()*2 - 1) * spread
	return d + time.Duration(offset)
}
