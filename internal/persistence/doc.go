// Package persistence is the Persistence Writer (C3): the durable store of
// readings, incidents, boots, and device health, plus the supplemented
// device-log and system-event audit trails.
//
// # Architecture
//
// Writer subscribes to the State Store's change stream (state.Store.
// Subscribe) and translates each StateChange into repository calls.
// Numeric readings are batched — up to BatchSize events or BatchInterval,
// whichever comes first — and flushed in a single transaction, grounded on
// the teacher's SQLite repository query shape
// (internal/device/repository.go) but with the batching and retry layer
// the teacher's Registry doesn't need, since its writes are triggered by
// low-frequency admin operations rather than a firehose of sensor
// telemetry.
//
// Status, incident, and boot writes bypass the reading batch entirely —
// they go straight to the repository so they are never shed under
// backpressure. Store errors retry with exponential backoff
// (100ms initial, 10s cap, ±20% jitter); repeated permanent failure emits
// a system event and the writer keeps serving live state regardless (the
// Persistence Writer's failure never blocks the Bus Adapter or State
// Store).
package persistence
