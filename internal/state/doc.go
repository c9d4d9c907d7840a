// Package state holds the authoritative in-memory view of device and
// sensor state (the State Store, C2).
//
// # Architecture
//
// Store has exactly one writer: Apply is called only by the Bus Adapter as
// it decodes events off the bus. Internally a mutex stands in for the
// single-writer/copy-on-read guarantee — the same discipline the teacher's
// device.Registry uses for its cache, generalized from a repository-backed
// cache to a pure in-memory store with a change-subscription API. Readers
// call Snapshot/SnapshotAll and get a deep copy; they never hold a
// reference into the writer's storage.
//
// Apply returns the StateChange records produced by the event, and the
// same records are pushed to every active Subscribe channel. A lagging
// subscriber's channel is bounded; on overflow the oldest buffered change
// is dropped to make room, per spec's "State Store → per-client fan-out"
// backpressure policy (closing a *client* on overflow is the fan-out
// package's responsibility, not the Store's — the Store only guarantees
// it never blocks on a slow subscriber).
//
// A background sweeper (RunOfflineSweeper) periodically marks devices
// offline once their last-seen timestamp exceeds the configured offline
// timeout.
package state
