// Package bus is the Bus Adapter (C4): the sole owner of the MQTT
// connection, translating between the wire and the rest of the server.
//
// # Architecture
//
// Adapter wraps an already-connected infrastructure/mqtt.Client (which
// owns reconnection with exponential backoff via its own config-driven
// options — see internal/infrastructure/mqtt/options.go) and layers two
// responsibilities on top:
//
//   - Inbound: subscribes to every pattern in mqtt.Topics{}.
//     SubscriptionPatterns(), decodes each message through a
//     codec.Registry, and applies the resulting event to a state.Store.
//     A message that fails to decode is logged and dropped; it never
//     reaches the State Store and never blocks the subscription.
//   - Outbound: a single bounded channel (Publish) that the Command
//     Dispatcher (C7) and OTA Orchestrator (C6) write to. Publish never
//     blocks the caller: a full channel drops its oldest queued message
//     to make room, incrementing a counter, grounded on the same
//     drop-oldest idiom the State Store uses for its subscriber channels
//     (internal/state/store.go).
//
// The teacher's mqtt.Client publishes fire-and-forget per call with no
// queue of its own; the explicit outbound channel here exists because
// this spec's commands and OTA manifest pushes need ordering and
// backpressure visibility that a bare synchronous Publish call doesn't
// give.
package bus
