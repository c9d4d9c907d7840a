// Package codec decodes bus payloads into typed events and encodes
// outbound commands into (topic, payload) pairs.
//
// # Architecture
//
// The Codec Registry sits between the Bus Adapter and the State Store. The
// Bus Adapter never interprets a payload itself — it hands the raw
// (topic, payload) pair to Decode, which resolves the most specific
// registered topic pattern and runs the matching decoder. Decoders are
// pure and never block; a malformed payload produces a DecodeError rather
// than a panic or partial event.
//
// # Topic matching
//
// Patterns use MQTT wildcard syntax: "+" matches exactly one topic level,
// "#" matches any number of trailing levels. When a concrete topic matches
// more than one registered pattern, the most specific pattern wins —
// specificity is measured by wildcard count (fewer wildcards first), then
// by pattern length (longer first), then by registration order.
//
// # Usage
//
//	reg := codec.NewRegistry()
//	event, err := reg.Decode("home/garage-controller/status", payload)
//	if err != nil {
//	    var decodeErr *codec.DecodeError
//	    if errors.As(err, &decodeErr) {
//	        log.Warn("decode failed", "topic", decodeErr.Topic, "reason", decodeErr.Reason)
//	    }
//	}
//
//	topic, payload, err := reg.EncodeCommand(codec.CommandDoor, codec.DoorArgs{Command: "open"})
package codec
