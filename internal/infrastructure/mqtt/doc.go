// Package mqtt provides MQTT client connectivity for IRIS Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// IRIS Core uses MQTT as the sole bus connecting it to the device fleet.
// Devices publish consolidated status, garage/freezer sensor readings, and
// system lifecycle events; Core publishes commands and OTA manifests back.
// The broker (Mosquitto) decouples Core from any given device's network path.
//
//	IRIS Core ↔ MQTT Broker ↔ Devices
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff capped at cfg.Reconnect.MaxDelay (30s by default)
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all consolidated device status updates
//	err = client.Subscribe(mqtt.Topics{}.AllConsolidatedStatus(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish command
//	topic := mqtt.Topics{}.GarageDoorCommand()
//	client.Publish(topic, []byte("open"), 1, false)
//
// # Related Documents
//
//   - docs/protocols/mqtt.md — Topic structure and message formats
//   - docs/architecture/mqtt-resilience.md — Persistence and recovery
//   - docs/architecture/decisions/002-mqtt-internal-bus.md — Why MQTT
package mqtt
