// Package command implements the Command Dispatcher (C7): it turns a small
// set of logical operations — door, light, reboot — into encoded bus
// messages and hands them to the Bus Adapter's outbound queue. It never
// waits for a device acknowledgement; accepted means "queued for publish",
// not "device complied". trigger_update is handled separately by the OTA
// Orchestrator (C6), which the Query Surface calls directly so a
// successful publish is recorded in its own attempt tracker.
package command

import (
	"fmt"

	"github.com/nerrad567/iris-core/internal/bus"
	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/state"
)

// Dispatcher is the Command Dispatcher (C7).
type Dispatcher struct {
	bus      *bus.Adapter
	registry *codec.Registry
	store    *state.Store
	log      *logging.Logger
}

// New builds a Dispatcher.
func New(adapter *bus.Adapter, registry *codec.Registry, store *state.Store, log *logging.Logger) *Dispatcher {
	return &Dispatcher{bus: adapter, registry: registry, store: store, log: log}
}

// Door sends a garage door command (open/close/toggle). The garage
// controller is the only door-capable device in this deployment, so no
// device_id is needed.
func (d *Dispatcher) Door(command string) error {
	topic, payload, err := d.registry.EncodeCommand(codec.CommandDoor, codec.DoorArgs{Command: command})
	if err != nil {
		return err
	}
	return d.publish(topic, payload)
}

// Light sends a garage light command (on/off/toggle).
func (d *Dispatcher) Light(state string) error {
	topic, payload, err := d.registry.EncodeCommand(codec.CommandLight, codec.LightArgs{State: state})
	if err != nil {
		return err
	}
	return d.publish(topic, payload)
}

// LightToggle flips the garage light without the caller needing to know
// its current reported state.
func (d *Dispatcher) LightToggle() error {
	return d.Light("toggle")
}

// Reboot asks a specific device to restart. deviceID must already be known
// to the state store.
func (d *Dispatcher) Reboot(deviceID string) error {
	if err := d.requireKnownDevice(deviceID); err != nil {
		return err
	}
	topic, payload, err := d.registry.EncodeCommand(codec.CommandReboot, codec.DeviceArgs{DeviceID: deviceID})
	if err != nil {
		return err
	}
	return d.publish(topic, payload)
}

func (d *Dispatcher) requireKnownDevice(deviceID string) error {
	if d.store.Snapshot(deviceID) == nil {
		return fmt.Errorf("%w: %q", ErrUnknownDevice, deviceID)
	}
	return nil
}

func (d *Dispatcher) publish(topic string, payload []byte) error {
	if !d.bus.IsConnected() && d.bus.QueueSaturated() {
		return ErrBusUnavailable
	}
	if err := d.bus.Publish(bus.OutboundMessage{Topic: topic, Payload: payload}); err != nil {
		d.log.Warn("command publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publishing command: %w", err)
	}
	return nil
}
