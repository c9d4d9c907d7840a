package command

import "errors"

// Sentinel errors returned by Dispatcher operations. Callers check these
// with errors.Is to map onto the accepted/reason contract the Query
// Surface exposes to clients — no exception ever crosses that boundary.
var (
	// ErrBusUnavailable means the bus has no connection and its outbound
	// queue is already full, so enqueuing would only discard something
	// else rather than deliver the new command any sooner.
	ErrBusUnavailable = errors.New("command: bus unavailable")

	// ErrUnknownDevice means the target device_id has never been observed
	// by the state store, so a device-targeted reboot has nothing to aim
	// at.
	ErrUnknownDevice = errors.New("command: unknown device")
)
