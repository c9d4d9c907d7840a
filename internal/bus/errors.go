package bus

import "errors"

var (
	// ErrNotRunning is returned by Publish once the adapter has been
	// stopped and is no longer draining its outbound channel.
	ErrNotRunning = errors.New("bus: adapter not running")
)
