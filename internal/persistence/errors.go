package persistence

import "errors"

// Domain errors for the persistence package.
var (
	// ErrDeviceNotFound is returned when a device_id has no devices row.
	ErrDeviceNotFound = errors.New("persistence: device not found")

	// ErrInvalidBucket is returned for a history query with an
	// unrecognised bucket size.
	ErrInvalidBucket = errors.New("persistence: invalid bucket")
)
