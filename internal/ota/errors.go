package ota

import "errors"

var (
	// ErrUnknownDevice means the Orchestrator was asked to build a manifest
	// for a device the state store has never observed.
	ErrUnknownDevice = errors.New("ota: unknown device")

	// ErrInvalidRef means ref contains a path separator or whitespace,
	// which could otherwise be used to escape the enumerated subtrees.
	ErrInvalidRef = errors.New("ota: invalid ref")

	// ErrSourceRootNotConfigured means OTA was never given a repository
	// checkout to enumerate.
	ErrSourceRootNotConfigured = errors.New("ota: source root not configured")
)
