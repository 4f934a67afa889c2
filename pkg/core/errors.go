package core

import "errors"

// Assembly errors returned by the registries. They are ordinary Go errors,
// not pipeline failures, and are wrapped with the offending key.
var (
	// ErrDuplicate is returned when a key is registered twice on a registry
	// that does not allow overwrites.
	ErrDuplicate = errors.New("already registered")

	// ErrFrozen is returned when a registry is modified after assembly.
	ErrFrozen = errors.New("registry is frozen")
)
