package griddispatch

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("griddispatch: no store configured")
	ErrStoreClosed     = errors.New("griddispatch: store closed")
	ErrMigrationFailed = errors.New("griddispatch: migration failed")

	// Not found errors.
	ErrNodeNotFound    = errors.New("griddispatch: node not found")
	ErrFailureNotFound = errors.New("griddispatch: failure record not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("griddispatch: job already exists")

	// Validation errors.
	ErrInvalidJob = errors.New("griddispatch: invalid job")

	// Lifecycle errors.
	ErrNodeNotBuilt = errors.New("griddispatch: node not built; call engine.Build first")
	ErrNodeStopped  = errors.New("griddispatch: node stopped; build a new node to rejoin")

	// Configuration errors.
	ErrInvalidConfig = errors.New("griddispatch: invalid configuration")
)
