package model

import "errors"

// Sentinel kinds shared by the domain and its adapters.
var (
	// ErrNotFound reports a genuinely absent resource, as opposed to a
	// failed lookup.
	ErrNotFound = errors.New("not found")
	// ErrEngineBroken is the expected mechanical failure of a drive.
	ErrEngineBroken = errors.New("engine broken down")

	ErrInvalidVehicle = errors.New("invalid vehicle")
	ErrInvalidQuery   = errors.New("invalid query")
	ErrConflict       = errors.New("already exists")
)
