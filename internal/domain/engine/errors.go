package engine

import "errors"

// Sentinel kinds for engine control errors.
var (
	ErrNotStarted      = errors.New("engine not started")
	ErrDriveInProgress = errors.New("drive already in progress")
	ErrStopped         = errors.New("engine stopped")
)
