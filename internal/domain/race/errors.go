package race

import "errors"

// Sentinel kinds for race errors.
var (
	ErrNoVehicles        = errors.New("race needs at least one vehicle")
	ErrRaceInProgress    = errors.New("race already in progress")
	ErrInvalidState      = errors.New("invalid task state")
	ErrInvalidEngineData = errors.New("invalid engine parameters")
)
