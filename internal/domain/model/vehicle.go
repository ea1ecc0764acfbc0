// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Vehicle is a race participant stored in the garage.
type Vehicle struct {
	ID    int    `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Color string `json:"color" msgpack:"color"`
}

// VehicleInput carries the mutable vehicle fields for create and update.
type VehicleInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Normalize trims the name and validates the input.
func (in VehicleInput) Normalize() (VehicleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if in.Name == "" {
		return in, fmt.Errorf("%w: name cannot be empty", ErrInvalidVehicle)
	}
	return in, nil
}

// WinnerRecord keeps win statistics for one vehicle. Time is the best
// elapsed time ever recorded, in milliseconds.
type WinnerRecord struct {
	ID   int     `json:"id" msgpack:"id"`
	Wins int     `json:"wins" msgpack:"wins"`
	Time float64 `json:"time" msgpack:"time"`
}

// Seconds returns the best time in seconds.
func (w WinnerRecord) Seconds() float64 {
	return w.Time / millisPerSecond
}

// EngineParams is returned by a successful engine start.
type EngineParams struct {
	Velocity float64 `json:"velocity"`
	Distance float64 `json:"distance"`
}

// PlannedTime returns distance/velocity. It is the time a run is planned to
// take, not a measured one; zero when velocity is not positive.
func (p EngineParams) PlannedTime() float64 {
	if p.Velocity <= 0 {
		return 0
	}
	return p.Distance / p.Velocity
}

const millisPerSecond = 1000
