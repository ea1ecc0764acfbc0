package race

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/asyncrace/internal/domain/model"
)

// Controller is the remote control surface of the vehicles.
type Controller interface {
	// Start starts the engine and returns the planned velocity and distance.
	Start(ctx context.Context, vehicleID int) (model.EngineParams, error)
	// Drive blocks until the run ends. A mechanical failure is reported as
	// model.ErrEngineBroken; any other error is a failed call.
	Drive(ctx context.Context, vehicleID int) error
	// Stop returns the engine to idle.
	Stop(ctx context.Context, vehicleID int) error
}

// Outcome is the terminal result of one vehicle task.
type Outcome struct {
	VehicleID int   `json:"vehicle_id"`
	State     State `json:"state"`
	// ElapsedTime is distance/velocity from the start response. It is zero
	// when the engine never started.
	ElapsedTime float64 `json:"elapsed_time"`
	// Err is set for failed calls only; a broken engine is not an error.
	Err error `json:"-"`
}

// Success reports whether the vehicle finished.
func (o Outcome) Success() bool {
	return o.State == Finished
}

// StateFunc observes a task transition.
type StateFunc func(vehicleID int, from, to State)

// Task drives one vehicle from Idle to a terminal state.
type Task struct {
	ctrl    Controller
	onState StateFunc
}

// NewTask creates a task runner. onState may be nil.
func NewTask(ctrl Controller, onState StateFunc) *Task {
	if onState == nil {
		onState = func(int, State, State) {}
	}
	return &Task{ctrl: ctrl, onState: onState}
}

// Run calls Start then Drive for vehicleID and returns the terminal outcome.
// Drive is called right after Start returns; it does not wait for the
// planned duration.
func (t *Task) Run(ctx context.Context, vehicleID int) Outcome {
	state := Idle
	move := func(next State) {
		t.onState(vehicleID, state, next)
		state = next
	}

	params, err := t.ctrl.Start(ctx, vehicleID)
	if err == nil && (params.Velocity <= 0 || params.Distance <= 0) {
		err = fmt.Errorf("%w: velocity=%v distance=%v", ErrInvalidEngineData, params.Velocity, params.Distance)
	}
	if err != nil {
		move(Broken)
		return Outcome{
			VehicleID: vehicleID,
			State:     Broken,
			Err:       fmt.Errorf("start vehicle %d: %w", vehicleID, err),
		}
	}
	move(Started)

	elapsed := params.PlannedTime()
	move(Driving)

	if err := t.ctrl.Drive(ctx, vehicleID); err != nil {
		move(Broken)
		out := Outcome{VehicleID: vehicleID, State: Broken, ElapsedTime: elapsed}
		if !errors.Is(err, model.ErrEngineBroken) {
			out.Err = fmt.Errorf("drive vehicle %d: %w", vehicleID, err)
		}
		return out
	}

	move(Finished)
	return Outcome{VehicleID: vehicleID, State: Finished, ElapsedTime: elapsed}
}
