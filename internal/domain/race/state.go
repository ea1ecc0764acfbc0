// Package race drives vehicles through the start/drive protocol concurrently
// and arbitrates the winner of each race session.
//
// Every vehicle task is a goroutine. Tasks post their terminal outcome to a
// single aggregator, which declares the first success the winner and settles
// the session once every task has reported. Tasks are never cancelled: the
// control protocol has no cancellation primitive, so a task that is still in
// flight after the winner is declared runs to its own terminal state.
package race

import "fmt"

// State is the per-vehicle task state.
type State int

// Task states. Finished and Broken are terminal.
const (
	Idle State = iota
	Started
	Driving
	Finished
	Broken
)

var stateNames = [...]string{
	Idle:     "idle",
	Started:  "started",
	Driving:  "driving",
	Finished: "finished",
	Broken:   "broken",
}

func (s State) String() string {
	if s < Idle || s > Broken {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Finished || s == Broken
}

// CanTransition reports whether s -> next is a legal step. A failed start
// goes straight from Idle to Broken because the vehicle never started.
func (s State) CanTransition(next State) bool {
	switch s {
	case Idle:
		return next == Started || next == Broken
	case Started:
		return next == Driving
	case Driving:
		return next == Finished || next == Broken
	}
	return false
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown state %q", ErrInvalidState, b)
}
