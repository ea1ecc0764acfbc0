package race

import (
	"context"
	"sync"
	"time"
)

// TaskView is the observable state of one vehicle in a session.
type TaskView struct {
	VehicleID   int     `json:"vehicle_id"`
	State       State   `json:"state"`
	ElapsedTime float64 `json:"elapsed_time,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	SessionID string     `json:"session_id"`
	Started   bool       `json:"started"`
	Settled   bool       `json:"settled"`
	Tasks     []TaskView `json:"tasks"`
	Winner    *Outcome   `json:"winner,omitempty"`
}

// Running reports whether tasks are still in flight.
func (s Snapshot) Running() bool {
	return s.Started && !s.Settled
}

// Session is one race over a fixed set of vehicles.
type Session struct {
	id        string
	vehicles  []int
	startedAt time.Time

	decided chan struct{}
	settled chan struct{}

	mu        sync.RWMutex
	started   bool
	isSettled bool
	tasks     map[int]*TaskView
	outcomes  []Outcome
	winner    *Outcome
}

func newSession(id string, vehicles []int, started bool) *Session {
	s := &Session{
		id:        id,
		vehicles:  append([]int(nil), vehicles...),
		startedAt: time.Now(),
		decided:   make(chan struct{}),
		settled:   make(chan struct{}),
		started:   started,
		tasks:     make(map[int]*TaskView, len(vehicles)),
	}
	for _, v := range vehicles {
		s.tasks[v] = &TaskView{VehicleID: v, State: Idle}
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Vehicles returns the participants in dispatch order.
func (s *Session) Vehicles() []int {
	return append([]int(nil), s.vehicles...)
}

// WinnerDeclared is closed once a winner is known, or once the session
// settles without one.
func (s *Session) WinnerDeclared() <-chan struct{} { return s.decided }

// Settled is closed once every task has reached a terminal state.
func (s *Session) Settled() <-chan struct{} { return s.settled }

// Winner returns the first vehicle to finish. ok is false while no vehicle
// has finished.
func (s *Session) Winner() (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.winner == nil {
		return Outcome{}, false
	}
	return *s.winner, true
}

// Outcomes returns the terminal outcomes in completion order.
func (s *Session) Outcomes() []Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Outcome(nil), s.outcomes...)
}

// Wait blocks until the session settles or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		SessionID: s.id,
		Started:   s.started,
		Settled:   s.isSettled,
		Tasks:     make([]TaskView, 0, len(s.vehicles)),
	}
	for _, v := range s.vehicles {
		snap.Tasks = append(snap.Tasks, *s.tasks[v])
	}
	if s.winner != nil {
		w := *s.winner
		snap.Winner = &w
	}
	return snap
}

func (s *Session) transition(vehicleID int, from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tv, ok := s.tasks[vehicleID]
	if !ok || tv.State != from || !from.CanTransition(to) {
		return false
	}
	tv.State = to
	return true
}

// complete records a terminal outcome and reports whether it won.
func (s *Session) complete(out Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, out)
	if tv, ok := s.tasks[out.VehicleID]; ok {
		tv.State = out.State
		tv.ElapsedTime = out.ElapsedTime
		if out.Err != nil {
			tv.Error = out.Err.Error()
		}
	}
	if !out.Success() || s.winner != nil {
		return false
	}
	w := out
	s.winner = &w
	close(s.decided)
	return true
}

func (s *Session) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isSettled {
		return
	}
	s.isSettled = true
	if s.winner == nil {
		close(s.decided)
	}
	close(s.settled)
}
