package race

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/okian/asyncrace/pkg/logger"
	"github.com/okian/asyncrace/pkg/metrics"
)

// Orchestrator owns the current race session and its subscribers.
type Orchestrator struct {
	ctrl        Controller
	logger      logger.Logger
	eventBuffer int
	newID       func() string

	mu      sync.Mutex
	current *Session
	subs    map[uint64]chan Event
	nextSub uint64
}

// New creates an orchestrator over ctrl.
func New(ctrl Controller, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ctrl:        ctrl,
		eventBuffer: defaultEventBuffer,
		newID:       uuid.NewString,
		subs:        make(map[uint64]chan Event),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("race")
	}
	return o
}

// StartRace dispatches one task per distinct vehicle and returns at once.
// Tasks run detached from ctx; only ResetRace abandons a session.
func (o *Orchestrator) StartRace(ctx context.Context, vehicleIDs []int) (*Session, error) {
	ids := lo.Uniq(vehicleIDs)
	if len(ids) == 0 {
		return nil, ErrNoVehicles
	}

	o.mu.Lock()
	if o.current != nil {
		snap := o.current.Snapshot()
		if snap.Running() {
			o.mu.Unlock()
			return nil, ErrRaceInProgress
		}
	}
	session := newSession(o.newID(), ids, true)
	o.current = session
	o.mu.Unlock()

	metrics.RecordRaceStarted()
	o.logger.Info(ctx, "race started",
		logger.String("session", session.id),
		logger.Int("vehicles", len(ids)))

	taskCtx := context.WithoutCancel(ctx)
	outcomes := make(chan Outcome, len(ids))
	task := NewTask(o.ctrl, func(vehicleID int, from, to State) {
		if session.transition(vehicleID, from, to) {
			o.publish(session, Event{
				Type:      EventTaskState,
				SessionID: session.id,
				VehicleID: vehicleID,
				From:      from,
				State:     to,
			})
		}
	})

	for _, id := range ids {
		go func(vehicleID int) {
			metrics.AddActiveTasks(1)
			defer metrics.AddActiveTasks(-1)
			begin := time.Now()
			out := task.Run(taskCtx, vehicleID)
			metrics.RecordTaskOutcome(out.State.String(), float64(time.Since(begin).Milliseconds()))
			outcomes <- out
		}(id)
	}

	go o.aggregate(taskCtx, session, outcomes, len(ids))
	return session, nil
}

// aggregate is the only goroutine that decides the winner, so simultaneous
// finishes resolve to exactly one.
func (o *Orchestrator) aggregate(ctx context.Context, s *Session, outcomes <-chan Outcome, n int) {
	for i := 0; i < n; i++ {
		out := <-outcomes
		if out.Err != nil {
			o.logger.Warn(ctx, "vehicle task failed",
				logger.String("session", s.id),
				logger.Int("vehicle", out.VehicleID),
				logger.Error(out.Err))
		}
		if s.complete(out) {
			metrics.RecordWinnerLatency(float64(time.Since(s.startedAt).Milliseconds()))
			o.logger.Info(ctx, "winner declared",
				logger.String("session", s.id),
				logger.Int("vehicle", out.VehicleID),
				logger.Float64("time", out.ElapsedTime))
			w := out
			o.publish(s, Event{Type: EventWinnerDeclared, SessionID: s.id, VehicleID: out.VehicleID, Outcome: &w})
		}
	}

	s.settle()
	snap := s.Snapshot()
	metrics.RecordRaceSettled(snap.Winner != nil)
	o.logger.Info(ctx, "race settled",
		logger.String("session", s.id),
		logger.Bool("winner", snap.Winner != nil))
	o.publish(s, Event{Type: EventRaceSettled, SessionID: s.id, Outcome: snap.Winner, Snapshot: &snap})
}

// ResetRace detaches the current session and replaces it with an idle one
// over the same vehicles. The detached session is returned, or nil when no
// race was ever started. Tasks of a detached session keep running but no
// longer reach subscribers.
func (o *Orchestrator) ResetRace() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.current
	if prev == nil {
		return nil
	}
	o.current = newSession(o.newID(), prev.vehicles, false)
	snap := o.current.Snapshot()
	o.broadcastLocked(Event{Type: EventRaceReset, SessionID: o.current.id, Snapshot: &snap})
	metrics.RecordRaceReset()
	return prev
}

// Current returns the current session, or nil.
func (o *Orchestrator) Current() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Snapshot returns the current session state. It is empty before the first
// race.
func (o *Orchestrator) Snapshot() Snapshot {
	if s := o.Current(); s != nil {
		return s.Snapshot()
	}
	return Snapshot{}
}

// Subscribe registers an event listener. Events are dropped for a listener
// whose buffer is full. cancel closes the channel.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan Event, o.eventBuffer)
	o.subs[id] = ch

	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (o *Orchestrator) publish(s *Session, ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != s {
		return
	}
	o.broadcastLocked(ev)
}

func (o *Orchestrator) broadcastLocked(ev Event) {
	for _, ch := range o.subs {
		select {
		case ch <- ev:
		default:
			metrics.RecordEventDropped()
		}
	}
}
