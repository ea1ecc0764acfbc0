// Package engine simulates the vehicle engines behind the control endpoint.
//
// A started engine gets a random velocity for a fixed distance. Driving
// takes distance/velocity milliseconds scaled by the time scale and may
// break down part way.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/logger"
	"github.com/okian/asyncrace/pkg/metrics"
)

// Default simulation parameters.
const (
	defaultDistance    = 500000
	defaultMinVelocity = 50
	defaultMaxVelocity = 200
	defaultBreakChance = 0.25
	defaultTimeScale   = 1.0
	defaultRandomSeed  = 42
)

// LookupFunc reports model.ErrNotFound for an unknown vehicle.
type LookupFunc func(ctx context.Context, vehicleID int) error

type phase int

const (
	phaseStarted phase = iota
	phaseDriving
	phaseDone
)

type engineState struct {
	params model.EngineParams
	phase  phase
	stop   chan struct{}
}

// Simulator is an in-memory engine controller.
type Simulator struct {
	distance    float64
	minVelocity float64
	maxVelocity float64
	breakChance float64
	timeScale   float64
	lookup      LookupFunc
	logger      logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	engines map[int]*engineState
}

// NewSimulator creates a simulator with configuration options.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		distance:    defaultDistance,
		minVelocity: defaultMinVelocity,
		maxVelocity: defaultMaxVelocity,
		breakChance: defaultBreakChance,
		timeScale:   defaultTimeScale,
		rng:         rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // simulation only
		engines:     make(map[int]*engineState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("engine")
	}
	return s
}

// Start starts the engine of vehicleID and returns its run parameters.
// Starting a running engine replaces its run.
func (s *Simulator) Start(ctx context.Context, vehicleID int) (model.EngineParams, error) {
	if err := s.check(ctx, vehicleID); err != nil {
		return model.EngineParams{}, err
	}

	params := model.EngineParams{Velocity: s.velocity(), Distance: s.distance}

	s.mu.Lock()
	if prev, ok := s.engines[vehicleID]; ok && prev.phase == phaseDriving {
		close(prev.stop)
	}
	s.engines[vehicleID] = &engineState{params: params, phase: phaseStarted, stop: make(chan struct{})}
	s.mu.Unlock()

	metrics.RecordEngineStart()
	s.logger.Debug(ctx, "engine started",
		logger.Int("vehicle", vehicleID),
		logger.Float64("velocity", params.Velocity))
	return params, nil
}

// Drive runs a started engine to the end of the distance. It returns
// model.ErrEngineBroken on a breakdown and ErrStopped when Stop interrupts
// the run.
func (s *Simulator) Drive(ctx context.Context, vehicleID int) error {
	if err := s.check(ctx, vehicleID); err != nil {
		return err
	}

	s.mu.Lock()
	st, ok := s.engines[vehicleID]
	switch {
	case !ok || st.phase == phaseDone:
		s.mu.Unlock()
		return fmt.Errorf("vehicle %d: %w", vehicleID, ErrNotStarted)
	case st.phase == phaseDriving:
		s.mu.Unlock()
		return fmt.Errorf("vehicle %d: %w", vehicleID, ErrDriveInProgress)
	}
	st.phase = phaseDriving
	stop := st.stop
	s.mu.Unlock()

	total := s.scaled(st.params.PlannedTime())
	wait, broken := total, s.breaks()
	if broken {
		wait = time.Duration(float64(total) * s.fraction())
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.finish(vehicleID, st)
		return fmt.Errorf("drive vehicle %d: %w", vehicleID, ctx.Err())
	case <-stop:
		return fmt.Errorf("vehicle %d: %w", vehicleID, ErrStopped)
	case <-timer.C:
	}

	s.finish(vehicleID, st)
	if broken {
		metrics.RecordEngineBreakdown()
		s.logger.Debug(ctx, "engine broke down", logger.Int("vehicle", vehicleID))
		return fmt.Errorf("vehicle %d: %w", vehicleID, model.ErrEngineBroken)
	}
	return nil
}

// Stop returns the engine to idle and interrupts a running drive. Stopping
// an idle engine succeeds.
func (s *Simulator) Stop(ctx context.Context, vehicleID int) error {
	if err := s.check(ctx, vehicleID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.engines[vehicleID]; ok {
		if st.phase == phaseDriving {
			close(st.stop)
		}
		delete(s.engines, vehicleID)
	}
	return nil
}

// Distance returns the simulated track length.
func (s *Simulator) Distance() float64 {
	return s.distance
}

func (s *Simulator) check(ctx context.Context, vehicleID int) error {
	if vehicleID <= 0 {
		return fmt.Errorf("vehicle %d: %w", vehicleID, model.ErrNotFound)
	}
	if s.lookup == nil {
		return nil
	}
	return s.lookup(ctx, vehicleID)
}

// finish marks st done unless Start or Stop replaced it meanwhile.
func (s *Simulator) finish(vehicleID int, st *engineState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.engines[vehicleID]; ok && cur == st {
		st.phase = phaseDone
	}
}

func (s *Simulator) scaled(ms float64) time.Duration {
	return time.Duration(ms * s.timeScale * float64(time.Millisecond))
}

func (s *Simulator) velocity() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	if s.maxVelocity <= s.minVelocity {
		return s.minVelocity
	}
	return s.minVelocity + float64(s.rng.Int63n(int64(s.maxVelocity-s.minVelocity)+1))
}

func (s *Simulator) breaks() bool {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < s.breakChance
}

func (s *Simulator) fraction() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}
