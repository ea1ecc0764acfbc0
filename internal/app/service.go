// Package service wires the race orchestrator, the win ledger and the
// vehicle collections into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/samber/lo"

	eventqueue "github.com/okian/asyncrace/internal/adapters/mq/queue"
	workerpool "github.com/okian/asyncrace/internal/adapters/mq/worker"
	"github.com/okian/asyncrace/internal/domain/dedupe"
	"github.com/okian/asyncrace/internal/domain/garage"
	"github.com/okian/asyncrace/internal/domain/ledger"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/race"
	"github.com/okian/asyncrace/internal/domain/types"
	"github.com/okian/asyncrace/pkg/logger"
	"github.com/okian/asyncrace/pkg/metrics"
)

// Garage is the vehicle collection.
type Garage interface {
	ListVehicles(ctx context.Context, q model.Query) (model.Page[model.Vehicle], error)
	GetVehicle(ctx context.Context, id int) (model.Vehicle, error)
	CreateVehicle(ctx context.Context, in model.VehicleInput) (model.Vehicle, error)
	UpdateVehicle(ctx context.Context, id int, in model.VehicleInput) (model.Vehicle, error)
	DeleteVehicle(ctx context.Context, id int) error
}

// Winners is the winner collection.
type Winners interface {
	ledger.Store
	ListWinners(ctx context.Context, q model.Query) (model.Page[model.WinnerRecord], error)
}

// Service implements the API dependencies for the race system.
type Service struct {
	mu sync.RWMutex

	garage  Garage
	winners Winners
	ctrl    race.Controller

	orch      *race.Orchestrator
	ledger    *ledger.Ledger
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	generator *garage.Generator

	workerCount    int
	queueSize      int
	dedupeSize     int
	garagePageSize int
	eventBuffer    int
	generatorSeed  int64
	onWin          workerpool.ResultFunc

	started bool

	logger logger.Logger
}

// New constructs a service over the collections and the engine controller.
func New(g Garage, w Winners, ctrl race.Controller, opts ...Option) *Service {
	s := &Service{
		garage:         g,
		winners:        w,
		ctrl:           ctrl,
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		garagePageSize: defaultGaragePageSize,
		eventBuffer:    defaultEventBuffer,
		generatorSeed:  defaultGeneratorSeed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the orchestrator and ledger and starts the ledger workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.ledger = ledger.New(s.winners)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.orch = race.New(s.ctrl, race.WithEventBuffer(s.eventBuffer))
	s.generator = garage.NewGenerator(s.generatorSeed)

	wopts := []workerpool.Option{workerpool.WithDeduper(s.deduper)}
	if s.onWin != nil {
		wopts = append(wopts, workerpool.WithResultHook(s.onWin))
	}
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.ledger, wopts...)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "race service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize))
	return nil
}

// Stop drains pending win events and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping race service...")
	err := s.pool.Shutdown(ctx)
	s.started = false
	s.logger.Info(ctx, "race service stopped")
	return err
}

func (s *Service) running() (*race.Orchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.orch, nil
}

// Race starts a race over vehicleIDs. The winner, once declared, is queued
// for the ledger.
func (s *Service) Race(ctx context.Context, vehicleIDs []int) (*race.Session, error) {
	orch, err := s.running()
	if err != nil {
		return nil, err
	}
	session, err := orch.StartRace(ctx, vehicleIDs)
	if err != nil {
		return nil, err
	}

	go s.watch(context.WithoutCancel(ctx), orch, session)
	return session, nil
}

// RaceGaragePage races every vehicle on one garage page.
func (s *Service) RaceGaragePage(ctx context.Context, page int) (*race.Session, error) {
	res, err := s.garage.ListVehicles(ctx, model.Query{Page: page, Limit: s.garagePageSize})
	if err != nil {
		return nil, fmt.Errorf("load garage page %d: %w", page, err)
	}
	return s.Race(ctx, lo.Map(res.Items, func(v model.Vehicle, _ int) int { return v.ID }))
}

// watch queues the winner of session unless the race was reset before the
// winner was known.
func (s *Service) watch(ctx context.Context, orch *race.Orchestrator, session *race.Session) {
	<-session.WinnerDeclared()
	w, ok := session.Winner()
	if !ok {
		return
	}
	if orch.Current() != session {
		s.logger.Info(ctx, "winner of a reset race not recorded",
			logger.String("session", session.ID()),
			logger.Int("vehicle", w.VehicleID))
		return
	}

	e := model.WinEvent{EventID: session.ID(), VehicleID: w.VehicleID, Time: w.ElapsedTime}
	if !s.queue.Enqueue(ctx, e) {
		metrics.RecordLedgerError("enqueue")
		s.logger.Error(ctx, "win event dropped",
			logger.String("session", session.ID()),
			logger.Int("vehicle", w.VehicleID))
	}
}

// ResetRace detaches the current race and stops the engines of every
// vehicle that got past Idle. Stop failures are only logged.
func (s *Service) ResetRace(ctx context.Context) (types.RaceView, error) {
	orch, err := s.running()
	if err != nil {
		return types.RaceView{}, err
	}

	if prev := orch.ResetRace(); prev != nil {
		var wg sync.WaitGroup
		for _, t := range prev.Snapshot().Tasks {
			if t.State == race.Idle {
				continue
			}
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				if err := s.ctrl.Stop(ctx, id); err != nil {
					s.logger.Warn(ctx, "stop engine failed", logger.Int("vehicle", id), logger.Error(err))
				}
			}(t.VehicleID)
		}
		wg.Wait()
	}
	return s.View()
}

// View returns the current race state and allowed actions.
func (s *Service) View() (types.RaceView, error) {
	orch, err := s.running()
	if err != nil {
		return types.RaceView{}, err
	}
	return types.NewRaceView(orch.Snapshot()), nil
}

// Subscribe streams race events until cancel is called.
func (s *Service) Subscribe() (<-chan race.Event, func(), error) {
	orch, err := s.running()
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := orch.Subscribe()
	return ch, cancel, nil
}

// editable rejects garage edits while a race is running.
func (s *Service) editable() error {
	orch, err := s.running()
	if err != nil {
		return err
	}
	if orch.Snapshot().Running() {
		return race.ErrRaceInProgress
	}
	return nil
}

// ListVehicles returns one garage page.
func (s *Service) ListVehicles(ctx context.Context, q model.Query) (model.Page[model.Vehicle], error) {
	return s.garage.ListVehicles(ctx, q)
}

// GetVehicle returns one vehicle.
func (s *Service) GetVehicle(ctx context.Context, id int) (model.Vehicle, error) {
	return s.garage.GetVehicle(ctx, id)
}

// CreateVehicle adds a vehicle.
func (s *Service) CreateVehicle(ctx context.Context, in model.VehicleInput) (model.Vehicle, error) {
	if err := s.editable(); err != nil {
		return model.Vehicle{}, err
	}
	return s.garage.CreateVehicle(ctx, in)
}

// UpdateVehicle changes name and color.
func (s *Service) UpdateVehicle(ctx context.Context, id int, in model.VehicleInput) (model.Vehicle, error) {
	if err := s.editable(); err != nil {
		return model.Vehicle{}, err
	}
	return s.garage.UpdateVehicle(ctx, id, in)
}

// DeleteVehicle removes a vehicle and its winner record.
func (s *Service) DeleteVehicle(ctx context.Context, id int) error {
	if err := s.editable(); err != nil {
		return err
	}
	if err := s.garage.DeleteVehicle(ctx, id); err != nil {
		return err
	}
	if err := s.ledger.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("cascade to winner record: %w", err)
	}
	return nil
}

// GenerateVehicles creates n random vehicles. On failure it returns the
// vehicles created so far with the error.
func (s *Service) GenerateVehicles(ctx context.Context, n int) ([]model.Vehicle, error) {
	if err := s.editable(); err != nil {
		return nil, err
	}
	inputs := s.generator.Vehicles(n)
	out := make([]model.Vehicle, 0, len(inputs))
	for _, in := range inputs {
		v, err := s.garage.CreateVehicle(ctx, in)
		if err != nil {
			return out, fmt.Errorf("generate vehicle %d of %d: %w", len(out)+1, n, err)
		}
		out = append(out, v)
	}
	s.logger.Info(ctx, "vehicles generated", logger.Int("count", len(out)))
	return out, nil
}

// ListWinners returns one page of raw winner records.
func (s *Service) ListWinners(ctx context.Context, q model.Query) (model.Page[model.WinnerRecord], error) {
	return s.winners.ListWinners(ctx, q)
}

// GetWinner returns one winner record.
func (s *Service) GetWinner(ctx context.Context, id int) (model.WinnerRecord, error) {
	return s.winners.GetWinner(ctx, id)
}

// CreateWinner stores a record as given.
func (s *Service) CreateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error) {
	return s.winners.CreateWinner(ctx, rec)
}

// UpdateWinner replaces a record.
func (s *Service) UpdateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error) {
	return s.winners.UpdateWinner(ctx, rec)
}

// DeleteWinner removes a record.
func (s *Service) DeleteWinner(ctx context.Context, id int) error {
	return s.winners.DeleteWinner(ctx, id)
}

// WinnerEntries returns one winners page joined with the vehicles.
func (s *Service) WinnerEntries(ctx context.Context, q model.Query) (model.Page[types.WinnerEntry], error) {
	res, err := s.winners.ListWinners(ctx, q)
	if err != nil {
		return model.Page[types.WinnerEntry]{}, err
	}
	entries := make([]types.WinnerEntry, 0, len(res.Items))
	for i, rec := range res.Items {
		var vp *model.Vehicle
		v, err := s.garage.GetVehicle(ctx, rec.ID)
		switch {
		case err == nil:
			vp = &v
		case !errors.Is(err, model.ErrNotFound):
			return model.Page[types.WinnerEntry]{}, err
		}
		entries = append(entries, types.NewWinnerEntry(q.Offset()+i+1, rec, vp))
	}
	return model.Page[types.WinnerEntry]{Items: entries, Total: res.Total}, nil
}

// Controller exposes the engine controller for the engine endpoint.
func (s *Service) Controller() race.Controller {
	return s.ctrl
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		snap := s.orch.Snapshot()
		stats["queueLength"] = s.queue.Len()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["raceSession"] = snap.SessionID
		stats["raceRunning"] = snap.Running()
		metrics.UpdateQueueSize(s.queue.Len())
	}
	return stats
}
