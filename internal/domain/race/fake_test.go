package race_test

import (
	"context"
	"sync"

	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

type fakeVehicle struct {
	params   model.EngineParams
	startErr error
	driveErr error
	gate     chan struct{}
}

// fakeController blocks each Drive on the vehicle gate until released.
type fakeController struct {
	mu       sync.Mutex
	vehicles map[int]*fakeVehicle
	starts   map[int]int
	drives   map[int]int
	stops    map[int]int
	started  chan int
}

func newFakeController() *fakeController {
	return &fakeController{
		vehicles: make(map[int]*fakeVehicle),
		starts:   make(map[int]int),
		drives:   make(map[int]int),
		stops:    make(map[int]int),
		started:  make(chan int, 64),
	}
}

func (f *fakeController) add(id int, velocity float64, driveErr error) *fakeVehicle {
	v := &fakeVehicle{
		params:   model.EngineParams{Velocity: velocity, Distance: 500},
		driveErr: driveErr,
		gate:     make(chan struct{}),
	}
	f.mu.Lock()
	f.vehicles[id] = v
	f.mu.Unlock()
	return v
}

// release lets the vehicle's Drive return. It is safe to call twice.
func (f *fakeController) release(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.vehicles[id]
	select {
	case <-v.gate:
	default:
		close(v.gate)
	}
}

func (f *fakeController) Start(_ context.Context, id int) (model.EngineParams, error) {
	f.mu.Lock()
	f.starts[id]++
	v, ok := f.vehicles[id]
	f.mu.Unlock()
	if !ok {
		return model.EngineParams{}, model.ErrNotFound
	}
	if v.startErr != nil {
		return model.EngineParams{}, v.startErr
	}
	return v.params, nil
}

func (f *fakeController) Drive(_ context.Context, id int) error {
	f.mu.Lock()
	f.drives[id]++
	v := f.vehicles[id]
	f.mu.Unlock()
	f.started <- id
	<-v.gate
	return v.driveErr
}

func (f *fakeController) Stop(_ context.Context, id int) error {
	f.mu.Lock()
	f.stops[id]++
	f.mu.Unlock()
	return nil
}

func (f *fakeController) count(m map[int]int, id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[id]
}
