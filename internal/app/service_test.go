package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/asyncrace/internal/adapters/mq/queue"
	"github.com/okian/asyncrace/internal/adapters/repository"
	service "github.com/okian/asyncrace/internal/app"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/race"
	"github.com/okian/asyncrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

const waitTimeout = 2 * time.Second

// gatedController blocks each drive until the test releases the vehicle.
type gatedController struct {
	mu       sync.Mutex
	velocity map[int]float64
	broken   map[int]bool
	gates    map[int]chan struct{}
	stops    map[int]int
	driving  chan int
}

func newGatedController() *gatedController {
	return &gatedController{
		velocity: map[int]float64{},
		broken:   map[int]bool{},
		gates:    map[int]chan struct{}{},
		stops:    map[int]int{},
		driving:  make(chan int, 16),
	}
}

// waitDriving blocks until n drives are in flight.
func (g *gatedController) waitDriving(n int) {
	for i := 0; i < n; i++ {
		select {
		case <-g.driving:
		case <-time.After(waitTimeout):
			return
		}
	}
}

func (g *gatedController) add(id int, velocity float64, broken bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.velocity[id] = velocity
	g.broken[id] = broken
	g.gates[id] = make(chan struct{})
}

func (g *gatedController) release(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.gates[id]:
	default:
		close(g.gates[id])
	}
}

func (g *gatedController) Start(_ context.Context, id int) (model.EngineParams, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.velocity[id]
	if !ok {
		return model.EngineParams{}, model.ErrNotFound
	}
	return model.EngineParams{Velocity: v, Distance: 500}, nil
}

func (g *gatedController) Drive(_ context.Context, id int) error {
	g.mu.Lock()
	gate, broken := g.gates[id], g.broken[id]
	g.mu.Unlock()
	g.driving <- id
	<-gate
	if broken {
		return model.ErrEngineBroken
	}
	return nil
}

func (g *gatedController) Stop(_ context.Context, id int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stops[id]++
	return nil
}

func (g *gatedController) stopCount(id int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stops[id]
}

type winLog struct {
	mu     sync.Mutex
	events []queue.Event
	done   chan struct{}
}

func newWinLog() *winLog {
	return &winLog{done: make(chan struct{}, 16)}
}

func (w *winLog) hook(e queue.Event, _ model.WinnerRecord, _ error) {
	w.mu.Lock()
	w.events = append(w.events, e)
	w.mu.Unlock()
	w.done <- struct{}{}
}

func (w *winLog) recorded() []queue.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]queue.Event(nil), w.events...)
}

type fixture struct {
	svc     *service.Service
	ctrl    *gatedController
	garage  *repository.GarageStore
	winners *repository.WinnerStore
	wins    *winLog
	close   func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.Open("")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	f := &fixture{
		ctrl:    newGatedController(),
		garage:  repository.NewGarageStore(db),
		winners: repository.NewWinnerStore(db),
		wins:    newWinLog(),
	}
	f.svc = service.New(f.garage, f.winners, f.ctrl,
		service.WithWorkerCount(2),
		service.WithWinRecordedHook(f.wins.hook))
	if err := f.svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.close = func() {
		_ = f.svc.Stop(context.Background())
		_ = db.Close()
	}
	return f
}

func (f *fixture) vehicle(name string) model.Vehicle {
	v, err := f.garage.CreateVehicle(context.Background(), model.VehicleInput{Name: name, Color: "#FF0000"})
	if err != nil {
		panic(err)
	}
	return v
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that is not started", t, func() {
		svc := service.New(nil, nil, newGatedController())

		Convey("Then race operations are refused", func() {
			_, err := svc.Race(context.Background(), []int{1})
			So(err, ShouldEqual, service.ErrNotStarted)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a started service", t, func() {
		f := newFixture(t)
		defer f.close()

		Convey("Then stats report it", func() {
			stats := f.svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["raceRunning"], ShouldEqual, false)
		})

		Convey("And starting twice is harmless", func() {
			So(f.svc.Start(context.Background()), ShouldBeNil)
		})
	})
}

func TestService_ThreeVehicleRace(t *testing.T) {
	Convey("Given vehicles A, B and C where B finishes first and C breaks down", t, func() {
		f := newFixture(t)
		defer f.close()
		ctx := context.Background()

		a, b, c := f.vehicle("A"), f.vehicle("B"), f.vehicle("C")
		f.ctrl.add(a.ID, 25, false)
		f.ctrl.add(b.ID, 50, false)
		f.ctrl.add(c.ID, 100, true)

		session, err := f.svc.Race(ctx, []int{a.ID, b.ID, c.ID})
		So(err, ShouldBeNil)
		f.ctrl.waitDriving(3)

		Convey("When B, then A, then C report", func() {
			f.ctrl.release(b.ID)
			select {
			case <-session.WinnerDeclared():
			case <-time.After(waitTimeout):
			}
			f.ctrl.release(a.ID)
			f.ctrl.release(c.ID)

			select {
			case <-session.Settled():
			case <-time.After(waitTimeout):
			}
			select {
			case <-f.wins.done:
			case <-time.After(waitTimeout):
			}

			Convey("Then B wins with time 10 and is recorded exactly once", func() {
				w, ok := session.Winner()
				So(ok, ShouldBeTrue)
				So(w.VehicleID, ShouldEqual, b.ID)
				So(w.ElapsedTime, ShouldEqual, 10)

				recorded := f.wins.recorded()
				So(len(recorded), ShouldEqual, 1)
				So(recorded[0].VehicleID, ShouldEqual, b.ID)
				So(recorded[0].Time, ShouldEqual, 10)

				rec, err := f.winners.GetWinner(ctx, b.ID)
				So(err, ShouldBeNil)
				So(rec, ShouldResemble, model.WinnerRecord{ID: b.ID, Wins: 1, Time: 10})
			})

			Convey("And the winners page shows B by name", func() {
				page, err := f.svc.WinnerEntries(ctx, model.Query{Page: 1, Limit: 10, Sort: model.SortWins, Order: model.OrderDesc})
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 1)
				So(page.Items[0].Name, ShouldEqual, "B")
				So(page.Items[0].Position, ShouldEqual, 1)
			})

			Convey("And the settled race allows a new race or a reset", func() {
				view, err := f.svc.View()
				So(err, ShouldBeNil)
				So(view.Race.Settled, ShouldBeTrue)
				So(view.Controls.Reset, ShouldBeTrue)
				So(view.Controls.StartRace, ShouldBeTrue)
				So(view.Controls.EditGarage, ShouldBeTrue)
			})
		})

		Convey("When the garage is edited mid race", func() {
			_, err := f.svc.CreateVehicle(ctx, model.VehicleInput{Name: "D"})

			Convey("Then the edit is refused", func() {
				So(err, ShouldEqual, race.ErrRaceInProgress)
			})
			f.ctrl.release(a.ID)
			f.ctrl.release(b.ID)
			f.ctrl.release(c.ID)
		})

		Convey("When the race is reset before any finish", func() {
			view, err := f.svc.ResetRace(ctx)
			So(err, ShouldBeNil)
			f.ctrl.release(b.ID)
			f.ctrl.release(a.ID)
			f.ctrl.release(c.ID)
			select {
			case <-session.Settled():
			case <-time.After(waitTimeout):
			}

			Convey("Then engines are stopped and the late winner is not recorded", func() {
				So(view.Race.Started, ShouldBeFalse)
				So(f.ctrl.stopCount(a.ID), ShouldEqual, 1)
				So(f.ctrl.stopCount(b.ID), ShouldEqual, 1)

				lateWin := false
				select {
				case <-f.wins.done:
					lateWin = true
				case <-time.After(100 * time.Millisecond):
				}
				So(lateWin, ShouldBeFalse)
				_, err := f.winners.GetWinner(ctx, b.ID)
				So(err, ShouldWrap, model.ErrNotFound)
			})
		})
	})
}

func TestService_DeleteCascade(t *testing.T) {
	Convey("Given vehicle 7 with a winner record", t, func() {
		f := newFixture(t)
		defer f.close()
		ctx := context.Background()

		var seventh model.Vehicle
		for i := 0; i < 7; i++ {
			seventh = f.vehicle("car")
		}
		So(seventh.ID, ShouldEqual, 7)
		_, err := f.winners.CreateWinner(ctx, model.WinnerRecord{ID: 7, Wins: 2, Time: 4000})
		So(err, ShouldBeNil)

		Convey("When the vehicle is deleted", func() {
			err := f.svc.DeleteVehicle(ctx, 7)

			Convey("Then the winner record goes with it", func() {
				So(err, ShouldBeNil)
				_, err := f.winners.GetWinner(ctx, 7)
				So(err, ShouldWrap, model.ErrNotFound)
			})
		})

		Convey("When the record was already removed concurrently", func() {
			So(f.winners.DeleteWinner(ctx, 7), ShouldBeNil)
			err := f.svc.DeleteVehicle(ctx, 7)

			Convey("Then the delete still succeeds", func() {
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestService_GenerateVehicles(t *testing.T) {
	Convey("Given an empty garage", t, func() {
		f := newFixture(t)
		defer f.close()
		ctx := context.Background()

		Convey("When 100 vehicles are generated", func() {
			vs, err := f.svc.GenerateVehicles(ctx, 100)

			Convey("Then the garage holds 15 pages of 7", func() {
				So(err, ShouldBeNil)
				So(len(vs), ShouldEqual, 100)
				page, err := f.svc.ListVehicles(ctx, model.Query{Page: 15, Limit: 7})
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 100)
				So(len(page.Items), ShouldEqual, 2)
			})
		})
	})
}
