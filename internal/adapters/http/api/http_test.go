package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/asyncrace/internal/adapters/http/api"
	"github.com/okian/asyncrace/internal/adapters/repository"
	service "github.com/okian/asyncrace/internal/app"
	"github.com/okian/asyncrace/internal/domain/engine"
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

type testServer struct {
	*httptest.Server
	garage *repository.GarageStore
}

func newTestServer(t *testing.T, breakChance float64) *testServer {
	t.Helper()
	db, err := repository.Open("")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	garage := repository.NewGarageStore(db)
	winners := repository.NewWinnerStore(db)
	sim := engine.NewSimulator(
		engine.WithTimeScale(0),
		engine.WithBreakChance(breakChance),
		engine.WithLookup(func(ctx context.Context, id int) error {
			_, err := garage.GetVehicle(ctx, id)
			return err
		}),
	)
	svc := service.New(garage, winners, sim)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	srv := httptest.NewServer(api.NewServer(svc, svc).Routes())
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
		_ = db.Close()
	})
	return &testServer{Server: srv, garage: garage}
}

func (s *testServer) do(method, path, body string) *http.Response {
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	So(err, ShouldBeNil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	return resp
}

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var v T
	So(json.NewDecoder(resp.Body).Decode(&v), ShouldBeNil)
	return v
}

func (s *testServer) seed(n int) {
	for i := 1; i <= n; i++ {
		_, err := s.garage.CreateVehicle(context.Background(), model.VehicleInput{
			Name:  fmt.Sprintf("car-%d", i),
			Color: "#ffffff",
		})
		So(err, ShouldBeNil)
	}
}

func TestGarageRoutes(t *testing.T) {
	Convey("Given a running server", t, func() {
		s := newTestServer(t, 0)

		Convey("health reports ok", func() {
			resp := s.do(http.MethodGet, "/healthz", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](resp)["status"], ShouldEqual, "ok")
		})

		Convey("metrics are exposed", func() {
			resp := s.do(http.MethodGet, "/metrics", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("a vehicle can be created and fetched", func() {
			resp := s.do(http.MethodPost, "/garage", `{"name":" Tesla ","color":"#e6e6fa"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			created := decode[model.Vehicle](resp)
			So(created.ID, ShouldEqual, 1)
			So(created.Name, ShouldEqual, "Tesla")

			got := decode[model.Vehicle](s.do(http.MethodGet, "/garage/1", ""))
			So(got, ShouldResemble, created)
		})

		Convey("an empty name is rejected", func() {
			resp := s.do(http.MethodPost, "/garage", `{"name":"  ","color":"#000"}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("malformed JSON is rejected", func() {
			resp := s.do(http.MethodPost, "/garage", `{"name":`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("a missing vehicle is 404", func() {
			resp := s.do(http.MethodGet, "/garage/99", "")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(decode[map[string]string](resp)["code"], ShouldEqual, "not_found")
		})

		Convey("pages carry the total count", func() {
			s.seed(9)
			resp := s.do(http.MethodGet, "/garage?_page=2&_limit=7", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("X-Total-Count"), ShouldEqual, "9")
			items := decode[[]model.Vehicle](resp)
			So(len(items), ShouldEqual, 2)
			So(items[0].ID, ShouldEqual, 8)

			all := s.do(http.MethodGet, "/garage", "")
			So(len(decode[[]model.Vehicle](all)), ShouldEqual, 9)
		})

		Convey("a page past the addressable range is a bad request", func() {
			s.seed(3)
			resp := s.do(http.MethodGet, "/garage?_page=3&_limit=4611686018427387904", "")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(decode[map[string]string](resp)["code"], ShouldEqual, "invalid_request")

			resp = s.do(http.MethodGet, "/winners?_page=3&_limit=4611686018427387904", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("update and delete round out the collection", func() {
			s.seed(1)
			resp := s.do(http.MethodPut, "/garage/1", `{"name":"Renamed","color":"#123456"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(decode[model.Vehicle](resp).Name, ShouldEqual, "Renamed")

			resp = s.do(http.MethodDelete, "/garage/1", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			resp = s.do(http.MethodGet, "/garage/1", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("generate creates the requested number of vehicles", func() {
			resp := s.do(http.MethodPost, "/garage/generate?count=5", "")
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(len(decode[[]model.Vehicle](resp)), ShouldEqual, 5)

			resp = s.do(http.MethodPost, "/garage/generate?count=zero", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("a non-numeric id is a bad request", func() {
			resp := s.do(http.MethodGet, "/garage/abc", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestWinnerRoutes(t *testing.T) {
	Convey("Given a server with some winners", t, func() {
		s := newTestServer(t, 0)
		s.seed(3)
		for _, body := range []string{
			`{"id":1,"wins":1,"time":12.5}`,
			`{"id":2,"wins":3,"time":9.1}`,
			`{"id":3,"wins":2,"time":15}`,
		} {
			resp := s.do(http.MethodPost, "/winners", body)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		}

		Convey("creating an existing winner conflicts", func() {
			resp := s.do(http.MethodPost, "/winners", `{"id":1,"wins":1,"time":1}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("sorting by time descending", func() {
			resp := s.do(http.MethodGet, "/winners?_page=1&_limit=10&_sort=time&_order=DESC", "")
			So(resp.Header.Get("X-Total-Count"), ShouldEqual, "3")
			items := decode[[]model.WinnerRecord](resp)
			So(items[0].ID, ShouldEqual, 3)
			So(items[2].ID, ShouldEqual, 2)
		})

		Convey("an unknown sort key is rejected", func() {
			resp := s.do(http.MethodGet, "/winners?_sort=name", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("update replaces wins and time", func() {
			resp := s.do(http.MethodPut, "/winners/1", `{"wins":4,"time":8}`)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(decode[model.WinnerRecord](resp), ShouldResemble, model.WinnerRecord{ID: 1, Wins: 4, Time: 8})
		})

		Convey("entries join vehicle details", func() {
			resp := s.do(http.MethodGet, "/winners/entries?_page=1&_limit=10&_sort=wins&_order=DESC", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var entries []map[string]any
			So(json.NewDecoder(resp.Body).Decode(&entries), ShouldBeNil)
			resp.Body.Close()
			So(len(entries), ShouldEqual, 3)
			So(entries[0]["name"], ShouldEqual, "car-2")
		})

		Convey("delete removes the record", func() {
			resp := s.do(http.MethodDelete, "/winners/2", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			resp = s.do(http.MethodGet, "/winners/2", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestEngineRoute(t *testing.T) {
	Convey("Given a reliable engine", t, func() {
		s := newTestServer(t, 0)
		s.seed(1)

		Convey("start returns the run parameters", func() {
			resp := s.do(http.MethodPatch, "/engine?id=1&status=started", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			params := decode[model.EngineParams](resp)
			So(params.Velocity, ShouldBeGreaterThan, 0)
			So(params.Distance, ShouldBeGreaterThan, 0)

			Convey("and drive succeeds", func() {
				resp := s.do(http.MethodPatch, "/engine?id=1&status=drive", "")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decode[map[string]bool](resp)["success"], ShouldBeTrue)
			})

			Convey("and stop zeroes the parameters", func() {
				resp := s.do(http.MethodPatch, "/engine?id=1&status=stopped", "")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decode[model.EngineParams](resp), ShouldResemble, model.EngineParams{})
			})
		})

		Convey("drive without start is 404", func() {
			resp := s.do(http.MethodPatch, "/engine?id=1&status=drive", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("an unknown vehicle is 404", func() {
			resp := s.do(http.MethodPatch, "/engine?id=42&status=started", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("an unknown status is 400", func() {
			resp := s.do(http.MethodPatch, "/engine?id=1&status=reverse", "")
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given an engine that always breaks", t, func() {
		s := newTestServer(t, 1)
		s.seed(1)
		resp := s.do(http.MethodPatch, "/engine?id=1&status=started", "")
		resp.Body.Close()

		resp = s.do(http.MethodPatch, "/engine?id=1&status=drive", "")
		So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
		So(decode[map[string]string](resp)["code"], ShouldEqual, "engine_broken")
	})
}

func TestRaceRoutes(t *testing.T) {
	Convey("Given a garage of three vehicles", t, func() {
		s := newTestServer(t, 0)
		s.seed(3)

		Convey("a race without vehicles is rejected", func() {
			resp := s.do(http.MethodPost, "/race", `{}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("racing the first page settles with a recorded winner", func() {
			resp := s.do(http.MethodPost, "/race", `{"page":1}`)
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
			started := decode[map[string]any](resp)
			So(started["session_id"], ShouldNotBeEmpty)

			var view map[string]any
			deadline := time.Now().Add(waitTimeout)
			for time.Now().Before(deadline) {
				view = decode[map[string]any](s.do(http.MethodGet, "/race", ""))
				if r, ok := view["race"].(map[string]any); ok && r["settled"] == true {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			r := view["race"].(map[string]any)
			So(r["settled"], ShouldEqual, true)
			winner, ok := r["winner"].(map[string]any)
			So(ok, ShouldBeTrue)
			id := int(winner["vehicle_id"].(float64))

			var status int
			for time.Now().Before(deadline) {
				resp := s.do(http.MethodGet, fmt.Sprintf("/winners/%d", id), "")
				resp.Body.Close()
				if status = resp.StatusCode; status == http.StatusOK {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(status, ShouldEqual, http.StatusOK)

			Convey("and reset returns an idle view", func() {
				resp := s.do(http.MethodPost, "/race/reset", "")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				view := decode[map[string]any](resp)
				controls := view["controls"].(map[string]any)
				So(controls["start_race"], ShouldEqual, true)
			})
		})
	})
}

func TestRaceEvents(t *testing.T) {
	Convey("Given a websocket subscriber", t, func() {
		s := newTestServer(t, 0)
		s.seed(2)

		url := "ws" + strings.TrimPrefix(s.URL, "http") + "/race/events"
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		resp.Body.Close()
		defer conn.Close()
		So(conn.SetReadDeadline(time.Now().Add(waitTimeout)), ShouldBeNil)

		var initial map[string]any
		So(conn.ReadJSON(&initial), ShouldBeNil)
		So(initial, ShouldContainKey, "controls")

		Convey("race events stream until the race settles", func() {
			resp := s.do(http.MethodPost, "/race", `{"ids":[1,2]}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)

			seen := map[race.EventType]int{}
			for seen[race.EventRaceSettled] == 0 {
				var ev race.Event
				if err := conn.ReadJSON(&ev); err != nil {
					break
				}
				seen[ev.Type]++
			}
			So(seen[race.EventRaceSettled], ShouldEqual, 1)
			So(seen[race.EventWinnerDeclared], ShouldEqual, 1)
			So(seen[race.EventTaskState], ShouldBeGreaterThanOrEqualTo, 6)
		})
	})
}
