// Package api serves the json-server compatible track backend and the race
// endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/asyncrace/internal/app"
	"github.com/okian/asyncrace/internal/domain/engine"
	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/race"
	"github.com/okian/asyncrace/internal/domain/types"
	"github.com/okian/asyncrace/pkg/logger"
	"github.com/okian/asyncrace/pkg/metrics"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ListVehicles(ctx context.Context, q model.Query) (model.Page[model.Vehicle], error)
	GetVehicle(ctx context.Context, id int) (model.Vehicle, error)
	CreateVehicle(ctx context.Context, in model.VehicleInput) (model.Vehicle, error)
	UpdateVehicle(ctx context.Context, id int, in model.VehicleInput) (model.Vehicle, error)
	DeleteVehicle(ctx context.Context, id int) error
	GenerateVehicles(ctx context.Context, n int) ([]model.Vehicle, error)

	ListWinners(ctx context.Context, q model.Query) (model.Page[model.WinnerRecord], error)
	GetWinner(ctx context.Context, id int) (model.WinnerRecord, error)
	CreateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error)
	UpdateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error)
	DeleteWinner(ctx context.Context, id int) error
	WinnerEntries(ctx context.Context, q model.Query) (model.Page[types.WinnerEntry], error)

	Race(ctx context.Context, vehicleIDs []int) (*race.Session, error)
	RaceGaragePage(ctx context.Context, page int) (*race.Session, error)
	ResetRace(ctx context.Context) (types.RaceView, error)
	View() (types.RaceView, error)
	Subscribe() (<-chan race.Event, func(), error)

	Controller() race.Controller
}

// Server wires HTTP routes for the backend and race API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	garageHandler  *GarageHandler
	winnersHandler *WinnersHandler
	engineHandler  *EngineHandler
	raceHandler    *RaceHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := config{generateCount: defaultGenerateCount}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		garageHandler:  NewGarageHandler(deps, cfg.generateCount),
		winnersHandler: NewWinnersHandler(deps),
		engineHandler:  NewEngineHandler(deps.Controller()),
		raceHandler:    NewRaceHandler(deps, cfg.logger),
	}
}

// Routes returns the router with every route attached.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/garage", func(r chi.Router) {
		r.Get("/", s.garageHandler.HandleList)
		r.Post("/", s.garageHandler.HandleCreate)
		r.Post("/generate", s.garageHandler.HandleGenerate)
		r.Get("/{id}", s.garageHandler.HandleGet)
		r.Put("/{id}", s.garageHandler.HandleUpdate)
		r.Delete("/{id}", s.garageHandler.HandleDelete)
	})

	r.Route("/winners", func(r chi.Router) {
		r.Get("/", s.winnersHandler.HandleList)
		r.Post("/", s.winnersHandler.HandleCreate)
		r.Get("/entries", s.winnersHandler.HandleEntries)
		r.Get("/{id}", s.winnersHandler.HandleGet)
		r.Put("/{id}", s.winnersHandler.HandleUpdate)
		r.Delete("/{id}", s.winnersHandler.HandleDelete)
	})

	r.Patch("/engine", s.engineHandler.HandleEngine)

	r.Route("/race", func(r chi.Router) {
		r.Get("/", s.raceHandler.HandleView)
		r.Post("/", s.raceHandler.HandleStart)
		r.Post("/reset", s.raceHandler.HandleReset)
		r.Get("/events", s.raceHandler.HandleEvents)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps a domain error onto a status code.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, engine.ErrNotStarted):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrInvalidVehicle),
		errors.Is(err, model.ErrInvalidQuery),
		errors.Is(err, race.ErrNoVehicles),
		errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, model.ErrConflict),
		errors.Is(err, race.ErrRaceInProgress),
		errors.Is(err, engine.ErrStopped):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, engine.ErrDriveInProgress):
		writeError(w, http.StatusTooManyRequests, "drive_in_progress", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func pathID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrBadRequest, raw)
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %w", ErrBadRequest, err)
	}
	return nil
}

// pageQuery reads json-server paging parameters. Without _page the whole
// collection is one page.
func pageQuery(r *http.Request) (model.Query, error) {
	v := r.URL.Query()
	q := model.Query{Page: 1, Limit: unpagedLimit}
	if raw := v.Get("_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: invalid _page %q", ErrBadRequest, raw)
		}
		q.Page = n
		q.Limit = defaultPageLimit
	}
	if raw := v.Get("_limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: invalid _limit %q", ErrBadRequest, raw)
		}
		q.Limit = n
	}
	q.Sort = model.SortKey(v.Get("_sort"))
	q.Order = model.SortOrder(strings.ToUpper(v.Get("_order")))
	if q.Sort != model.SortNone && q.Order == "" {
		q.Order = model.OrderAsc
	}
	return q, q.Validate()
}

func setTotal(w http.ResponseWriter, total int) {
	w.Header().Set("Access-Control-Expose-Headers", totalCountHeader)
	w.Header().Set(totalCountHeader, strconv.Itoa(total))
}
