package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/asyncrace/internal/domain/race"
	"github.com/okian/asyncrace/internal/domain/types"
	"github.com/okian/asyncrace/pkg/logger"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{}

type raceDeps interface {
	Race(ctx context.Context, vehicleIDs []int) (*race.Session, error)
	RaceGaragePage(ctx context.Context, page int) (*race.Session, error)
	ResetRace(ctx context.Context) (types.RaceView, error)
	View() (types.RaceView, error)
	Subscribe() (<-chan race.Event, func(), error)
}

// RaceHandler starts, resets and streams races.
type RaceHandler struct {
	deps   raceDeps
	logger logger.Logger
}

// NewRaceHandler creates a race handler.
func NewRaceHandler(deps raceDeps, l logger.Logger) *RaceHandler {
	return &RaceHandler{deps: deps, logger: l}
}

type startRaceRequest struct {
	IDs  []int `json:"ids"`
	Page int   `json:"page"`
}

type startRaceResponse struct {
	SessionID string `json:"session_id"`
	Vehicles  []int  `json:"vehicles"`
}

// HandleStart handles POST /race. The body names either explicit vehicle
// ids or a garage page; the race runs in the background.
func (h *RaceHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRaceRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	var (
		session *race.Session
		err     error
	)
	switch {
	case len(req.IDs) > 0:
		session, err = h.deps.Race(r.Context(), req.IDs)
	case req.Page > 0:
		session, err = h.deps.RaceGaragePage(r.Context(), req.Page)
	default:
		err = fmt.Errorf("%w: ids or page required", race.ErrNoVehicles)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startRaceResponse{
		SessionID: session.ID(),
		Vehicles:  session.Vehicles(),
	})
}

// HandleReset handles POST /race/reset.
func (h *RaceHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.ResetRace(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleView handles GET /race.
func (h *RaceHandler) HandleView(w http.ResponseWriter, _ *http.Request) {
	view, err := h.deps.View()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleEvents handles GET /race/events. It upgrades to a websocket, sends
// the current view and then every race event until either side closes.
func (h *RaceHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	events, cancel, err := h.deps.Subscribe()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if view, err := h.deps.View(); err == nil {
		if err := h.write(conn, view); err != nil {
			return
		}
	}
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.write(conn, ev); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug(r.Context(), "event stream closed", logger.Error(err))
				}
				return
			}
		}
	}
}

func (h *RaceHandler) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
