package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/race"
)

// Engine control statuses accepted by PATCH /engine.
const (
	engineStarted = "started"
	engineStopped = "stopped"
	engineDrive   = "drive"
)

// EngineHandler exposes a race.Controller over json-server's engine route.
type EngineHandler struct {
	ctrl race.Controller
}

// NewEngineHandler creates an engine handler.
func NewEngineHandler(ctrl race.Controller) *EngineHandler {
	return &EngineHandler{ctrl: ctrl}
}

// HandleEngine handles PATCH /engine?id=N&status=started|stopped|drive.
// A drive that ends in a breakdown answers 500.
func (h *EngineHandler) HandleEngine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.Atoi(q.Get("id"))
	if err != nil || id < 1 {
		writeDomainError(w, fmt.Errorf("%w: invalid id %q", ErrBadRequest, q.Get("id")))
		return
	}
	switch status := q.Get("status"); status {
	case engineStarted:
		params, err := h.ctrl.Start(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, params)
	case engineStopped:
		if err := h.ctrl.Stop(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, model.EngineParams{})
	case engineDrive:
		err := h.ctrl.Drive(r.Context(), id)
		switch {
		case errors.Is(err, model.ErrEngineBroken):
			writeError(w, http.StatusInternalServerError, "engine_broken", err)
		case err != nil:
			writeDomainError(w, err)
		default:
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		}
	default:
		writeDomainError(w, fmt.Errorf("%w: unknown status %q", ErrBadRequest, status))
	}
}
