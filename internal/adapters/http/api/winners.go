package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/asyncrace/internal/domain/model"
	"github.com/okian/asyncrace/internal/domain/types"
)

type winnersDeps interface {
	ListWinners(ctx context.Context, q model.Query) (model.Page[model.WinnerRecord], error)
	GetWinner(ctx context.Context, id int) (model.WinnerRecord, error)
	CreateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error)
	UpdateWinner(ctx context.Context, rec model.WinnerRecord) (model.WinnerRecord, error)
	DeleteWinner(ctx context.Context, id int) error
	WinnerEntries(ctx context.Context, q model.Query) (model.Page[types.WinnerEntry], error)
}

// WinnersHandler serves the /winners collection.
type WinnersHandler struct {
	deps winnersDeps
}

// NewWinnersHandler creates a winners handler.
func NewWinnersHandler(deps winnersDeps) *WinnersHandler {
	return &WinnersHandler{deps: deps}
}

// HandleList handles GET /winners?_page&_limit&_sort&_order.
func (h *WinnersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, err := pageQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	page, err := h.deps.ListWinners(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	setTotal(w, page.Total)
	writeJSON(w, http.StatusOK, page.Items)
}

// HandleEntries handles GET /winners/entries, the winners table rows joined
// with vehicle name and color.
func (h *WinnersHandler) HandleEntries(w http.ResponseWriter, r *http.Request) {
	q, err := pageQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	page, err := h.deps.WinnerEntries(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	setTotal(w, page.Total)
	writeJSON(w, http.StatusOK, page.Items)
}

// HandleGet handles GET /winners/{id}.
func (h *WinnersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rec, err := h.deps.GetWinner(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleCreate handles POST /winners.
func (h *WinnersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var rec model.WinnerRecord
	if err := decodeBody(r, &rec); err != nil {
		writeDomainError(w, err)
		return
	}
	if rec.ID < 1 {
		writeDomainError(w, fmt.Errorf("%w: id must be positive", ErrBadRequest))
		return
	}
	out, err := h.deps.CreateWinner(r.Context(), rec)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// HandleUpdate handles PUT /winners/{id} with body {wins,time}.
func (h *WinnersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var rec model.WinnerRecord
	if err := decodeBody(r, &rec); err != nil {
		writeDomainError(w, err)
		return
	}
	rec.ID = id
	out, err := h.deps.UpdateWinner(r.Context(), rec)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /winners/{id}.
func (h *WinnersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.DeleteWinner(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
