package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/asyncrace/internal/domain/model"
)

type garageDeps interface {
	ListVehicles(ctx context.Context, q model.Query) (model.Page[model.Vehicle], error)
	GetVehicle(ctx context.Context, id int) (model.Vehicle, error)
	CreateVehicle(ctx context.Context, in model.VehicleInput) (model.Vehicle, error)
	UpdateVehicle(ctx context.Context, id int, in model.VehicleInput) (model.Vehicle, error)
	DeleteVehicle(ctx context.Context, id int) error
	GenerateVehicles(ctx context.Context, n int) ([]model.Vehicle, error)
}

// GarageHandler serves the /garage collection.
type GarageHandler struct {
	deps          garageDeps
	generateCount int
}

// NewGarageHandler creates a garage handler.
func NewGarageHandler(deps garageDeps, generateCount int) *GarageHandler {
	return &GarageHandler{deps: deps, generateCount: generateCount}
}

// HandleList handles GET /garage?_page&_limit.
func (h *GarageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, err := pageQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	q.Sort, q.Order = model.SortNone, ""
	page, err := h.deps.ListVehicles(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	setTotal(w, page.Total)
	writeJSON(w, http.StatusOK, page.Items)
}

// HandleGet handles GET /garage/{id}.
func (h *GarageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	v, err := h.deps.GetVehicle(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleCreate handles POST /garage.
func (h *GarageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.VehicleInput
	if err := decodeBody(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	v, err := h.deps.CreateVehicle(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// HandleUpdate handles PUT /garage/{id}.
func (h *GarageHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in model.VehicleInput
	if err := decodeBody(r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	v, err := h.deps.UpdateVehicle(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleDelete handles DELETE /garage/{id}.
func (h *GarageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.deps.DeleteVehicle(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// HandleGenerate handles POST /garage/generate?count=N.
func (h *GarageHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	n := h.generateCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		c, err := strconv.Atoi(raw)
		if err != nil || c < 1 {
			writeDomainError(w, fmt.Errorf("%w: invalid count %q", ErrBadRequest, raw))
			return
		}
		n = c
	}
	vs, err := h.deps.GenerateVehicles(r.Context(), n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vs)
}
