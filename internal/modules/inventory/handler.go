package inventory

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/platform/web"
)

// Handler exposes inventory HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Location endpoints
		r.Post("/locations", h.createLocation)
		r.Get("/locations/{id}", h.getLocation)

		// Stock endpoints
		r.Get("/locations/{location_id}/stock/{product_id}", h.getRecord)
		r.Post("/locations/{location_id}/stock/{product_id}", h.receive)

		// Reservation endpoints
		r.Post("/reservations/sweep", h.sweep)
		r.Get("/reservations/{id}", h.getReservation)
		r.Post("/reservations/{id}/release", h.release)
	})
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	loc, err := h.service.CreateLocation(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusCreated, loc)
}

func (h *Handler) getLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	loc, err := h.service.GetLocation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, loc)
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	locationID, ok := pathUUID(w, r, "location_id")
	if !ok {
		return
	}
	productID, ok := pathUUID(w, r, "product_id")
	if !ok {
		return
	}
	rec, err := h.service.GetRecord(r.Context(), productID, locationID)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, recordView{Record: rec, Available: rec.Available()})
}

type recordView struct {
	*Record
	Available int `json:"available"`
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	locationID, ok := pathUUID(w, r, "location_id")
	if !ok {
		return
	}
	productID, ok := pathUUID(w, r, "product_id")
	if !ok {
		return
	}
	var body struct {
		Delta int `json:"delta"`
	}
	if err := web.Decode(r, &body); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	rec, err := h.service.Receive(r.Context(), productID, locationID, body.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, recordView{Record: rec, Available: rec.Available()})
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.service.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, res)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Release(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.service.GetReservation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, res)
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.SweepExpired(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, map[string]int{"expired": n})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid_id", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLocationNotFound), errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrReservationNotFound):
		web.Error(w, http.StatusNotFound, web.CodeNotFound, err.Error())
	case errors.Is(err, ErrReservationCommitted), errors.Is(err, ErrOnHandBelowReservation):
		web.Error(w, http.StatusConflict, web.CodeConflict, err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidDelta), errors.Is(err, ErrNameRequired):
		web.Error(w, http.StatusUnprocessableEntity, web.CodeValidation, err.Error())
	default:
		if _, ok := IsInsufficientStock(err); ok {
			web.Error(w, http.StatusConflict, "insufficient_stock", err.Error())
			return
		}
		web.Error(w, http.StatusInternalServerError, web.CodeInternal, "internal error")
	}
}
