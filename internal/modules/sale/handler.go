package sale

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/platform/web"
)

// Handler exposes checkout endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/sales", h.createSale)
	r.Get("/api/v1/sales/{id}", h.getSale)
	// Lives here rather than in session: session cannot import sale.
	r.Get("/api/v1/sessions/{id}/sales", h.listSessionSales)
}

// StatusFor maps a sale outcome to its HTTP status.
func StatusFor(o Outcome) int {
	switch o {
	case OutcomeSucceeded:
		return http.StatusCreated
	case OutcomeInsufficientStock, OutcomeConflict:
		return http.StatusConflict
	case OutcomePaymentDeclined:
		return http.StatusPaymentRequired
	case OutcomeIndeterminate:
		return http.StatusAccepted
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		if req.RequestKey != "" && req.RequestKey != key {
			web.Error(w, http.StatusUnprocessableEntity, web.CodeValidation, "Idempotency-Key header and request_key differ")
			return
		}
		req.RequestKey = key
	}

	res, err := h.service.CreateSale(r.Context(), req)
	if err != nil {
		web.Error(w, http.StatusInternalServerError, web.CodeInternal, "internal error")
		return
	}
	web.Respond(w, StatusFor(res.Outcome), res)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := h.service.GetSale(r.Context(), id)
	if errors.Is(err, ErrSaleNotFound) {
		web.Error(w, http.StatusNotFound, web.CodeNotFound, err.Error())
		return
	}
	if err != nil {
		web.Error(w, http.StatusInternalServerError, web.CodeInternal, "internal error")
		return
	}
	web.Respond(w, http.StatusOK, s)
}

func (h *Handler) listSessionSales(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sales, err := h.service.ListSessionSales(r.Context(), id)
	if err != nil {
		web.Error(w, http.StatusInternalServerError, web.CodeInternal, "internal error")
		return
	}
	if sales == nil {
		sales = []*Sale{}
	}
	web.Respond(w, http.StatusOK, sales)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid_id", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
