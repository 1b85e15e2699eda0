package loyalty

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/platform/web"
)

type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/loyalty/{customer_id}", func(r chi.Router) {
		r.Get("/", h.statement)
		r.With(auth.RequireRole(auth.RoleManager)).Post("/adjust", h.adjust)
	})
}

type statement struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Balance    int64     `json:"balance"`
	Entries    []*Entry  `json:"entries"`
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	balance, err := h.service.Balance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.service.History(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	web.Respond(w, http.StatusOK, statement{CustomerID: id, Balance: balance, Entries: entries})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	var req AdjustRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	acct, err := h.service.Adjust(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, acct)
}

func customerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "customer_id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid_id", "invalid customer id")
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		web.Error(w, http.StatusNotFound, web.CodeNotFound, err.Error())
	case errors.Is(err, ErrInsufficientPoints):
		web.Error(w, http.StatusConflict, web.CodeConflict, err.Error())
	case errors.Is(err, ErrInvalidPoints), errors.Is(err, ErrZeroAdjustment), errors.Is(err, ErrNoteRequired):
		web.Error(w, http.StatusUnprocessableEntity, web.CodeValidation, err.Error())
	default:
		web.Error(w, http.StatusInternalServerError, web.CodeInternal, "internal error")
	}
}
