package reconciliation

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/modules/sale"
	"github.com/georgemunganga/printa-pos/internal/platform/web"
)

type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/reconciliation", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/{id}/retry", h.retry)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleManager))
			r.Post("/{id}/resolve", h.resolve)
			r.Post("/{id}/abandon", h.abandon)
		})
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context(), Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	web.Respond(w, http.StatusOK, entries)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, e)
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	a, err := h.service.Retry(r.Context(), id)
	respondAttempt(w, a, err)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req ResolveRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	a, err := h.service.Resolve(r.Context(), id, req)
	respondAttempt(w, a, err)
}

func (h *Handler) abandon(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	var req AbandonRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	e, err := h.service.Abandon(r.Context(), id, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, e)
}

func respondAttempt(w http.ResponseWriter, a *Attempt, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if a.Result != nil && a.Result.Outcome == sale.OutcomeIndeterminate {
		status = http.StatusAccepted
	}
	web.Respond(w, status, a)
}

func entryID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid_id", "invalid reconciliation entry id")
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		web.Error(w, http.StatusNotFound, web.CodeNotFound, err.Error())
	case errors.Is(err, ErrEntryClosed), errors.Is(err, sale.ErrAttemptRunning):
		web.Error(w, http.StatusConflict, web.CodeConflict, err.Error())
	case errors.Is(err, ErrNoteRequired), errors.Is(err, ErrInvalidStatus):
		web.Error(w, http.StatusUnprocessableEntity, web.CodeValidation, err.Error())
	default:
		web.Error(w, http.StatusInternalServerError, web.CodeInternal, "internal error")
	}
}
