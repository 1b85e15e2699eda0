package session

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/platform/web"
)

type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts flat routes; the session's sales listing lives with the sale handler.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/sessions", h.open)
	r.Get("/api/v1/sessions/{id}", h.get)
	r.Post("/api/v1/sessions/{id}/close", h.close)
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	if req.CashierID == nil {
		if claims, ok := auth.FromContext(r.Context()); ok {
			if id, err := claims.UserID(); err == nil {
				req.CashierID = &id
			}
		}
	}
	sess, err := h.service.Open(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusCreated, sess)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sess, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, sess)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req CloseRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	sess, err := h.service.Close(r.Context(), id, req.CountedBalance)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, sess)
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid_id", "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		web.Error(w, http.StatusNotFound, web.CodeNotFound, err.Error())
	case errors.Is(err, ErrSessionClosed), errors.Is(err, ErrRegisterBusy):
		web.Error(w, http.StatusConflict, web.CodeConflict, err.Error())
	case errors.Is(err, ErrRegisterRequired), errors.Is(err, ErrLocationRequired), errors.Is(err, ErrNegativeBalance):
		web.Error(w, http.StatusUnprocessableEntity, web.CodeValidation, err.Error())
	default:
		web.Error(w, http.StatusInternalServerError, web.CodeInternal, "internal error")
	}
}
