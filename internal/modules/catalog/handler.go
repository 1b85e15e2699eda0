package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/platform/web"
)

// Handler exposes catalog HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleManager))
			r.Post("/products", h.createProduct)
			r.Patch("/products/{id}/price", h.updatePrice)
		})
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	activeOnly := r.URL.Query().Get("active") != "false"
	products, err := h.service.ListProducts(r.Context(), category, activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []*Product{}
	}
	web.Respond(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	p, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, p)
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req UpdatePriceRequest
	if err := web.Decode(r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, web.CodeInvalidRequestBody, err.Error())
		return
	}
	p, err := h.service.UpdatePrice(r.Context(), id, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, p)
}

func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid_id", "invalid product id")
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		web.Error(w, http.StatusNotFound, web.CodeNotFound, err.Error())
	case errors.Is(err, ErrDuplicateSKU):
		web.Error(w, http.StatusConflict, web.CodeConflict, err.Error())
	case errors.Is(err, ErrSKURequired), errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidPrice):
		web.Error(w, http.StatusUnprocessableEntity, web.CodeValidation, err.Error())
	default:
		web.Error(w, http.StatusInternalServerError, web.CodeInternal, "internal error")
	}
}
