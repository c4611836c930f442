package handlers

import (
	"net/http"

	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/go-chi/chi/v5"
)

const (
	propertyIDParam   = "propertyID"
	idempotencyHeader = "Idempotency-Key"
)

// PropertyHandler provides HTTP handlers for listings and contact reveals.
type PropertyHandler struct {
	propertyService *services.PropertyService
	contactService  *services.ContactService
}

// NewPropertyHandler constructs a handler with the provided services.
func NewPropertyHandler(propertyService *services.PropertyService, contactService *services.ContactService) *PropertyHandler {
	return &PropertyHandler{
		propertyService: propertyService,
		contactService:  contactService,
	}
}

// PropertyRouter registers listing routes on the given router.
func PropertyRouter(r chi.Router, handler *PropertyHandler, authHandler *AuthHandler) {
	r.Get("/", handler.Search)
	r.With(authHandler.RequireAuth).Post("/", handler.Create)
	r.With(authHandler.RequireAuth).Get("/mine", handler.ListMine)
	r.Route("/{propertyID}", func(r chi.Router) {
		r.With(authHandler.Authenticate).Get("/", handler.Get)
		r.With(authHandler.RequireAuth).Patch("/", handler.Update)
		r.With(authHandler.RequireAuth).Delete("/", handler.Delete)
		r.With(authHandler.RequireAuth).Put("/status", handler.UpdateStatus)
		r.Post("/views", handler.IncrementView)
		r.With(authHandler.RequireAuth).Post("/contact", handler.Reveal)
		r.With(authHandler.RequireAuth).Get("/contact/count", handler.RevealCount)
	})
}

func (h *PropertyHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, err := search.ParseFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	page, err := h.propertyService.Search(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PropertyHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	result, err := h.propertyService.ListByOwner(r.Context(), userIDFromContext(r.Context()), page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	property, err := h.propertyService.Get(r.Context(), userIDFromContext(r.Context()), pathID(r, propertyIDParam))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, property)
}

// Create posts a listing. A repeated Idempotency-Key returns the listing
// created first with 200 instead of 201.
func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.Property
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	property, created, err := h.propertyService.Create(
		r.Context(),
		userIDFromContext(r.Context()),
		req,
		r.Header.Get(idempotencyHeader),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, property)
}

func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch types.PropertyPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := h.propertyService.Update(r.Context(), userIDFromContext(r.Context()), pathID(r, propertyIDParam), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PropertyHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := h.propertyService.UpdateStatus(r.Context(), userIDFromContext(r.Context()), pathID(r, propertyIDParam), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.propertyService.Delete(r.Context(), userIDFromContext(r.Context()), pathID(r, propertyIDParam)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PropertyHandler) IncrementView(w http.ResponseWriter, r *http.Request) {
	if err := h.propertyService.IncrementView(r.Context(), pathID(r, propertyIDParam)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PropertyHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	info, err := h.contactService.Reveal(r.Context(), userIDFromContext(r.Context()), pathID(r, propertyIDParam))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *PropertyHandler) RevealCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.contactService.RevealCount(r.Context(), userIDFromContext(r.Context()), pathID(r, propertyIDParam))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

type StatusRequest struct {
	Status types.PropertyStatus `json:"status"`
}

type CountResponse struct {
	Count int `json:"count"`
}
