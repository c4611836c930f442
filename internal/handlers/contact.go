package handlers

import (
	"net/http"

	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/go-chi/chi/v5"
)

// ContactHandler serves the caller's reveal history.
type ContactHandler struct {
	contactService *services.ContactService
}

func NewContactHandler(contactService *services.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// ContactRouter registers contact routes on the given router.
func ContactRouter(r chi.Router, handler *ContactHandler, authHandler *AuthHandler) {
	r.With(authHandler.RequireAuth).Get("/history", handler.History)
}

func (h *ContactHandler) History(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	history, err := h.contactService.History(r.Context(), userIDFromContext(r.Context()), page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
