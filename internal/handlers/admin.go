package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/internal/search"
	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/go-chi/chi/v5"
)

const userIDParam = "userID"

// AdminHandler serves the admin dashboard endpoints.
type AdminHandler struct {
	adminService    *services.AdminService
	userService     *services.UserService
	propertyService *services.PropertyService
	contactService  *services.ContactService
}

func NewAdminHandler(
	adminService *services.AdminService,
	userService *services.UserService,
	propertyService *services.PropertyService,
	contactService *services.ContactService,
) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		userService:     userService,
		propertyService: propertyService,
		contactService:  contactService,
	}
}

// AdminRouter registers admin routes on the given router. Every route
// requires an authenticated admin.
func AdminRouter(r chi.Router, handler *AdminHandler, authHandler *AuthHandler) {
	r.Use(authHandler.RequireAuth, handler.requireAdmin)

	r.Get("/stats", handler.Overview)
	r.Get("/stats/trends", handler.Trends)
	r.Get("/users", handler.ListUsers)
	r.Patch("/users/{userID}", handler.UpdateUser)
	r.Delete("/users/{userID}", handler.DeleteUser)
	r.Get("/properties", handler.ListProperties)
	r.Get("/contacts", handler.ListContacts)
}

func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.adminService.Overview(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *AdminHandler) Trends(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeServiceError(w, r, apperr.Invalid("days", "must be an integer"))
			return
		}
		days = parsed
		if days == 0 {
			writeServiceError(w, r, apperr.Invalid("days", "must be between 1 and 365"))
			return
		}
	}

	trends, err := h.adminService.Trends(r.Context(), userIDFromContext(r.Context()), days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	users, err := h.userService.List(r.Context(), userIDFromContext(r.Context()), r.URL.Query().Get("q"), page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req types.UserAdminUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, err := h.userService.AdminUpdate(r.Context(), userIDFromContext(r.Context()), pathID(r, userIDParam), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), userIDFromContext(r.Context()), pathID(r, userIDParam)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	filter, err := search.ParseFilter(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	page, err := h.propertyService.AdminList(r.Context(), userIDFromContext(r.Context()), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	log, err := h.contactService.AdminList(r.Context(), userIDFromContext(r.Context()), page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *AdminHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.userService.GetByID(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !user.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
