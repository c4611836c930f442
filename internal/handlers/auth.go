package handlers

import (
	"net/http"

	"github.com/flatwithoutbrokerage/flatapi/internal/apperr"
	"github.com/flatwithoutbrokerage/flatapi/internal/auth"
	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/flatwithoutbrokerage/flatapi/types"
	"github.com/go-chi/chi/v5"
)

// AuthHandler resolves provider tokens into accounts and serves the caller's
// own profile endpoints.
type AuthHandler struct {
	userService *services.UserService
	verifier    *auth.Verifier
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, verifier *auth.Verifier) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		verifier:    verifier,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.With(handler.RequireAuth).Get("/me", handler.Me)
	r.With(handler.RequireAuth).Patch("/me", handler.UpdateMe)
	r.With(handler.RequireAuth).Post("/elevate", handler.Elevate)
}

// Authenticate resolves a bearer token when one is sent. Requests without an
// Authorization header pass through anonymously; a bad token is rejected.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := auth.BearerToken(header)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		principal, err := h.verifier.Verify(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.userService.Resolve(r.Context(), principal)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), user.ID)))
	})
}

// RequireAuth is Authenticate plus a rejection of anonymous requests.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return h.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userIDFromContext(r.Context()) == "" {
			writeServiceError(w, r, apperr.ErrAuthenticationRequired)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe edits the caller's name, phone and avatar.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req types.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userIDFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Elevate grants the caller the ADMIN role when the secret matches.
func (h *AuthHandler) Elevate(w http.ResponseWriter, r *http.Request) {
	var req ElevateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	user, err := h.userService.Elevate(r.Context(), userIDFromContext(r.Context()), req.Secret)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type ElevateRequest struct {
	Secret string `json:"secret"`
}
