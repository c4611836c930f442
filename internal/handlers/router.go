package handlers

import (
	"net/http"

	"github.com/flatwithoutbrokerage/flatapi/internal/auth"
	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/go-chi/chi/v5"
)

// Services are the use-cases exposed over HTTP. Uploads may be nil.
type Services struct {
	Properties *services.PropertyService
	Contacts   *services.ContactService
	Users      *services.UserService
	Admin      *services.AdminService
	Uploads    *services.UploadService
}

// Mount registers every route on r.
func Mount(r chi.Router, svc Services, verifier *auth.Verifier) {
	authHandler := NewAuthHandler(svc.Users, verifier)
	propertyHandler := NewPropertyHandler(svc.Properties, svc.Contacts)
	contactHandler := NewContactHandler(svc.Contacts)
	adminHandler := NewAdminHandler(svc.Admin, svc.Users, svc.Properties, svc.Contacts)

	var uploadHandler *UploadHandler
	if svc.Uploads != nil {
		uploadHandler = NewUploadHandler(svc.Uploads)
	}

	r.Get("/healthz", Healthz)
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authHandler)
	})
	r.Route("/properties", func(r chi.Router) {
		PropertyRouter(r, propertyHandler, authHandler)
	})
	r.Route("/contacts", func(r chi.Router) {
		ContactRouter(r, contactHandler, authHandler)
	})
	r.Route("/uploads", func(r chi.Router) {
		UploadRouter(r, uploadHandler, authHandler)
	})
	r.Route("/admin", func(r chi.Router) {
		AdminRouter(r, adminHandler, authHandler)
	})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
